package etl

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// Metrics describes the classifier's quality on the held-out split. The
// positive class is the malignant diagnosis.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Samples   int     `json:"samples"`
}

// Evaluate is the body of the evaluate task: it scores the trained model on
// the held-out split published by train.
func Evaluate(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
	modelData, ok := in.Output(TaskTrain, ArtifactModel)
	if !ok {
		return nil, task.Permanentf("model missing from inputs")
	}
	testData, ok := in.Output(TaskTrain, ArtifactTestData)
	if !ok {
		return nil, task.Permanentf("test split missing from inputs")
	}
	var model Model
	if err := json.Unmarshal(modelData, &model); err != nil {
		return nil, task.Permanent(errors.Wrap(err, "cannot decode model"))
	}
	t, err := readTable(testData)
	if err != nil {
		return nil, task.Permanent(err)
	}
	labels, features, err := numeric(t)
	if err != nil {
		return nil, task.Permanent(err)
	}

	var tp, fp, tn, fn int
	for r, vals := range features {
		predicted := model.Predict(vals) >= 0.5
		actual := labels[r] == 1
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && !actual:
			tn++
		default:
			fn++
		}
	}
	m := Metrics{
		Accuracy:  ratio(tp+tn, tp+tn+fp+fn),
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
		Samples:   len(features),
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	ctx.Logger().Infof("evaluated %d samples, accuracy %.3f", m.Samples, m.Accuracy)

	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode metrics")
	}
	return task.Artifacts{ArtifactMetrics: data}, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
