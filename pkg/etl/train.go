package etl

import (
	"encoding/json"
	"math"
	"math/rand"
	"strconv"

	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

const (
	// trainSeed fixes the shuffle so a run is reproducible end to end.
	trainSeed    = 42
	testFraction = 0.2

	learningRate = 0.1
	epochs       = 300
)

// Model is a logistic regression binary classifier over the preprocessed
// features.
type Model struct {
	Columns []string  `json:"columns"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// Predict returns the probability of the positive class for the given
// feature vector.
func (m Model) Predict(features []float64) float64 {
	z := m.Bias
	for i, w := range m.Weights {
		z += w * features[i]
	}
	return 1 / (1 + math.Exp(-z))
}

// Train is the body of the train task. It splits the clean dataset into a
// training and a held-out test part, fits a logistic regression with full
// batch gradient descent and publishes both the model and the test split.
func Train(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
	clean, ok := in.Output(TaskPreprocess, ArtifactCleanData)
	if !ok {
		return nil, task.Permanentf("clean dataset missing from inputs")
	}
	t, err := readTable(clean)
	if err != nil {
		return nil, task.Permanent(err)
	}
	labels, features, err := numeric(t)
	if err != nil {
		return nil, task.Permanent(err)
	}

	n := len(features)
	testSize := int(float64(n) * testFraction)
	if testSize == 0 && n > 1 {
		testSize = 1
	}
	perm := rand.New(rand.NewSource(trainSeed)).Perm(n)
	testIdx := perm[:testSize]
	trainIdx := perm[testSize:]
	ctx.Logger().Infof("training on %d samples, holding out %d", len(trainIdx), len(testIdx))

	model := fit(t.header[1:], labels, features, trainIdx)
	modelData, err := json.Marshal(model)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode model")
	}

	testRows := make([][]string, len(testIdx))
	for i, r := range testIdx {
		testRows[i] = t.rows[r]
	}
	testData, err := table{header: t.header, rows: testRows}.bytes()
	if err != nil {
		return nil, err
	}
	return task.Artifacts{ArtifactModel: modelData, ArtifactTestData: testData}, nil
}

// numeric parses a clean table: label in the first column, features after.
func numeric(t table) ([]float64, [][]float64, error) {
	labels := make([]float64, len(t.rows))
	features := make([][]float64, len(t.rows))
	for r, row := range t.rows {
		if len(row) != len(t.header) {
			return nil, nil, errors.Errorf("row %d has %d fields, expected %d", r+1, len(row), len(t.header))
		}
		label, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "row %d has invalid label %q", r+1, row[0])
		}
		labels[r] = label
		vals := make([]float64, len(row)-1)
		for c, field := range row[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "row %d has invalid value %q", r+1, field)
			}
			vals[c] = v
		}
		features[r] = vals
	}
	return labels, features, nil
}

func fit(columns []string, labels []float64, features [][]float64, idx []int) Model {
	m := Model{Columns: columns, Weights: make([]float64, len(columns))}
	n := float64(len(idx))
	for e := 0; e < epochs; e++ {
		grad := make([]float64, len(m.Weights))
		var gradBias float64
		for _, r := range idx {
			err := m.Predict(features[r]) - labels[r]
			for i, v := range features[r] {
				grad[i] += err * v / n
			}
			gradBias += err / n
		}
		for i := range m.Weights {
			m.Weights[i] -= learningRate * grad[i]
		}
		m.Bias -= learningRate * gradBias
	}
	return m
}
