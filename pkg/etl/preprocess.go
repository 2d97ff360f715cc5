package etl

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

const (
	idColumn    = "id"
	labelColumn = "diagnosis"

	// labelPositive marks the malignant class, encoded as 1.
	labelPositive = "M"
	labelNegative = "B"
)

// Scaler holds the per-feature statistics computed during preprocessing so
// future samples can be normalized the same way the training data was.
type Scaler struct {
	Columns []string  `json:"columns"`
	Means   []float64 `json:"means"`
	Stds    []float64 `json:"stds"`
}

// Apply normalizes the value of the i-th feature.
func (s Scaler) Apply(i int, v float64) float64 {
	if s.Stds[i] == 0 {
		return 0
	}
	return (v - s.Means[i]) / s.Stds[i]
}

// Preprocess is the body of the preprocess task. It normalizes column names,
// drops the sample identifier, encodes the diagnosis label and z-scores every
// feature. Data problems are the data's fault, not the run's, so they fail
// without retrying.
func Preprocess(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
	raw, ok := in.Output(TaskLoad, ArtifactRawData)
	if !ok {
		return nil, task.Permanentf("raw dataset missing from inputs")
	}
	t, err := readTable(raw)
	if err != nil {
		return nil, task.Permanent(err)
	}
	for i, h := range t.header {
		t.header[i] = snakeCase(h)
	}
	if idx, ok := t.column(idColumn); ok {
		t = dropColumn(t, idx)
	}
	labelIdx, ok := t.column(labelColumn)
	if !ok {
		return nil, task.Permanentf("dataset has no %s column", labelColumn)
	}

	features := make([]string, 0, len(t.header)-1)
	for i, h := range t.header {
		if i != labelIdx {
			features = append(features, h)
		}
	}
	ctx.Logger().Infof("preprocessing %d samples with %d features", len(t.rows), len(features))

	labels := make([]string, len(t.rows))
	values := make([][]float64, len(t.rows))
	for r, row := range t.rows {
		if len(row) != len(t.header) {
			return nil, task.Permanentf("row %d has %d fields, expected %d", r+1, len(row), len(t.header))
		}
		switch row[labelIdx] {
		case labelPositive:
			labels[r] = "1"
		case labelNegative:
			labels[r] = "0"
		default:
			return nil, task.Permanentf("row %d has unknown %s value %q", r+1, labelColumn, row[labelIdx])
		}
		vals := make([]float64, 0, len(features))
		for c, field := range row {
			if c == labelIdx {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, task.Permanent(errors.Wrapf(err, "row %d has invalid value %q in column %s", r+1, field, t.header[c]))
			}
			vals = append(vals, v)
		}
		values[r] = vals
	}

	scaler := fitScaler(features, values)
	rows := make([][]string, len(values))
	for r, vals := range values {
		row := make([]string, 0, len(vals)+1)
		row = append(row, labels[r])
		for i, v := range vals {
			row = append(row, formatFloat(scaler.Apply(i, v)))
		}
		rows[r] = row
	}
	clean := table{header: append([]string{labelColumn}, features...), rows: rows}
	cleanData, err := clean.bytes()
	if err != nil {
		return nil, err
	}
	scalerData, err := json.Marshal(scaler)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode scaler")
	}
	return task.Artifacts{ArtifactCleanData: cleanData, ArtifactScaler: scalerData}, nil
}

func fitScaler(columns []string, values [][]float64) Scaler {
	n := float64(len(values))
	means := make([]float64, len(columns))
	stds := make([]float64, len(columns))
	for _, vals := range values {
		for i, v := range vals {
			means[i] += v / n
		}
	}
	for _, vals := range values {
		for i, v := range vals {
			d := v - means[i]
			stds[i] += d * d / n
		}
	}
	for i := range stds {
		stds[i] = math.Sqrt(stds[i])
	}
	return Scaler{Columns: columns, Means: means, Stds: stds}
}

func dropColumn(t table, idx int) table {
	header := append(append([]string{}, t.header[:idx]...), t.header[idx+1:]...)
	rows := make([][]string, len(t.rows))
	for r, row := range t.rows {
		if idx < len(row) {
			rows[r] = append(append([]string{}, row[:idx]...), row[idx+1:]...)
		} else {
			rows[r] = row
		}
	}
	return table{header: header, rows: rows}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
