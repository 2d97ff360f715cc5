// Package etl provides the tasks of the diagnosis training pipeline: load a
// raw dataset, clean and normalize it, train a logistic regression
// classifier, evaluate it on a held-out split and export the resulting
// artifacts.
package etl

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/pkg/errors"
)

// Task names of the pipeline.
const (
	TaskLoad       = "load"
	TaskPreprocess = "preprocess"
	TaskTrain      = "train"
	TaskEvaluate   = "evaluate"
	TaskExport     = "export"
)

// Artifact names produced by the tasks.
const (
	ArtifactRawData   = "data_raw.csv"
	ArtifactCleanData = "data_clean.csv"
	ArtifactScaler    = "scaler.json"
	ArtifactModel     = "model.json"
	ArtifactTestData  = "test_data.csv"
	ArtifactMetrics   = "metrics.json"
)

// table is a parsed CSV dataset, header included.
type table struct {
	header []string
	rows   [][]string
}

func readTable(data []byte) (table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return table{}, errors.Wrap(err, "cannot parse csv")
	}
	if len(records) < 2 {
		return table{}, errors.New("dataset has no rows")
	}
	return table{header: records[0], rows: records[1:]}, nil
}

func (t table) bytes() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return nil, errors.Wrap(err, "cannot write csv header")
	}
	if err := w.WriteAll(t.rows); err != nil {
		return nil, errors.Wrap(err, "cannot write csv rows")
	}
	return buf.Bytes(), nil
}

func (t table) column(name string) (int, bool) {
	for i, h := range t.header {
		if h == name {
			return i, true
		}
	}
	return 0, false
}

// snakeCase normalizes a column name: lower case, separators collapsed to
// underscores.
func snakeCase(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), "_")
}
