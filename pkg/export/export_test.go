package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

func TestLocalCopy(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "export")
	exp, err := NewLocalCopy(LocalCopyConfig{Dir: dir})
	require.NoError(t, err)

	err = exp.Export(context.Background(), map[string][]byte{
		"model.json":   []byte(`{"weights":[]}`),
		"metrics.json": []byte(`{"accuracy":0.97}`),
	})
	require.NoError(t, err)

	model, err := os.ReadFile(filepath.Join(dir, "model.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"weights":[]}`, string(model))
	metrics, err := os.ReadFile(filepath.Join(dir, "metrics.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"accuracy":0.97}`, string(metrics))
}

func TestLocalCopyMissingDir(t *testing.T) {
	_, err := NewLocalCopy(LocalCopyConfig{})
	require.Error(t, err)
}

type recordingExporter struct {
	exported map[string][]byte
	err      error
}

func (r *recordingExporter) Export(ctx context.Context, artifacts map[string][]byte) error {
	if r.err != nil {
		return r.err
	}
	r.exported = artifacts
	return nil
}

func TestBody(t *testing.T) {
	rec := &recordingExporter{}
	body := Body(rec)

	out, err := body(context.Background(), task.Inputs{
		"train":    task.Artifacts{"model.json": []byte("m")},
		"evaluate": task.Artifacts{"metrics.json": []byte("x")},
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Len(t, rec.exported, 2)
	assert.Contains(t, rec.exported, "model.json")
	assert.Contains(t, rec.exported, "metrics.json")
}

func TestBodyNothingToExport(t *testing.T) {
	body := Body(&recordingExporter{})
	_, err := body(context.Background(), task.Inputs{})
	require.Error(t, err)
	assert.False(t, task.ShouldRetry(err))
}

func TestBodyPropagatesFailure(t *testing.T) {
	body := Body(&recordingExporter{err: errors.New("connection reset")})
	_, err := body(context.Background(), task.Inputs{"train": task.Artifacts{"model.json": []byte("m")}})
	require.Error(t, err)
	// Network-ish failures stay retriable
	assert.True(t, task.ShouldRetry(err))
}

func TestClassify(t *testing.T) {
	// Plain network error stays retriable
	assert.True(t, task.ShouldRetry(classify(errors.New("dial tcp: i/o timeout"))))
}
