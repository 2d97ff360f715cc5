package etl

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volgapavel/popov-exem/pkg/api"
	"github.com/volgapavel/popov-exem/pkg/artifact"
	"github.com/volgapavel/popov-exem/pkg/export"
	"github.com/volgapavel/popov-exem/pkg/scheduler"
	"github.com/volgapavel/popov-exem/pkg/store"
	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

const dataset = "testdata/dataset.csv"

// loadRaw runs the loader and returns its raw artifact.
func loadRaw(t *testing.T) task.Artifacts {
	out, err := NewLoader(dataset)(context.Background(), nil)
	require.NoError(t, err)
	return out
}

func TestLoaderMissingFileIsPermanent(t *testing.T) {
	_, err := NewLoader("testdata/nope.csv")(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, task.ShouldRetry(err))
}

func TestPreprocess(t *testing.T) {
	out, err := Preprocess(context.Background(), task.Inputs{TaskLoad: loadRaw(t)})
	require.NoError(t, err)

	clean, err := readTable(out[ArtifactCleanData])
	require.NoError(t, err)
	// Identifier dropped, label first, headers snake cased.
	assert.Equal(t, []string{"diagnosis", "radius_mean", "texture_mean", "smoothness_mean"}, clean.header)
	require.Len(t, clean.rows, 24)
	for _, row := range clean.rows {
		assert.Contains(t, []string{"0", "1"}, row[0])
	}

	var scaler Scaler
	require.NoError(t, json.Unmarshal(out[ArtifactScaler], &scaler))
	assert.Equal(t, clean.header[1:], scaler.Columns)
	require.Len(t, scaler.Means, 3)
	// Radius means sit around 15 in the dataset.
	assert.InDelta(t, 15, scaler.Means[0], 2)
	assert.Greater(t, scaler.Stds[0], 0.0)
}

func TestPreprocessRejectsBadData(t *testing.T) {
	inputs := func(csv string) task.Inputs {
		return task.Inputs{TaskLoad: task.Artifacts{ArtifactRawData: []byte(csv)}}
	}

	{ // Unknown diagnosis label
		_, err := Preprocess(context.Background(), inputs("diagnosis,v\nX,1.0\n"))
		require.Error(t, err)
		assert.False(t, task.ShouldRetry(err))
	}
	{ // Non numeric feature
		_, err := Preprocess(context.Background(), inputs("diagnosis,v\nM,n/a\n"))
		require.Error(t, err)
		assert.False(t, task.ShouldRetry(err))
	}
	{ // Missing label column
		_, err := Preprocess(context.Background(), inputs("a,b\n1.0,2.0\n"))
		require.Error(t, err)
		assert.False(t, task.ShouldRetry(err))
	}
}

func TestTrainAndEvaluate(t *testing.T) {
	ctx := context.Background()
	cleanOut, err := Preprocess(ctx, task.Inputs{TaskLoad: loadRaw(t)})
	require.NoError(t, err)

	trainOut, err := Train(ctx, task.Inputs{TaskPreprocess: cleanOut})
	require.NoError(t, err)
	var model Model
	require.NoError(t, json.Unmarshal(trainOut[ArtifactModel], &model))
	require.Len(t, model.Weights, 3)

	// The split and the fit are seeded, a second run is identical.
	again, err := Train(ctx, task.Inputs{TaskPreprocess: cleanOut})
	require.NoError(t, err)
	assert.Equal(t, trainOut[ArtifactModel], again[ArtifactModel])
	assert.Equal(t, trainOut[ArtifactTestData], again[ArtifactTestData])

	evalOut, err := Evaluate(ctx, task.Inputs{TaskTrain: trainOut})
	require.NoError(t, err)
	var metrics Metrics
	require.NoError(t, json.Unmarshal(evalOut[ArtifactMetrics], &metrics))
	// The classes are well separated on radius, the model must get this.
	assert.GreaterOrEqual(t, metrics.Accuracy, 0.75)
	assert.Greater(t, metrics.Samples, 0)
}

func TestPipelineEndToEnd(t *testing.T) {
	exportDir := t.TempDir()
	exporter, err := export.NewLocalCopy(export.LocalCopyConfig{Dir: exportDir})
	require.NoError(t, err)

	registry := task.NewRegistry()
	RegisterTasks(registry, dataset, exporter)
	sched, err := scheduler.NewScheduler(store.NewInMemoryStore(), artifact.NewInMemoryStore(), registry)
	require.NoError(t, err)

	ctx := context.Background()
	runID, err := sched.Submit(ctx, Pipeline(), nil)
	require.NoError(t, err)
	require.NoError(t, sched.Wait(ctx, runID))

	state, err := sched.RunState(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, api.StatusSucceeded, state.Status)
	assert.True(t, state.Promoted)
	for _, ts := range state.Tasks {
		assert.Equal(t, api.StatusSucceeded, ts.Status)
	}

	// The exporter received the model and the metrics.
	data, err := os.ReadFile(filepath.Join(exportDir, ArtifactMetrics))
	require.NoError(t, err)
	var metrics Metrics
	require.NoError(t, json.Unmarshal(data, &metrics))
	assert.Greater(t, metrics.Samples, 0)
	_, err = os.Stat(filepath.Join(exportDir, ArtifactModel))
	require.NoError(t, err)
}

// flakyExporter fails its first failures calls, then succeeds.
type flakyExporter struct {
	calls    atomic.Int32
	failures int32
}

func (f *flakyExporter) Export(ctx context.Context, artifacts map[string][]byte) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

// fastPipeline is the pipeline spec with negligible back-off delays.
func fastPipeline() api.PipelineSpec {
	spec := Pipeline()
	for i, t := range spec.Tasks {
		if t.Retry.MaxAttempts > 1 {
			spec.Tasks[i].Retry.InitialInterval = time.Millisecond
			spec.Tasks[i].Retry.MaxInterval = 2 * time.Millisecond
		}
	}
	return spec
}

func TestPipelinePreprocessFailureSkipsDownstream(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(bad, []byte("id,diagnosis,v\n1,X,2.0\n"), 0o600))

	exporter := &flakyExporter{}
	registry := task.NewRegistry()
	RegisterTasks(registry, bad, exporter)
	sched, err := scheduler.NewScheduler(store.NewInMemoryStore(), artifact.NewInMemoryStore(), registry)
	require.NoError(t, err)

	ctx := context.Background()
	runID, err := sched.Submit(ctx, fastPipeline(), nil)
	require.NoError(t, err)
	require.NoError(t, sched.Wait(ctx, runID))

	state, err := sched.RunState(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusFailed, state.Status)
	assert.False(t, state.Promoted)
	statuses := state.TaskStatuses()
	assert.Equal(t, api.StatusSucceeded, statuses[TaskLoad])
	assert.Equal(t, api.StatusFailed, statuses[TaskPreprocess])
	assert.Equal(t, api.StatusSkipped, statuses[TaskTrain])
	assert.Equal(t, api.StatusSkipped, statuses[TaskEvaluate])
	assert.Equal(t, api.StatusSkipped, statuses[TaskExport])
	assert.Equal(t, int32(0), exporter.calls.Load())
	require.Len(t, state.Failures(), 1)
	assert.Equal(t, api.FailurePermanent, state.Failures()[0].Kind)
}

func TestPipelineExportRetriesThenSucceeds(t *testing.T) {
	exporter := &flakyExporter{failures: 2}
	registry := task.NewRegistry()
	RegisterTasks(registry, dataset, exporter)
	sched, err := scheduler.NewScheduler(store.NewInMemoryStore(), artifact.NewInMemoryStore(), registry)
	require.NoError(t, err)

	ctx := context.Background()
	runID, err := sched.Submit(ctx, fastPipeline(), nil)
	require.NoError(t, err)
	require.NoError(t, sched.Wait(ctx, runID))

	state, err := sched.RunState(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusSucceeded, state.Status)
	assert.True(t, state.Promoted)
	assert.Equal(t, int32(3), exporter.calls.Load())
	ts, err := sched.TaskState(ctx, runID, TaskExport)
	require.NoError(t, err)
	assert.Equal(t, 3, ts.Attempts)
}
