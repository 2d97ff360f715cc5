package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volgapavel/popov-exem/pkg/api"
)

func testSpec() api.PipelineSpec {
	return api.PipelineSpec{
		Name: "ml-pipeline",
		Tasks: []api.TaskSpec{
			{Name: "load", Outputs: []string{"data_raw.csv"}},
			{Name: "preprocess", Dependencies: []string{"load"}, Outputs: []string{"data_clean.csv"}},
		},
	}
}

func testStores(t *testing.T) map[string]Store {
	fs, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"inmemory": NewInMemoryStore(),
		"fs":       fs,
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CreateRun(ctx, "run-1", testSpec(), map[string]string{"source": "wdbc.data"}))

			// All tasks start pending
			statuses, err := s.GetTaskStatuses(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, map[string]api.Status{"load": api.StatusPending, "preprocess": api.StatusPending}, statuses)

			start := time.Now()
			require.NoError(t, s.SetRunStatus(ctx, "run-1", api.StatusRunning, TimeOption{StartTime: start}))
			require.NoError(t, s.SetTaskStatus(ctx, "run-1", "load", api.StatusRunning, TimeOption{StartTime: start}))
			require.NoError(t, s.SetTaskAttempts(ctx, "run-1", "load", 2))
			require.NoError(t, s.SetTaskArtifacts(ctx, "run-1", "load", map[string]string{"data_raw.csv": "runs/run-1/load/data_raw.csv"}))
			require.NoError(t, s.SetTaskStatus(ctx, "run-1", "load", api.StatusSucceeded, TimeOption{EndTime: time.Now()}))

			state, err := s.GetRunState(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, api.StatusRunning, state.Status)
			require.Len(t, state.Tasks, 2)
			assert.Equal(t, "load", state.Tasks[0].Name)
			assert.Equal(t, api.StatusSucceeded, state.Tasks[0].Status)
			assert.Equal(t, 2, state.Tasks[0].Attempts)
			assert.NotNil(t, state.Tasks[0].StartTime)
			assert.NotNil(t, state.Tasks[0].EndTime)
			assert.Contains(t, state.Tasks[0].Artifacts, "data_raw.csv")

			// Failure recorded on the task
			failure := api.Failure{Task: "preprocess", Kind: api.FailurePermanent, Attempts: 1, Cause: "column diagnosis missing"}
			require.NoError(t, s.SetTaskFailure(ctx, "run-1", "preprocess", failure))
			require.NoError(t, s.SetTaskStatus(ctx, "run-1", "preprocess", api.StatusFailed, TimeOption{EndTime: time.Now()}))
			ts, err := s.GetTaskState(ctx, "run-1", "preprocess")
			require.NoError(t, err)
			require.NotNil(t, ts.Failure)
			assert.Equal(t, api.FailurePermanent, ts.Failure.Kind)

			require.NoError(t, s.SetRunStatus(ctx, "run-1", api.StatusFailed, TimeOption{EndTime: time.Now()}))
			runs, err := s.ListRuns(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, api.StatusFailed, runs[0].Status)
		})
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetRunState(ctx, "nope")
			require.Error(t, err)
			assert.IsType(t, ErrNotFound{}, err)

			require.NoError(t, s.CreateRun(ctx, "run-1", testSpec(), nil))
			_, err = s.GetTaskState(ctx, "run-1", "nope")
			require.Error(t, err)
			assert.IsType(t, ErrNotFound{}, err)
		})
	}
}

func TestFSReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFSStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.CreateRun(ctx, "run-1", testSpec(), nil))
	require.NoError(t, s.SetTaskStatus(ctx, "run-1", "load", api.StatusSucceeded, TimeOption{EndTime: time.Now()}))
	require.NoError(t, s.SetPromoted(ctx, "run-1"))

	// Reopen the store and check the record survived.
	s2, err := NewFSStore(dir)
	require.NoError(t, err)
	state, err := s2.GetRunState(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, state.Promoted)
	assert.Equal(t, api.StatusSucceeded, state.TaskStatuses()["load"])

	spec, err := s2.GetSpec(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "ml-pipeline", spec.Name)
}
