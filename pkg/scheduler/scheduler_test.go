package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volgapavel/popov-exem/pkg/api"
	"github.com/volgapavel/popov-exem/pkg/artifact"
	"github.com/volgapavel/popov-exem/pkg/store"
	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// fastRetry keeps the back-off delays negligible for tests.
func fastRetry(maxAttempts int) api.RetryPolicy {
	return api.RetryPolicy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

type testEngine struct {
	sched     Scheduler
	registry  *task.Registry
	runs      store.Store
	artifacts artifact.Store
}

func newTestEngine(t *testing.T) *testEngine {
	registry := task.NewRegistry()
	runs := store.NewInMemoryStore()
	artifacts := artifact.NewInMemoryStore()
	sched, err := NewScheduler(runs, artifacts, registry)
	require.NoError(t, err)
	return &testEngine{sched: sched, registry: registry, runs: runs, artifacts: artifacts}
}

// run submits the spec and waits for the run to finish.
func (e *testEngine) run(t *testing.T, spec api.PipelineSpec) api.RunState {
	ctx := context.Background()
	runID, err := e.sched.Submit(ctx, spec, nil)
	require.NoError(t, err)
	require.NoError(t, e.sched.Wait(ctx, runID))
	state, err := e.sched.RunState(ctx, runID)
	require.NoError(t, err)
	return state
}

// constant returns a body producing fixed artifacts.
func constant(out task.Artifacts) task.Body {
	return func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		return out, nil
	}
}

func TestRunChain(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "etl",
		Tasks: []api.TaskSpec{
			{Name: "extract", Outputs: []string{"raw"}},
			{Name: "transform", Dependencies: []string{"extract"}, Outputs: []string{"clean"}},
			{Name: "publish", Dependencies: []string{"transform"}},
		},
	}
	e.registry.Register("extract", constant(task.Artifacts{"raw": []byte("1,2,3")}))
	e.registry.Register("transform", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		raw, ok := in.Output("extract", "raw")
		require.True(t, ok)
		return task.Artifacts{"clean": append([]byte("clean:"), raw...)}, nil
	})
	var published atomic.Int32
	e.registry.Register("publish", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		clean, ok := in.Output("transform", "clean")
		require.True(t, ok)
		assert.Equal(t, "clean:1,2,3", string(clean))
		published.Add(1)
		return nil, nil
	})

	state := e.run(t, spec)

	assert.Equal(t, api.StatusSucceeded, state.Status)
	assert.True(t, state.Promoted)
	assert.Equal(t, int32(1), published.Load())
	for _, ts := range state.Tasks {
		assert.Equal(t, api.StatusSucceeded, ts.Status)
		assert.Equal(t, 1, ts.Attempts)
	}

	// The run's artifacts became the latest known-good set.
	latest, err := e.artifacts.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.RunID, latest)
	data, err := e.artifacts.Get(context.Background(), state.RunID, "transform", "clean")
	require.NoError(t, err)
	assert.Equal(t, "clean:1,2,3", string(data))
}

func TestRetryTransient(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "retry",
		Tasks: []api.TaskSpec{
			{Name: "flaky", Outputs: []string{"out"}, Retry: fastRetry(5)},
		},
	}
	var calls atomic.Int32
	e.registry.Register("flaky", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("connection reset")
		}
		return task.Artifacts{"out": []byte("ok")}, nil
	})

	state := e.run(t, spec)

	assert.Equal(t, api.StatusSucceeded, state.Status)
	assert.Equal(t, int32(3), calls.Load())
	ts, err := e.sched.TaskState(context.Background(), state.RunID, "flaky")
	require.NoError(t, err)
	assert.Equal(t, 3, ts.Attempts)
	assert.Nil(t, ts.Failure)
}

func TestRetryExhausted(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "retry",
		Tasks: []api.TaskSpec{
			{Name: "down", Retry: fastRetry(3)},
		},
	}
	var calls atomic.Int32
	e.registry.Register("down", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		calls.Add(1)
		return nil, errors.New("still down")
	})

	state := e.run(t, spec)

	assert.Equal(t, api.StatusFailed, state.Status)
	assert.False(t, state.Promoted)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, state.Failures(), 1)
	f := state.Failures()[0]
	assert.Equal(t, "down", f.Task)
	assert.Equal(t, api.FailureTransient, f.Kind)
	assert.Equal(t, 3, f.Attempts)
}

func TestPermanentFailureNotRetried(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "retry",
		Tasks: []api.TaskSpec{
			{Name: "broken", Retry: fastRetry(5)},
		},
	}
	var calls atomic.Int32
	e.registry.Register("broken", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		calls.Add(1)
		return nil, task.Permanentf("schema mismatch")
	})

	state := e.run(t, spec)

	assert.Equal(t, api.StatusFailed, state.Status)
	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, state.Failures(), 1)
	assert.Equal(t, api.FailurePermanent, state.Failures()[0].Kind)
	assert.Equal(t, 1, state.Failures()[0].Attempts)
}

func TestSkipDownstreamOfFailure(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "skip",
		Tasks: []api.TaskSpec{
			{Name: "a", Outputs: []string{"x"}},
			{Name: "b", Dependencies: []string{"a"}, Outputs: []string{"y"}},
			{Name: "c", Dependencies: []string{"b"}},
			{Name: "d", Dependencies: []string{"c"}},
		},
	}
	e.registry.Register("a", constant(task.Artifacts{"x": []byte("x")}))
	e.registry.Register("b", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		return nil, task.Permanentf("bad input")
	})
	var invoked atomic.Int32
	skipped := func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		invoked.Add(1)
		return nil, nil
	}
	e.registry.Register("c", skipped)
	e.registry.Register("d", skipped)

	state := e.run(t, spec)

	assert.Equal(t, api.StatusFailed, state.Status)
	assert.False(t, state.Promoted)
	assert.Equal(t, int32(0), invoked.Load())
	statuses := state.TaskStatuses()
	assert.Equal(t, api.StatusSucceeded, statuses["a"])
	assert.Equal(t, api.StatusFailed, statuses["b"])
	assert.Equal(t, api.StatusSkipped, statuses["c"])
	assert.Equal(t, api.StatusSkipped, statuses["d"])

	// No promotion happened.
	_, err := e.artifacts.Latest(context.Background())
	assert.Error(t, err)
}

func TestInputUnavailable(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "missing",
		Tasks: []api.TaskSpec{
			{Name: "a", Outputs: []string{"x", "y"}},
			{Name: "b", Dependencies: []string{"a"}, Retry: fastRetry(5)},
		},
	}
	// a declares two outputs but only produces one.
	e.registry.Register("a", constant(task.Artifacts{"x": []byte("x")}))
	var invoked atomic.Int32
	e.registry.Register("b", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		invoked.Add(1)
		return nil, nil
	})

	state := e.run(t, spec)

	assert.Equal(t, api.StatusFailed, state.Status)
	assert.Equal(t, int32(0), invoked.Load())
	ts, err := e.sched.TaskState(context.Background(), state.RunID, "b")
	require.NoError(t, err)
	assert.Equal(t, api.StatusFailed, ts.Status)
	require.NotNil(t, ts.Failure)
	assert.Equal(t, api.FailureInputUnavailable, ts.Failure.Kind)
	assert.Equal(t, 0, ts.Failure.Attempts)
}

func TestTimeoutCountsAgainstRetries(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "timeout",
		Tasks: []api.TaskSpec{
			{Name: "slow", Retry: fastRetry(2), Timeout: 20 * time.Millisecond},
		},
	}
	var calls atomic.Int32
	e.registry.Register("slow", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		calls.Add(1)
		select {
		case <-time.After(time.Second):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	state := e.run(t, spec)

	assert.Equal(t, api.StatusFailed, state.Status)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, state.Failures(), 1)
	assert.Equal(t, api.FailureTimeout, state.Failures()[0].Kind)
	assert.Equal(t, 2, state.Failures()[0].Attempts)
}

func TestCancelRun(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "cancel",
		Tasks: []api.TaskSpec{
			{Name: "long", Outputs: []string{"out"}, Retry: fastRetry(5)},
			{Name: "after", Dependencies: []string{"long"}},
		},
	}
	started := make(chan struct{})
	e.registry.Register("long", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	var invoked atomic.Int32
	e.registry.Register("after", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		invoked.Add(1)
		return nil, nil
	})

	ctx := context.Background()
	runID, err := e.sched.Submit(ctx, spec, nil)
	require.NoError(t, err)
	<-started
	require.NoError(t, e.sched.Cancel(ctx, runID))
	require.NoError(t, e.sched.Wait(ctx, runID))

	state, err := e.sched.RunState(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusFailed, state.Status)
	assert.Equal(t, int32(0), invoked.Load())
	statuses := state.TaskStatuses()
	assert.Equal(t, api.StatusFailed, statuses["long"])
	assert.Equal(t, api.StatusSkipped, statuses["after"])
	require.Len(t, state.Failures(), 1)
	assert.Equal(t, api.FailureCancelled, state.Failures()[0].Kind)

	// Cancelling again fails, the run is no longer active.
	assert.Error(t, e.sched.Cancel(ctx, runID))
}

func TestCancelUnknownRun(t *testing.T) {
	e := newTestEngine(t)
	err := e.sched.Cancel(context.Background(), "nope")
	require.Error(t, err)
	nf := store.ErrNotFound{}
	assert.ErrorAs(t, err, &nf)
}

func TestRerunFailed(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "rerun",
		Tasks: []api.TaskSpec{
			{Name: "a", Outputs: []string{"x"}},
			{Name: "b", Dependencies: []string{"a"}, Outputs: []string{"y"}},
			{Name: "c", Dependencies: []string{"b"}},
		},
	}
	var aCalls atomic.Int32
	e.registry.Register("a", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		aCalls.Add(1)
		return task.Artifacts{"x": []byte("x")}, nil
	})
	var bFails atomic.Bool
	bFails.Store(true)
	e.registry.Register("b", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		if bFails.Load() {
			return nil, task.Permanentf("not ready")
		}
		x, _ := in.Output("a", "x")
		return task.Artifacts{"y": append([]byte("y:"), x...)}, nil
	})
	e.registry.Register("c", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		y, ok := in.Output("b", "y")
		require.True(t, ok)
		assert.Equal(t, "y:x", string(y))
		return nil, nil
	})

	failed := e.run(t, spec)
	require.Equal(t, api.StatusFailed, failed.Status)
	require.Equal(t, int32(1), aCalls.Load())

	// Fix the failure cause and rerun only the failed subgraph.
	bFails.Store(false)
	ctx := context.Background()
	newID, err := e.sched.RerunFailed(ctx, failed.RunID)
	require.NoError(t, err)
	require.NotEqual(t, failed.RunID, newID)
	require.NoError(t, e.sched.Wait(ctx, newID))

	state, err := e.sched.RunState(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusSucceeded, state.Status)
	assert.True(t, state.Promoted)
	// a was not re-invoked, its artifact was copied into the new run.
	assert.Equal(t, int32(1), aCalls.Load())
	data, err := e.artifacts.Get(ctx, newID, "a", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	// The promoted set belongs to the new run.
	latest, err := e.artifacts.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, newID, latest)

	// A succeeded run has nothing to rerun.
	_, err = e.sched.RerunFailed(ctx, newID)
	assert.Error(t, err)
}

func TestRunIsolationAndPromotionOrder(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "isolation",
		Tasks: []api.TaskSpec{
			{Name: "gen", Outputs: []string{"out"}},
		},
	}
	var fail atomic.Bool
	var seq atomic.Int32
	e.registry.Register("gen", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		if fail.Load() {
			return nil, task.Permanentf("boom")
		}
		return task.Artifacts{"out": []byte{byte('0' + seq.Add(1))}}, nil
	})

	first := e.run(t, spec)
	require.Equal(t, api.StatusSucceeded, first.Status)
	second := e.run(t, spec)
	require.Equal(t, api.StatusSucceeded, second.Status)

	ctx := context.Background()
	d1, err := e.artifacts.Get(ctx, first.RunID, "gen", "out")
	require.NoError(t, err)
	d2, err := e.artifacts.Get(ctx, second.RunID, "gen", "out")
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)

	latest, err := e.artifacts.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest)

	// A failed run never moves the promoted pointer.
	fail.Store(true)
	third := e.run(t, spec)
	require.Equal(t, api.StatusFailed, third.Status)
	latest, err = e.artifacts.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest)
}

func TestParallelBranches(t *testing.T) {
	e := newTestEngine(t)
	spec := api.PipelineSpec{
		Name: "fanout",
		Tasks: []api.TaskSpec{
			{Name: "root", Outputs: []string{"seed"}},
			{Name: "left", Dependencies: []string{"root"}, Outputs: []string{"l"}},
			{Name: "right", Dependencies: []string{"root"}, Outputs: []string{"r"}},
			{Name: "join", Dependencies: []string{"left", "right"}},
		},
	}
	e.registry.Register("root", constant(task.Artifacts{"seed": []byte("s")}))
	e.registry.Register("left", constant(task.Artifacts{"l": []byte("l")}))
	e.registry.Register("right", constant(task.Artifacts{"r": []byte("r")}))
	e.registry.Register("join", func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		_, okL := in.Output("left", "l")
		_, okR := in.Output("right", "r")
		require.True(t, okL)
		require.True(t, okR)
		// join only sees its declared dependencies.
		_, okRoot := in.Output("root", "seed")
		assert.False(t, okRoot)
		return nil, nil
	})

	state := e.run(t, spec)
	assert.Equal(t, api.StatusSucceeded, state.Status)
}

func TestSubmitRejectsInvalidSpec(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	{ // Cyclic spec
		spec := api.PipelineSpec{
			Name: "cycle",
			Tasks: []api.TaskSpec{
				{Name: "a", Dependencies: []string{"b"}},
				{Name: "b", Dependencies: []string{"a"}},
			},
		}
		_, err := e.sched.Submit(ctx, spec, nil)
		assert.Error(t, err)
	}
	{ // Unregistered body
		spec := api.PipelineSpec{
			Name:  "unbound",
			Tasks: []api.TaskSpec{{Name: "ghost"}},
		}
		_, err := e.sched.Submit(ctx, spec, nil)
		assert.Error(t, err)
	}
	// No run record was created for either.
	runs, err := e.sched.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
