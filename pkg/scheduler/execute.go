package scheduler

import (
	gocontext "context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/api"
	"github.com/volgapavel/popov-exem/pkg/artifact"
	"github.com/volgapavel/popov-exem/pkg/events"
	"github.com/volgapavel/popov-exem/pkg/store"
	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// taskResult is reported by runTask when a task reaches a final status.
type taskResult struct {
	name      string
	status    api.Status
	attempts  int
	failure   *api.Failure
	artifacts map[string]string
}

// execute drives a run to completion: it repeatedly skips the tasks whose
// dependencies failed, launches the tasks whose dependencies all succeeded
// and waits for results, until no task is left to run.
func (s *scheduler) execute(ctx context.Context, runID string, spec api.PipelineSpec) {
	now := time.Now()
	s.setRunStatus(ctx, runID, api.StatusRunning, store.TimeOption{StartTime: now})
	s.publish(ctx, events.Event{Type: events.TypeRunSubmitted, RunID: runID, Status: api.StatusRunning})

	order, err := spec.TopologicalOrder()
	if err != nil {
		// The spec was validated at submission, a cycle here is a bug.
		ctx.Logger().Error(errors.Wrapf(err, "cannot order tasks of run %s", runID))
		s.finish(ctx, runID, api.StatusFailed)
		return
	}

	statuses, err := s.runs.GetTaskStatuses(ctx, runID)
	if err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot read task statuses of run %s", runID))
		s.finish(ctx, runID, api.StatusFailed)
		return
	}

	results := make(chan taskResult)
	running := 0
	for {
		// Skip pending tasks downstream of a failure, or all of them once
		// the run is cancelled. Walking in topological order propagates
		// skips through the whole subgraph in one pass.
		for _, name := range order {
			if statuses[name] != api.StatusPending {
				continue
			}
			skip := ctx.Err() != nil
			if !skip {
				t, _ := spec.Task(name)
				for _, dep := range t.Dependencies {
					if statuses[dep] == api.StatusFailed || statuses[dep] == api.StatusSkipped {
						skip = true
						break
					}
				}
			}
			if skip {
				statuses[name] = api.StatusSkipped
				s.setTaskStatus(ctx, runID, name, api.StatusSkipped, store.TimeOption{EndTime: time.Now()})
				s.publish(ctx, events.Event{Type: events.TypeTaskFinished, RunID: runID, Task: name, Status: api.StatusSkipped})
			}
		}

		// Launch every pending task whose dependencies all succeeded.
		for _, name := range order {
			if statuses[name] != api.StatusPending {
				continue
			}
			t, _ := spec.Task(name)
			ready := true
			for _, dep := range t.Dependencies {
				if statuses[dep] != api.StatusSucceeded {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			statuses[name] = api.StatusRunning
			s.setTaskStatus(ctx, runID, name, api.StatusRunning, store.TimeOption{StartTime: time.Now()})
			s.publish(ctx, events.Event{Type: events.TypeTaskRunning, RunID: runID, Task: name, Status: api.StatusRunning})
			running++
			go s.runTask(context.WithTask(ctx, t.Name), runID, spec, t, results)
		}

		if running == 0 {
			break
		}

		res := <-results
		running--
		statuses[res.name] = res.status
		if res.attempts > 0 {
			if err := s.runs.SetTaskAttempts(ctx, runID, res.name, res.attempts); err != nil {
				ctx.Logger().Error(errors.Wrapf(err, "cannot record attempts of task %s", res.name))
			}
		}
		if res.failure != nil {
			if err := s.runs.SetTaskFailure(ctx, runID, res.name, *res.failure); err != nil {
				ctx.Logger().Error(errors.Wrapf(err, "cannot record failure of task %s", res.name))
			}
		}
		if res.artifacts != nil {
			if err := s.runs.SetTaskArtifacts(ctx, runID, res.name, res.artifacts); err != nil {
				ctx.Logger().Error(errors.Wrapf(err, "cannot record artifacts of task %s", res.name))
			}
		}
		s.setTaskStatus(ctx, runID, res.name, res.status, store.TimeOption{EndTime: time.Now()})
		evt := events.Event{Type: events.TypeTaskFinished, RunID: runID, Task: res.name, Status: res.status}
		if res.failure != nil {
			evt.Data = events.FailureEventData{Kind: res.failure.Kind, Attempts: res.failure.Attempts, Cause: res.failure.Cause}
		}
		s.publish(ctx, evt)
	}

	succeeded := true
	for _, st := range statuses {
		if st != api.StatusSucceeded {
			succeeded = false
			break
		}
	}
	if !succeeded {
		s.finish(ctx, runID, api.StatusFailed)
		return
	}

	// Every task succeeded: promote the run's artifacts as the latest
	// known-good set before reporting success.
	if err := s.artifacts.Promote(ctx, runID); err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot promote artifacts of run %s", runID))
		s.finish(ctx, runID, api.StatusFailed)
		return
	}
	if err := s.runs.SetPromoted(ctx, runID); err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot record promotion of run %s", runID))
	}
	s.publish(ctx, events.Event{Type: events.TypeRunPromoted, RunID: runID})
	s.finish(ctx, runID, api.StatusSucceeded)
}

func (s *scheduler) finish(ctx context.Context, runID string, status api.Status) {
	s.setRunStatus(ctx, runID, status, store.TimeOption{EndTime: time.Now()})
	s.publish(ctx, events.Event{Type: events.TypeRunFinished, RunID: runID, Status: status})
	ctx.Logger().Infof("run %s finished with status %s", runID, status)
}

func (s *scheduler) setRunStatus(ctx context.Context, runID string, status api.Status, opt store.TimeOption) {
	if err := s.runs.SetRunStatus(ctx, runID, status, opt); err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot set status %s on run %s", status, runID))
	}
}

func (s *scheduler) setTaskStatus(ctx context.Context, runID, name string, status api.Status, opt store.TimeOption) {
	if err := s.runs.SetTaskStatus(ctx, runID, name, status, opt); err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot set status %s on task %s", status, name))
	}
}

// runTask gathers the task's inputs, runs its body under the retry policy
// and persists its outputs. It reports exactly one result.
func (s *scheduler) runTask(ctx context.Context, runID string, pipeline api.PipelineSpec, spec api.TaskSpec, results chan<- taskResult) {
	fail := func(kind api.FailureKind, attempts int, cause error) {
		ctx.Logger().Error(errors.Wrapf(cause, "task %s failed (%s)", spec.Name, kind))
		results <- taskResult{
			name:     spec.Name,
			status:   api.StatusFailed,
			attempts: attempts,
			failure: &api.Failure{
				Task:     spec.Name,
				Kind:     kind,
				Attempts: attempts,
				Cause:    cause.Error(),
			},
		}
	}

	inputs, err := s.gatherInputs(ctx, runID, pipeline, spec)
	if err != nil {
		// A dependency succeeded but a declared output is missing. The
		// body is never invoked and there is nothing to retry.
		fail(api.FailureInputUnavailable, 0, err)
		return
	}

	body, err := s.registry.Body(spec.Name)
	if err != nil {
		fail(api.FailurePermanent, 0, err)
		return
	}

	out, attempts, kind, err := s.attempt(ctx, spec, body, inputs)
	if err != nil {
		fail(kind, attempts, err)
		return
	}

	locations := make(map[string]string, len(out))
	for name, data := range out {
		loc, err := s.artifacts.Put(ctx, runID, spec.Name, name, data)
		if err != nil {
			// The body is not re-invoked for a storage failure, its
			// work is done and only the write misbehaved.
			fail(api.FailureStorageWrite, attempts, errors.Wrapf(err, "cannot store artifact %s", name))
			return
		}
		locations[name] = loc
	}

	results <- taskResult{
		name:      spec.Name,
		status:    api.StatusSucceeded,
		attempts:  attempts,
		artifacts: locations,
	}
}

// gatherInputs fetches the declared outputs of every dependency from the
// artifact store, scoped to the current run.
func (s *scheduler) gatherInputs(ctx context.Context, runID string, pipeline api.PipelineSpec, spec api.TaskSpec) (task.Inputs, error) {
	inputs := make(task.Inputs, len(spec.Dependencies))
	for _, dep := range spec.Dependencies {
		depSpec, _ := pipeline.Task(dep)
		arts := make(task.Artifacts, len(depSpec.Outputs))
		for _, out := range depSpec.Outputs {
			data, err := s.artifacts.Get(ctx, runID, dep, out)
			if err != nil {
				nf := artifact.ErrNotFound{}
				if errors.As(errors.Cause(err), &nf) {
					return nil, errors.Wrapf(err, "artifact %s of task %s unavailable", out, dep)
				}
				return nil, errors.Wrapf(err, "cannot read artifact %s of task %s", out, dep)
			}
			arts[out] = data
		}
		inputs[dep] = arts
	}
	return inputs, nil
}

// attempt invokes the body under the task's retry policy. It returns the
// body's artifacts, the number of attempts made and, on terminal failure,
// the failure kind.
func (s *scheduler) attempt(ctx context.Context, spec api.TaskSpec, body task.Body, inputs task.Inputs) (task.Artifacts, int, api.FailureKind, error) {
	var (
		out      task.Artifacts
		attempts int
		kind     api.FailureKind
	)

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(spec.Retry), uint64(spec.Retry.Attempts()-1)), ctx)
	op := func() error {
		attempts++
		actx := ctx
		var cancel gocontext.CancelFunc = func() {}
		if spec.Timeout > 0 {
			var gctx gocontext.Context
			gctx, cancel = gocontext.WithTimeout(ctx, spec.Timeout)
			actx = context.WithTask(context.WithRunID(context.FromContext(gctx), ctx.RunID()), ctx.Task())
		}
		defer cancel()

		res, err := invoke(actx, body, inputs)
		if err == nil {
			out = res
			return nil
		}
		ctx.Logger().Warnf("attempt %d of task %s failed: %v", attempts, spec.Name, err)
		switch {
		case ctx.Err() != nil:
			// The run was cancelled, stop retrying.
			kind = api.FailureCancelled
			return backoff.Permanent(err)
		case actx.Err() == gocontext.DeadlineExceeded:
			// The attempt timed out, which counts as a retriable failure.
			kind = api.FailureTimeout
			return err
		case !task.ShouldRetry(err):
			kind = api.FailurePermanent
			return backoff.Permanent(err)
		default:
			kind = api.FailureTransient
			return err
		}
	}

	if err := backoff.Retry(op, policy); err != nil {
		if ctx.Err() != nil {
			// The run was cancelled during a back-off wait.
			kind = api.FailureCancelled
		}
		return nil, attempts, kind, err
	}
	return out, attempts, "", nil
}

// invoke runs the body in its own goroutine so an attempt can be abandoned
// when its context expires even if the body does not observe it.
func invoke(ctx context.Context, body task.Body, inputs task.Inputs) (task.Artifacts, error) {
	type result struct {
		out task.Artifacts
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := body(ctx, inputs)
		done <- result{out: out, err: err}
	}()
	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// newBackOff builds the exponential back-off for a retry policy. Elapsed
// time never limits attempts, only the attempt count does.
func newBackOff(r api.RetryPolicy) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = api.DefaultInitialInterval
	b.MaxInterval = api.DefaultMaxInterval
	b.Multiplier = api.DefaultMultiplier
	b.MaxElapsedTime = 0
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		b.MaxInterval = r.MaxInterval
	}
	if r.Multiplier > 0 {
		b.Multiplier = r.Multiplier
	}
	return b
}
