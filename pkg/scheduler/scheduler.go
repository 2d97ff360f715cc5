// Package scheduler executes pipeline runs: it resolves the task order from
// the DAG, feeds each task the artifacts of its dependencies, applies the
// per-task retry policy, skips the descendants of a failure and promotes the
// run's artifacts once every task succeeded.
package scheduler

import (
	gocontext "context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/api"
	"github.com/volgapavel/popov-exem/pkg/artifact"
	"github.com/volgapavel/popov-exem/pkg/broker"
	"github.com/volgapavel/popov-exem/pkg/events"
	"github.com/volgapavel/popov-exem/pkg/store"
	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// Scheduler defines the entries of the pipeline engine.
type Scheduler interface {
	// Submit validates the spec, creates a run record and starts executing
	// the run asynchronously. It returns the run identifier.
	Submit(ctx context.Context, spec api.PipelineSpec, args interface{}) (string, error)

	// Cancel cancels a running run. The task currently running fails with a
	// cancelled cause, downstream tasks are skipped.
	Cancel(ctx context.Context, runID string) error

	// RerunFailed creates a new run from a failed run's spec, reusing the
	// artifacts of the tasks that succeeded and executing only the
	// previously failed or skipped subgraph.
	RerunFailed(ctx context.Context, runID string) (string, error)

	// Wait blocks until the run reaches a final status or ctx is done.
	Wait(ctx context.Context, runID string) error

	// RunState returns the record of a run.
	RunState(ctx context.Context, runID string) (api.RunState, error)

	// TaskState returns the state of a single task of a run.
	TaskState(ctx context.Context, runID, taskName string) (api.TaskState, error)

	// ListRuns returns basic information about every known run.
	ListRuns(ctx context.Context) ([]api.RunInfo, error)
}

// Option configures the scheduler.
type Option func(*scheduler)

// WithBroker makes the scheduler publish lifecycle events to the given
// broker exchange.
func WithBroker(b broker.Broker, exchange string) Option {
	return func(s *scheduler) {
		s.broker = b
		s.exchange = exchange
	}
}

// NewScheduler returns a new instance of the pipeline scheduler.
func NewScheduler(runs store.Store, artifacts artifact.Store, registry *task.Registry, opts ...Option) (Scheduler, error) {
	if runs == nil || artifacts == nil || registry == nil {
		return nil, errors.New("run store, artifact store and registry are required")
	}
	s := &scheduler{
		runs:      runs,
		artifacts: artifacts,
		registry:  registry,
		broker:    broker.NewNoopBroker(),
		active:    make(map[string]*activeRun),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

type scheduler struct {
	runs      store.Store
	artifacts artifact.Store
	registry  *task.Registry
	broker    broker.Broker
	exchange  string

	mu     sync.Mutex
	active map[string]*activeRun
}

type activeRun struct {
	cancel gocontext.CancelFunc
	done   chan struct{}
}

func (s *scheduler) Submit(ctx context.Context, spec api.PipelineSpec, args interface{}) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	// Refuse to start a run with unbound tasks.
	for _, t := range spec.Tasks {
		if _, err := s.registry.Body(t.Name); err != nil {
			return "", err
		}
	}

	runID := newRunID()
	ctx = context.WithRunID(ctx, runID)
	ctx.Logger().Infof("starting pipeline %s", spec.Name)

	if err := s.runs.CreateRun(ctx, runID, spec, args); err != nil {
		return "", errors.Wrapf(err, "cannot create run for pipeline %s", spec.Name)
	}
	s.start(ctx, runID, spec)
	return runID, nil
}

// start registers the run as active and launches its execution.
func (s *scheduler) start(ctx context.Context, runID string, spec api.PipelineSpec) {
	// The run context is detached from the caller's: a run outlives the
	// request that submitted it and is only cancelled through Cancel.
	rctx, cancel := gocontext.WithCancel(gocontext.Background())
	a := &activeRun{cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.active[runID] = a
	s.mu.Unlock()

	runCtx := context.WithRunID(context.FromContext(rctx), runID)
	runCtx = context.WithCorrelationID(runCtx, ctx.CorrelationID())

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.active, runID)
			s.mu.Unlock()
			close(a.done)
		}()
		s.execute(runCtx, runID, spec)
	}()
}

func (s *scheduler) Cancel(ctx context.Context, runID string) error {
	s.mu.Lock()
	a, ok := s.active[runID]
	s.mu.Unlock()
	if !ok {
		return store.NotFoundError(fmt.Sprintf("active run %s", runID))
	}
	ctx.Logger().Infof("cancelling run %s", runID)
	a.cancel()
	return nil
}

func (s *scheduler) Wait(ctx context.Context, runID string) error {
	s.mu.Lock()
	a, ok := s.active[runID]
	s.mu.Unlock()
	if !ok {
		// Not active: the run either finished already or never existed.
		_, err := s.runs.GetRunState(ctx, runID)
		return err
	}
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *scheduler) RerunFailed(ctx context.Context, runID string) (string, error) {
	prior, err := s.runs.GetRunState(ctx, runID)
	if err != nil {
		return "", err
	}
	if !prior.Status.Finished() {
		return "", errors.Errorf("run %s is not finished", runID)
	}
	if prior.Status == api.StatusSucceeded {
		return "", errors.Errorf("run %s succeeded, nothing to rerun", runID)
	}
	spec, err := s.runs.GetSpec(ctx, runID)
	if err != nil {
		return "", err
	}

	newID := newRunID()
	ctx = context.WithRunID(ctx, newID)
	ctx.Logger().Infof("rerunning failed tasks of run %s", runID)
	if err := s.runs.CreateRun(ctx, newID, spec, nil); err != nil {
		return "", errors.Wrapf(err, "cannot create run for pipeline %s", spec.Name)
	}

	// Reuse the prior run's successful work: copy its artifacts into the
	// new run's namespace and mark those tasks succeeded up front.
	for _, ts := range prior.Tasks {
		if ts.Status != api.StatusSucceeded {
			continue
		}
		taskSpec, ok := spec.Task(ts.Name)
		if !ok {
			return "", errors.Errorf("task %s of run %s not in spec", ts.Name, runID)
		}
		locations := make(map[string]string, len(taskSpec.Outputs))
		for _, out := range taskSpec.Outputs {
			data, err := s.artifacts.Get(ctx, runID, ts.Name, out)
			if err != nil {
				return "", errors.Wrapf(err, "cannot reuse artifact %s of task %s", out, ts.Name)
			}
			loc, err := s.artifacts.Put(ctx, newID, ts.Name, out, data)
			if err != nil {
				return "", errors.Wrapf(err, "cannot copy artifact %s of task %s", out, ts.Name)
			}
			locations[out] = loc
		}
		if err := s.runs.SetTaskArtifacts(ctx, newID, ts.Name, locations); err != nil {
			return "", errors.Wrapf(err, "cannot record artifacts of task %s", ts.Name)
		}
		now := time.Now()
		if err := s.runs.SetTaskStatus(ctx, newID, ts.Name, api.StatusSucceeded, store.TimeOption{StartTime: now, EndTime: now}); err != nil {
			return "", errors.Wrapf(err, "cannot mark task %s succeeded", ts.Name)
		}
	}

	s.start(ctx, newID, spec)
	return newID, nil
}

func (s *scheduler) RunState(ctx context.Context, runID string) (api.RunState, error) {
	return s.runs.GetRunState(ctx, runID)
}

func (s *scheduler) TaskState(ctx context.Context, runID, taskName string) (api.TaskState, error) {
	return s.runs.GetTaskState(ctx, runID, taskName)
}

func (s *scheduler) ListRuns(ctx context.Context) ([]api.RunInfo, error) {
	return s.runs.ListRuns(ctx)
}

// newRunID returns a timestamp-derived identifier, unique under concurrent
// submissions.
func newRunID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405"), uuid.New().String()[:8])
}

// publish sends a lifecycle event, logging instead of failing: event
// delivery is best effort and never affects the run outcome.
func (s *scheduler) publish(ctx context.Context, evt events.Event) {
	evt.CorrelationID = ctx.CorrelationID()
	evt.Time = time.Now()
	if err := s.broker.Publish(ctx, evt, s.exchange, ""); err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot publish event %s", evt))
	}
}
