package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/volgapavel/popov-exem/pkg/api"
)

type run struct {
	spec       api.PipelineSpec
	args       interface{}
	status     api.Status
	promoted   bool
	tasks      map[string]*taskRecord
	createTime *time.Time
	startTime  *time.Time
	endTime    *time.Time
}

type taskRecord struct {
	name      string
	status    api.Status
	attempts  int
	failure   *api.Failure
	artifacts map[string]string
	startTime *time.Time
	endTime   *time.Time
}

// NewInMemoryStore returns a new InMemory store
func NewInMemoryStore() Store {
	return &inMemory{
		runs: make(map[string]*run),
	}
}

type inMemory struct {
	mu   sync.RWMutex
	runs map[string]*run
}

func (s *inMemory) CreateRun(ctx context.Context, runID string, spec api.PipelineSpec, args interface{}) error {
	now := time.Now()
	tasks := make(map[string]*taskRecord, len(spec.Tasks))
	for _, t := range spec.Tasks {
		tasks[t.Name] = &taskRecord{
			name:   t.Name,
			status: api.StatusPending,
		}
	}
	s.mu.Lock()
	s.runs[runID] = &run{
		spec:       spec,
		args:       args,
		status:     api.StatusPending,
		tasks:      tasks,
		createTime: &now,
	}
	s.mu.Unlock()
	return nil
}

func (s *inMemory) GetSpec(ctx context.Context, runID string) (api.PipelineSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.runs[runID]
	if !exists {
		return api.PipelineSpec{}, NotFoundError(fmt.Sprintf("run %s", runID))
	}
	return r.spec, nil
}

func (s *inMemory) SetRunStatus(ctx context.Context, runID string, status api.Status, opt TimeOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.runs[runID]
	if !exists {
		return NotFoundError(fmt.Sprintf("run %s", runID))
	}
	r.status = status
	if !opt.StartTime.IsZero() {
		t := opt.StartTime
		r.startTime = &t
	}
	if !opt.EndTime.IsZero() {
		t := opt.EndTime
		r.endTime = &t
	}
	return nil
}

func (s *inMemory) SetPromoted(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.runs[runID]
	if !exists {
		return NotFoundError(fmt.Sprintf("run %s", runID))
	}
	r.promoted = true
	return nil
}

func (s *inMemory) task(runID, task string) (*taskRecord, error) {
	r, exists := s.runs[runID]
	if !exists {
		return nil, NotFoundError(fmt.Sprintf("run %s", runID))
	}
	t, exists := r.tasks[task]
	if !exists {
		return nil, NotFoundError(fmt.Sprintf("task %s of run %s", task, runID))
	}
	return t, nil
}

func (s *inMemory) SetTaskStatus(ctx context.Context, runID, task string, status api.Status, opt TimeOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.task(runID, task)
	if err != nil {
		return err
	}
	t.status = status
	if !opt.StartTime.IsZero() {
		ts := opt.StartTime
		t.startTime = &ts
	}
	if !opt.EndTime.IsZero() {
		ts := opt.EndTime
		t.endTime = &ts
	}
	return nil
}

func (s *inMemory) SetTaskAttempts(ctx context.Context, runID, task string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.task(runID, task)
	if err != nil {
		return err
	}
	t.attempts = attempts
	return nil
}

func (s *inMemory) SetTaskFailure(ctx context.Context, runID, task string, failure api.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.task(runID, task)
	if err != nil {
		return err
	}
	f := failure
	t.failure = &f
	return nil
}

func (s *inMemory) SetTaskArtifacts(ctx context.Context, runID, task string, artifacts map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.task(runID, task)
	if err != nil {
		return err
	}
	cp := make(map[string]string, len(artifacts))
	for k, v := range artifacts {
		cp[k] = v
	}
	t.artifacts = cp
	return nil
}

func (s *inMemory) GetTaskStatuses(ctx context.Context, runID string) (map[string]api.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.runs[runID]
	if !exists {
		return nil, NotFoundError(fmt.Sprintf("run %s", runID))
	}
	res := make(map[string]api.Status, len(r.tasks))
	for _, t := range r.tasks {
		res[t.name] = t.status
	}
	return res, nil
}

func (s *inMemory) GetTaskState(ctx context.Context, runID, task string) (api.TaskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.task(runID, task)
	if err != nil {
		return api.TaskState{}, err
	}
	return t.state(), nil
}

func (s *inMemory) GetRunState(ctx context.Context, runID string) (api.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.runs[runID]
	if !exists {
		return api.RunState{}, NotFoundError(fmt.Sprintf("run %s", runID))
	}
	state := api.RunState{
		RunID:      runID,
		Pipeline:   r.spec.Name,
		Status:     r.status,
		Promoted:   r.promoted,
		CreateTime: r.createTime,
		StartTime:  r.startTime,
		EndTime:    r.endTime,
	}
	// Keep task order deterministic: declaration order of the spec.
	for _, ts := range r.spec.Tasks {
		if t, ok := r.tasks[ts.Name]; ok {
			state.Tasks = append(state.Tasks, t.state())
		}
	}
	return state, nil
}

func (s *inMemory) ListRuns(ctx context.Context) ([]api.RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]api.RunInfo, 0, len(s.runs))
	for id, r := range s.runs {
		res = append(res, api.RunInfo{RunID: id, Pipeline: r.spec.Name, Status: r.status})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RunID < res[j].RunID })
	return res, nil
}

func (t *taskRecord) state() api.TaskState {
	st := api.TaskState{
		Name:      t.name,
		Status:    t.status,
		Attempts:  t.attempts,
		StartTime: t.startTime,
		EndTime:   t.endTime,
	}
	if t.failure != nil {
		f := *t.failure
		st.Failure = &f
	}
	if len(t.artifacts) > 0 {
		st.Artifacts = make(map[string]string, len(t.artifacts))
		for k, v := range t.artifacts {
			st.Artifacts[k] = v
		}
	}
	return st
}
