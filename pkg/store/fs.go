package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/api"
)

// NewFSStore returns a Store persisting each run record as a JSON document
// under the given directory. Records are written through on every mutation
// with an atomic rename, so the last known state of an in-flight run can be
// inspected after a crash.
func NewFSStore(dir string) (Store, error) {
	if dir == "" {
		return nil, errors.New("run store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cannot create run store directory %s", dir)
	}
	return &fsStore{dir: dir}, nil
}

// record is the on-disk layout of one run.
type record struct {
	Spec  api.PipelineSpec `json:"spec"`
	Args  interface{}      `json:"args,omitempty"`
	State api.RunState     `json:"state"`
}

type fsStore struct {
	mu  sync.Mutex
	dir string
}

func (s *fsStore) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

func (s *fsStore) load(runID string) (*record, error) {
	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NotFoundError(fmt.Sprintf("run %s", runID))
		}
		return nil, errors.Wrapf(err, "cannot read record of run %s", runID)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "cannot decode record of run %s", runID)
	}
	return &rec, nil
}

func (s *fsStore) save(runID string, rec *record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "cannot encode record of run %s", runID)
	}
	tmp := s.path(runID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "cannot write record of run %s", runID)
	}
	if err := os.Rename(tmp, s.path(runID)); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "cannot write record of run %s", runID)
	}
	return nil
}

// update applies f to the record of runID and writes it back.
func (s *fsStore) update(runID string, f func(*record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(runID)
	if err != nil {
		return err
	}
	if err := f(rec); err != nil {
		return err
	}
	return s.save(runID, rec)
}

func (s *fsStore) CreateRun(ctx context.Context, runID string, spec api.PipelineSpec, args interface{}) error {
	now := time.Now()
	rec := record{
		Spec: spec,
		Args: args,
		State: api.RunState{
			RunID:      runID,
			Pipeline:   spec.Name,
			Status:     api.StatusPending,
			CreateTime: &now,
		},
	}
	for _, t := range spec.Tasks {
		rec.State.Tasks = append(rec.State.Tasks, api.TaskState{Name: t.Name, Status: api.StatusPending})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(runID, &rec)
}

func (s *fsStore) GetSpec(ctx context.Context, runID string) (api.PipelineSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(runID)
	if err != nil {
		return api.PipelineSpec{}, err
	}
	return rec.Spec, nil
}

func (s *fsStore) SetRunStatus(ctx context.Context, runID string, status api.Status, opt TimeOption) error {
	return s.update(runID, func(rec *record) error {
		rec.State.Status = status
		if !opt.StartTime.IsZero() {
			t := opt.StartTime
			rec.State.StartTime = &t
		}
		if !opt.EndTime.IsZero() {
			t := opt.EndTime
			rec.State.EndTime = &t
		}
		return nil
	})
}

func (s *fsStore) SetPromoted(ctx context.Context, runID string) error {
	return s.update(runID, func(rec *record) error {
		rec.State.Promoted = true
		return nil
	})
}

func taskState(rec *record, runID, task string) (*api.TaskState, error) {
	for i := range rec.State.Tasks {
		if rec.State.Tasks[i].Name == task {
			return &rec.State.Tasks[i], nil
		}
	}
	return nil, NotFoundError(fmt.Sprintf("task %s of run %s", task, runID))
}

func (s *fsStore) SetTaskStatus(ctx context.Context, runID, task string, status api.Status, opt TimeOption) error {
	return s.update(runID, func(rec *record) error {
		t, err := taskState(rec, runID, task)
		if err != nil {
			return err
		}
		t.Status = status
		if !opt.StartTime.IsZero() {
			ts := opt.StartTime
			t.StartTime = &ts
		}
		if !opt.EndTime.IsZero() {
			ts := opt.EndTime
			t.EndTime = &ts
		}
		return nil
	})
}

func (s *fsStore) SetTaskAttempts(ctx context.Context, runID, task string, attempts int) error {
	return s.update(runID, func(rec *record) error {
		t, err := taskState(rec, runID, task)
		if err != nil {
			return err
		}
		t.Attempts = attempts
		return nil
	})
}

func (s *fsStore) SetTaskFailure(ctx context.Context, runID, task string, failure api.Failure) error {
	return s.update(runID, func(rec *record) error {
		t, err := taskState(rec, runID, task)
		if err != nil {
			return err
		}
		f := failure
		t.Failure = &f
		return nil
	})
}

func (s *fsStore) SetTaskArtifacts(ctx context.Context, runID, task string, artifacts map[string]string) error {
	return s.update(runID, func(rec *record) error {
		t, err := taskState(rec, runID, task)
		if err != nil {
			return err
		}
		t.Artifacts = artifacts
		return nil
	})
}

func (s *fsStore) GetTaskStatuses(ctx context.Context, runID string) (map[string]api.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(runID)
	if err != nil {
		return nil, err
	}
	return rec.State.TaskStatuses(), nil
}

func (s *fsStore) GetTaskState(ctx context.Context, runID, task string) (api.TaskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(runID)
	if err != nil {
		return api.TaskState{}, err
	}
	t, err := taskState(rec, runID, task)
	if err != nil {
		return api.TaskState{}, err
	}
	return *t, nil
}

func (s *fsStore) GetRunState(ctx context.Context, runID string) (api.RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(runID)
	if err != nil {
		return api.RunState{}, err
	}
	return rec.State, nil
}

func (s *fsStore) ListRuns(ctx context.Context) ([]api.RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list run store directory %s", s.dir)
	}
	var res []api.RunInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		res = append(res, api.RunInfo{
			RunID:    rec.State.RunID,
			Pipeline: rec.State.Pipeline,
			Status:   rec.State.Status,
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RunID < res[j].RunID })
	return res, nil
}
