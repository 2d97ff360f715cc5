package artifact

import (
	"context"
	"fmt"
	"sync"
)

// NewInMemoryStore returns a new in-memory Store, used in tests and for
// ephemeral runs.
func NewInMemoryStore() Store {
	return &inMemory{
		artifacts: make(map[string][]byte),
	}
}

type inMemory struct {
	mu        sync.RWMutex
	artifacts map[string][]byte
	latest    string
	promoted  bool
}

func key(runID, task, name string) string {
	return fmt.Sprintf("%s/%s/%s", runID, task, name)
}

func (s *inMemory) Put(ctx context.Context, runID, task, name string, data []byte) (string, error) {
	if err := checkKey(runID, task, name); err != nil {
		return "", err
	}
	k := key(runID, task, name)
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.artifacts[k] = cp
	s.mu.Unlock()
	return "mem://" + k, nil
}

func (s *inMemory) Get(ctx context.Context, runID, task, name string) ([]byte, error) {
	if err := checkKey(runID, task, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.artifacts[key(runID, task, name)]
	s.mu.RUnlock()
	if !ok {
		return nil, NotFoundError(fmt.Sprintf("artifact %s", key(runID, task, name)))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *inMemory) Promote(ctx context.Context, runID string) error {
	if err := checkKey(runID); err != nil {
		return err
	}
	s.mu.Lock()
	s.latest = runID
	s.promoted = true
	s.mu.Unlock()
	return nil
}

func (s *inMemory) Latest(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.promoted {
		return "", NotFoundError("promoted run")
	}
	return s.latest, nil
}
