// Package repository holds the persistence and fan-out adapters used by
// the scheduler and the service layer.
package repository

import (
	"context"
	"sync"
	"time"

	"execoj/internal/execution/model"
	appErr "execoj/pkg/errors"
)

// MemoryResultStore keeps terminal results in process memory.
type MemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]*model.ExecutionResult
}

// NewMemoryResultStore creates an empty store.
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[string]*model.ExecutionResult)}
}

// Save stores a copy of result, replacing any earlier one.
func (s *MemoryResultStore) Save(_ context.Context, result *model.ExecutionResult) error {
	if result == nil || result.ID == "" {
		return appErr.ValidationError("requestId", "required")
	}
	stored := *result
	s.mu.Lock()
	s.results[result.ID] = &stored
	s.mu.Unlock()
	return nil
}

// Get returns the stored result or ExecutionNotFound.
func (s *MemoryResultStore) Get(_ context.Context, id string) (*model.ExecutionResult, error) {
	s.mu.RLock()
	result, ok := s.results[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErr.Newf(appErr.ExecutionNotFound, "execution %s not found", id)
	}
	out := *result
	return &out, nil
}

// DeleteOlderThan drops results that ended before cutoff.
func (s *MemoryResultStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, result := range s.results {
		if result.EndTime.Before(cutoff) {
			delete(s.results, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of retained results.
func (s *MemoryResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
