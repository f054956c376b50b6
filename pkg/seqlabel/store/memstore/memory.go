// Package memstore is an in-memory store.Store for tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annolab/seqlabel/pkg/seqlabel/store"
)

type outcomeKey struct {
	runID string
	index int
}

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]store.Run
	outcomes map[outcomeKey]store.Outcome
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		runs:     make(map[string]store.Run),
		outcomes: make(map[outcomeKey]store.Outcome),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// CreateRun inserts a run; duplicate ids are rejected.
func (s *Store) CreateRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("create run: duplicate id %s", r.ID)
	}
	s.runs[r.ID] = r
	return nil
}

// FinishRun stamps completion on an existing run.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time, processed, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("finish run: unknown id %s", id)
	}
	r.FinishedAt = finishedAt
	r.Processed = processed
	r.Failed = failed
	s.runs[id] = r
	return nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	runs := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// RecordOutcome upserts one record's final state.
func (s *Store) RecordOutcome(ctx context.Context, o store.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[outcomeKey{o.RunID, o.RecordIndex}] = o
	return nil
}

// ListOutcomes returns a run's outcomes in record order.
func (s *Store) ListOutcomes(ctx context.Context, runID string) ([]store.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var outcomes []store.Outcome
	for k, o := range s.outcomes {
		if k.runID == runID {
			outcomes = append(outcomes, o)
		}
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].RecordIndex < outcomes[j].RecordIndex })
	return outcomes, nil
}

// FailedIndices returns the indices of terminally failed records.
func (s *Store) FailedIndices(ctx context.Context, runID string) ([]int, error) {
	outcomes, _ := s.ListOutcomes(ctx, runID)
	var indices []int
	for _, o := range outcomes {
		if o.Status == store.StatusFailed {
			indices = append(indices, o.RecordIndex)
		}
	}
	return indices, nil
}
