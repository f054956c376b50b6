// Package store defines the run ledger: a durable record of labeling runs
// and per-record outcomes. The ledger is observational — resumption
// correctness rests on the checkpoint and output log alone — but it is what
// the run summary and the `runs` command read from.
package store

import (
	"context"
	"time"
)

// Record processing statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Error classes recorded with failed outcomes.
const (
	ClassRateLimited     = "rate_limited"
	ClassTransient       = "transient"
	ClassContentFiltered = "content_filtered"
	ClassMalformed       = "malformed_response"
	ClassSpanAlignment   = "span_alignment"
)

// Store persists runs and their per-record outcomes.
type Store interface {
	Close() error

	// Runs
	CreateRun(ctx context.Context, r Run) error
	FinishRun(ctx context.Context, id string, finishedAt time.Time, processed, failed int) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Outcomes
	RecordOutcome(ctx context.Context, o Outcome) error
	ListOutcomes(ctx context.Context, runID string) ([]Outcome, error)
	FailedIndices(ctx context.Context, runID string) ([]int, error)
}

// Run is one invocation of the batch driver.
type Run struct {
	ID         string // ULID
	InputPath  string
	OutputPath string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Processed  int
	Failed     int
}

// Outcome is the final state of one record within a run.
type Outcome struct {
	RunID       string
	RecordIndex int
	Status      string
	ErrorClass  string // empty on success
	Attempts    int
}
