// Package seqlabel drives the resume labeling pipeline: it feeds corpus
// records to a hosted tagger, encodes the mentions as BIO/CoNLL blocks, and
// appends them to a checkpointed output log so an interrupted run resumes
// where it left off.
package seqlabel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/annolab/seqlabel/pkg/seqlabel/backoff"
	"github.com/annolab/seqlabel/pkg/seqlabel/bio"
	"github.com/annolab/seqlabel/pkg/seqlabel/checkpoint"
	"github.com/annolab/seqlabel/pkg/seqlabel/corpus"
	"github.com/annolab/seqlabel/pkg/seqlabel/output"
	"github.com/annolab/seqlabel/pkg/seqlabel/redact"
	"github.com/annolab/seqlabel/pkg/seqlabel/store"
	"github.com/annolab/seqlabel/pkg/seqlabel/tagger"
)

// Runner is the batch driver facade.
type Runner struct {
	tagger       tagger.Tagger
	retry        backoff.Policy
	ledger       store.Store
	log          *zap.Logger
	flushEvery   int
	redactPhones bool
	sleep        func(time.Duration)
}

// Options configures a Runner.
type Options struct {
	// Tagger is the hosted model boundary. Required.
	Tagger tagger.Tagger
	// Retry shapes backoff for retryable tagger failures. Zero value means
	// backoff.Default().
	Retry backoff.Policy
	// Ledger records runs and per-record outcomes. Nil disables the ledger.
	Ledger store.Store
	// Logger defaults to a nop logger.
	Logger *zap.Logger
	// FlushEvery is the coupled flush interval in records. Defaults to 10.
	FlushEvery int
	// RedactPhones enables the phone-number pre-pass on each record.
	RedactPhones bool
	// Sleep is injected by tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// New creates a Runner with the given dependencies.
func New(opts Options) *Runner {
	r := &Runner{
		tagger:       opts.Tagger,
		retry:        opts.Retry,
		ledger:       opts.Ledger,
		log:          opts.Logger,
		flushEvery:   opts.FlushEvery,
		redactPhones: opts.RedactPhones,
		sleep:        opts.Sleep,
	}
	if r.retry == (backoff.Policy{}) {
		r.retry = backoff.Default()
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.flushEvery <= 0 {
		r.flushEvery = 10
	}
	if r.sleep == nil {
		r.sleep = time.Sleep
	}
	return r
}

// RunRequest names the files one labeling run reads and writes.
type RunRequest struct {
	InputPath      string
	OutputPath     string
	CheckpointPath string
}

// Summary reports what a finished run did. Failed records are listed so the
// operator can retry them after fixing the cause; a run with failures still
// exits successfully.
type Summary struct {
	RunID         string
	Records       int // records in the corpus
	Processed     int // records handled across all sessions of this run
	Succeeded     int // records labeled in this session
	Failed        int // terminal failures in this session
	FailedIndices []int
	Resumed       bool
	OutputBytes   int64
}

// Run labels every unprocessed record of the corpus. Per-record tagger
// failures are recorded and skipped; only setup and persistence errors abort
// the run and surface as a non-nil error.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*Summary, error) {
	if r.tagger == nil {
		return nil, errors.New("seqlabel: no tagger configured")
	}

	records, err := corpus.Load(req.InputPath)
	if err != nil {
		return nil, err
	}

	ckpt := checkpoint.NewStore(req.CheckpointPath)
	state, err := ckpt.Load()
	if err != nil {
		return nil, err
	}
	if state.NextIndex > len(records) {
		return nil, fmt.Errorf("seqlabel: checkpoint next_index %d exceeds corpus size %d; input changed?", state.NextIndex, len(records))
	}

	out, err := output.Open(req.OutputPath, state.OutputBytes)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	sum := &Summary{
		RunID:     store.NewRunID(),
		Records:   len(records),
		Processed: state.Processed,
		Resumed:   state.NextIndex > 0,
	}

	if r.ledger != nil {
		run := store.Run{
			ID:         sum.RunID,
			InputPath:  req.InputPath,
			OutputPath: req.OutputPath,
			StartedAt:  time.Now().UTC(),
		}
		if err := r.ledger.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("seqlabel: create run: %w", err)
		}
	}

	r.log.Info("run started",
		zap.String("run_id", sum.RunID),
		zap.String("input", req.InputPath),
		zap.Int("records", len(records)),
		zap.Int("next_index", state.NextIndex),
		zap.Bool("resumed", sum.Resumed))

	sinceFlush := 0
	for _, rec := range records[state.NextIndex:] {
		if err := ctx.Err(); err != nil {
			// Flush before bailing so the work done so far survives.
			if ferr := r.flush(out, ckpt, &state); ferr != nil {
				return nil, ferr
			}
			return nil, err
		}

		text := rec.Text
		if r.redactPhones {
			text = redact.Phones(text, fmt.Sprintf("resume_%d", rec.Index))
		}

		block, attempts, recErr := r.labelRecord(ctx, rec.Index, text)
		switch {
		case recErr == nil:
			if err := out.Append(block); err != nil {
				return nil, err
			}
			sum.Succeeded++
			r.recordOutcome(ctx, sum.RunID, rec.Index, store.StatusSucceeded, "", attempts)
		case errors.Is(recErr, context.Canceled) || errors.Is(recErr, context.DeadlineExceeded):
			if ferr := r.flush(out, ckpt, &state); ferr != nil {
				return nil, ferr
			}
			return nil, recErr
		default:
			sum.Failed++
			sum.FailedIndices = append(sum.FailedIndices, rec.Index)
			class := classify(recErr)
			r.log.Warn("record failed",
				zap.Int("index", rec.Index),
				zap.String("class", class),
				zap.Int("attempts", attempts),
				zap.Error(recErr))
			r.recordOutcome(ctx, sum.RunID, rec.Index, store.StatusFailed, class, attempts)
		}

		state.NextIndex = rec.Index + 1
		state.Processed++
		sum.Processed++
		sinceFlush++

		if sinceFlush >= r.flushEvery {
			if err := r.flush(out, ckpt, &state); err != nil {
				return nil, err
			}
			sinceFlush = 0
		}
	}

	if err := r.flush(out, ckpt, &state); err != nil {
		return nil, err
	}
	sum.OutputBytes = out.FlushedBytes()

	if sum.Failed == 0 && state.NextIndex == len(records) {
		if err := ckpt.Remove(); err != nil {
			return nil, fmt.Errorf("seqlabel: remove checkpoint: %w", err)
		}
	}

	if r.ledger != nil {
		if err := r.ledger.FinishRun(ctx, sum.RunID, time.Now().UTC(), sum.Processed, sum.Failed); err != nil {
			return nil, fmt.Errorf("seqlabel: finish run: %w", err)
		}
	}

	r.log.Info("run finished",
		zap.String("run_id", sum.RunID),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int64("output_bytes", sum.OutputBytes))
	return sum, nil
}

// flush forces buffered output to disk, then checkpoints the new offset. The
// order matters: the checkpoint must never claim bytes the log does not have.
func (r *Runner) flush(out *output.Log, ckpt *checkpoint.Store, state *checkpoint.State) error {
	offset, err := out.Flush()
	if err != nil {
		return err
	}
	state.OutputBytes = offset
	if err := ckpt.Save(*state); err != nil {
		return err
	}
	return nil
}

// labelRecord runs the per-record state machine: tag with retries, then
// encode. It returns the CoNLL block on success, or a terminal error plus the
// number of tagger attempts made.
func (r *Runner) labelRecord(ctx context.Context, index int, text string) (string, int, error) {
	var mentions []tagger.Mention
	attempts := 0
	for {
		attempts++
		var err error
		mentions, err = r.tagger.Tag(ctx, text)
		if err == nil {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", attempts, err
		}
		if !tagger.Retryable(err) || r.retry.Exhausted(attempts) {
			return "", attempts, err
		}
		delay := r.retry.Delay(attempts)
		r.log.Debug("retrying record",
			zap.Int("index", index),
			zap.Int("attempt", attempts),
			zap.Duration("delay", delay),
			zap.Error(err))
		r.sleep(delay)
	}

	tagged, err := bio.Encode(text, mentions)
	if err != nil {
		return "", attempts, err
	}
	return bio.FormatCoNLL(tagged), attempts, nil
}

// LabelText labels one text in isolation, with the same retry and redaction
// behavior as a batch run but no checkpoint or output log. Used by the sample
// command.
func (r *Runner) LabelText(ctx context.Context, name, text string) (string, error) {
	if r.redactPhones {
		text = redact.Phones(text, name)
	}
	block, _, err := r.labelRecord(ctx, 0, text)
	return block, err
}

// classify maps a terminal record error to its ledger error class.
func classify(err error) string {
	switch {
	case errors.Is(err, tagger.ErrRateLimited):
		return store.ClassRateLimited
	case errors.Is(err, tagger.ErrTransient):
		return store.ClassTransient
	case errors.Is(err, tagger.ErrContentFiltered):
		return store.ClassContentFiltered
	case errors.Is(err, tagger.ErrMalformed):
		return store.ClassMalformed
	case errors.Is(err, bio.ErrSpanAlignment):
		return store.ClassSpanAlignment
	}
	return "unknown"
}

// recordOutcome writes a per-record outcome to the ledger. Ledger write
// failures are logged, not fatal: the ledger is observational.
func (r *Runner) recordOutcome(ctx context.Context, runID string, index int, status, class string, attempts int) {
	if r.ledger == nil {
		return
	}
	o := store.Outcome{
		RunID:       runID,
		RecordIndex: index,
		Status:      status,
		ErrorClass:  class,
		Attempts:    attempts,
	}
	if err := r.ledger.RecordOutcome(ctx, o); err != nil {
		r.log.Warn("ledger outcome write failed", zap.Int("index", index), zap.Error(err))
	}
}
