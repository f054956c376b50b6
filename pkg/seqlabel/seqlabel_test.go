package seqlabel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/annolab/seqlabel/pkg/seqlabel/backoff"
	"github.com/annolab/seqlabel/pkg/seqlabel/store"
	"github.com/annolab/seqlabel/pkg/seqlabel/store/memstore"
	"github.com/annolab/seqlabel/pkg/seqlabel/tagger"
	"github.com/annolab/seqlabel/pkg/seqlabel/tagger/mock"
)

const (
	recJohn  = "John Smith works"
	recPavel = "Pavel uses Python"
	recPlain = "nothing notable here"
)

var scriptedResponses = map[string][]tagger.Mention{
	recJohn: {
		{Label: tagger.LabelPerson, Text: "John Smith"},
	},
	recPavel: {
		{Label: tagger.LabelPerson, Text: "Pavel"},
		{Label: tagger.LabelSkill, Text: "Python"},
	},
	recPlain: nil,
}

const (
	blockJohn  = "John B-PER\nSmith I-PER\nworks O"
	blockPavel = "Pavel B-PER\nuses O\nPython B-SKILL"
	blockPlain = "nothing O\nnotable O\nhere O"
)

func writeCorpus(t *testing.T, records ...string) (input, outPath, ckptPath string) {
	t.Helper()
	dir := t.TempDir()
	input = filepath.Join(dir, "resumes.txt")
	var data string
	for i, r := range records {
		if i > 0 {
			data += "\n\n"
		}
		data += r
	}
	if err := os.WriteFile(input, []byte(data), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return input, filepath.Join(dir, "labels.conll"), filepath.Join(dir, "labels.checkpoint")
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func noSleep(time.Duration) {}

func TestRunLabelsWholeCorpus(t *testing.T) {
	input, outPath, ckptPath := writeCorpus(t, recJohn, recPavel, recPlain)
	ledger := memstore.New()
	defer ledger.Close()

	r := New(Options{
		Tagger: &mock.Scripted{Responses: scriptedResponses},
		Ledger: ledger,
		Sleep:  noSleep,
	})
	sum, err := r.Run(context.Background(), RunRequest{
		InputPath:      input,
		OutputPath:     outPath,
		CheckpointPath: ckptPath,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Succeeded != 3 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want 3 succeeded, 0 failed", sum)
	}
	want := blockJohn + "\n\n" + blockPavel + "\n\n" + blockPlain
	if diff := cmp.Diff(want, readFile(t, outPath)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	// A clean finish removes the checkpoint so the next run starts fresh.
	if _, err := os.Stat(ckptPath); !os.IsNotExist(err) {
		t.Errorf("checkpoint should be removed after a clean run, stat err = %v", err)
	}

	run, ok, err := ledger.GetRun(context.Background(), sum.RunID)
	if err != nil || !ok {
		t.Fatalf("GetRun: ok=%v err=%v", ok, err)
	}
	if run.Processed != 3 || run.Failed != 0 || run.FinishedAt.IsZero() {
		t.Errorf("ledger run = %+v", run)
	}
}

func TestRunIsIdempotentAfterCompletion(t *testing.T) {
	input, outPath, ckptPath := writeCorpus(t, recJohn, recPavel)
	r := New(Options{Tagger: &mock.Scripted{Responses: scriptedResponses}, Sleep: noSleep})
	req := RunRequest{InputPath: input, OutputPath: outPath, CheckpointPath: ckptPath}

	if _, err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := readFile(t, outPath)
	if _, err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := readFile(t, outPath); got != first {
		t.Errorf("rerun changed output:\nfirst:\n%s\nsecond:\n%s", first, got)
	}
}

func TestRunResumesByteIdentical(t *testing.T) {
	records := []string{recJohn, recPavel, recPlain, recJohn, recPavel}

	// Reference: one uninterrupted run.
	refIn, refOut, refCkpt := writeCorpus(t, records...)
	ref := New(Options{Tagger: &mock.Scripted{Responses: scriptedResponses}, Sleep: noSleep})
	if _, err := ref.Run(context.Background(), RunRequest{InputPath: refIn, OutputPath: refOut, CheckpointPath: refCkpt}); err != nil {
		t.Fatalf("reference run: %v", err)
	}
	want := readFile(t, refOut)

	// Interrupted run: the context is canceled after the third Tag call.
	input, outPath, ckptPath := writeCorpus(t, records...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	inner := &mock.Scripted{Responses: scriptedResponses}
	tripwire := mock.Func(func(ctx context.Context, text string) ([]tagger.Mention, error) {
		mentions, err := inner.Tag(ctx, text)
		calls++
		if calls == 3 {
			cancel()
		}
		return mentions, err
	})
	req := RunRequest{InputPath: input, OutputPath: outPath, CheckpointPath: ckptPath}

	r := New(Options{Tagger: tripwire, FlushEvery: 2, Sleep: noSleep})
	if _, err := r.Run(ctx, req); !errors.Is(err, context.Canceled) {
		t.Fatalf("interrupted run err = %v, want context.Canceled", err)
	}

	// Simulate a torn tail from a crash after the interruption.
	f, err := os.OpenFile(outPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	if _, err := f.WriteString("\n\ntorn garb"); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	f.Close()

	resumed := New(Options{Tagger: &mock.Scripted{Responses: scriptedResponses}, FlushEvery: 2, Sleep: noSleep})
	sum, err := resumed.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if !sum.Resumed {
		t.Error("summary should report resumption")
	}
	if got := readFile(t, outPath); got != want {
		t.Errorf("resumed output differs from uninterrupted run:\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	input, outPath, ckptPath := writeCorpus(t, recJohn)
	ledger := memstore.New()
	defer ledger.Close()

	var slept []time.Duration
	r := New(Options{
		Tagger: &mock.Flaky{
			Inner:     &mock.Scripted{Responses: scriptedResponses},
			Err:       tagger.ErrTransient,
			FailCount: 2,
		},
		Retry:  backoff.Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute},
		Ledger: ledger,
		Sleep:  func(d time.Duration) { slept = append(slept, d) },
	})
	sum, err := r.Run(context.Background(), RunRequest{InputPath: input, OutputPath: outPath, CheckpointPath: ckptPath})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want success after retries", sum)
	}
	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2 (one per retry)", len(slept))
	}
	if slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Errorf("backoff delays = %v, want [1s 2s]", slept)
	}

	outs, err := ledger.ListOutcomes(context.Background(), sum.RunID)
	if err != nil || len(outs) != 1 {
		t.Fatalf("ListOutcomes: %v %v", outs, err)
	}
	if outs[0].Attempts != 3 || outs[0].Status != store.StatusSucceeded {
		t.Errorf("outcome = %+v, want 3 attempts, succeeded", outs[0])
	}
}

func TestRunRetryExhaustionIsTerminal(t *testing.T) {
	input, outPath, ckptPath := writeCorpus(t, recJohn, recPavel)
	ledger := memstore.New()
	defer ledger.Close()

	// recJohn never stops failing; recPavel is fine.
	flaky := &mock.Flaky{
		Inner:     &mock.Scripted{Responses: scriptedResponses},
		Err:       tagger.ErrTransient,
		FailCount: 100,
	}
	tag := mock.Func(func(ctx context.Context, text string) ([]tagger.Mention, error) {
		if text == recJohn {
			return flaky.Tag(ctx, text)
		}
		return scriptedResponses[text], nil
	})

	r := New(Options{Tagger: tag, Ledger: ledger, Sleep: noSleep})
	sum, err := r.Run(context.Background(), RunRequest{InputPath: input, OutputPath: outPath, CheckpointPath: ckptPath})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Failed != 1 || sum.Succeeded != 1 {
		t.Fatalf("summary = %+v, want 1 failed, 1 succeeded", sum)
	}
	if len(sum.FailedIndices) != 1 || sum.FailedIndices[0] != 0 {
		t.Errorf("FailedIndices = %v, want [0]", sum.FailedIndices)
	}

	// The failed record contributes no output block.
	if got := readFile(t, outPath); got != blockPavel {
		t.Errorf("output = %q, want only %q", got, blockPavel)
	}

	failed, err := ledger.FailedIndices(context.Background(), sum.RunID)
	if err != nil || len(failed) != 1 || failed[0] != 0 {
		t.Errorf("FailedIndices = %v, %v", failed, err)
	}

	// Failures keep the checkpoint so the operator can inspect and retry.
	if _, err := os.Stat(ckptPath); err != nil {
		t.Errorf("checkpoint should survive a run with failures: %v", err)
	}
}

func TestRunContentFilterFailsWithoutRetry(t *testing.T) {
	input, outPath, ckptPath := writeCorpus(t, recJohn)
	ledger := memstore.New()
	defer ledger.Close()

	scripted := &mock.Scripted{Errors: map[string]error{recJohn: tagger.ErrContentFiltered}}
	r := New(Options{Tagger: scripted, Ledger: ledger, Sleep: noSleep})
	sum, err := r.Run(context.Background(), RunRequest{InputPath: input, OutputPath: outPath, CheckpointPath: ckptPath})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", sum)
	}
	if scripted.CallCount() != 1 {
		t.Errorf("content filter should not be retried, got %d calls", scripted.CallCount())
	}

	outs, _ := ledger.ListOutcomes(context.Background(), sum.RunID)
	if len(outs) != 1 || outs[0].ErrorClass != store.ClassContentFiltered {
		t.Errorf("outcomes = %+v, want content_filtered", outs)
	}
}

func TestRunSpanAlignmentFailureIsTerminal(t *testing.T) {
	input, outPath, ckptPath := writeCorpus(t, recJohn)
	ledger := memstore.New()
	defer ledger.Close()

	// The model hallucinates a mention that is not in the text.
	tag := mock.Static([]tagger.Mention{{Label: tagger.LabelOrganization, Text: "Globex"}})
	r := New(Options{Tagger: tag, Ledger: ledger, Sleep: noSleep})
	sum, err := r.Run(context.Background(), RunRequest{InputPath: input, OutputPath: outPath, CheckpointPath: ckptPath})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", sum)
	}

	outs, _ := ledger.ListOutcomes(context.Background(), sum.RunID)
	if len(outs) != 1 || outs[0].ErrorClass != store.ClassSpanAlignment {
		t.Errorf("outcomes = %+v, want span_alignment", outs)
	}
	if got := readFile(t, outPath); got != "" {
		t.Errorf("failed record should produce no output, got %q", got)
	}
}

func TestRunRejectsShrunkenCorpus(t *testing.T) {
	input, outPath, ckptPath := writeCorpus(t, recJohn, recPavel)
	r := New(Options{Tagger: &mock.Scripted{Responses: scriptedResponses}, Sleep: noSleep})
	req := RunRequest{InputPath: input, OutputPath: outPath, CheckpointPath: ckptPath}

	// Forge a checkpoint pointing past the end of the corpus, as if the
	// input file shrank between sessions.
	if err := os.WriteFile(ckptPath, []byte(`{"next_index": 9, "processed": 9, "output_bytes": 0}`), 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
	if _, err := r.Run(context.Background(), req); err == nil {
		t.Fatal("a checkpoint past the corpus end must fail the run")
	}
}

func TestLabelTextRedactsPhones(t *testing.T) {
	tag := mock.Func(func(ctx context.Context, text string) ([]tagger.Mention, error) {
		return nil, nil
	})
	r := New(Options{Tagger: tag, RedactPhones: true, Sleep: noSleep})

	block, err := r.LabelText(context.Background(), "sample", "call +380 67 123 45 67 now")
	if err != nil {
		t.Fatalf("LabelText: %v", err)
	}
	if strings.Contains(block, "67") {
		t.Errorf("phone digits leaked into the block: %q", block)
	}
	if !strings.Contains(block, "PhoneNumber O") {
		t.Errorf("placeholder missing from block: %q", block)
	}
}
