package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/annolab/seqlabel/pkg/seqlabel"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Label the corpus and write checkpointed CoNLL output",
	Long: `Label runs the batch driver over the configured corpus.

Each record is tagged by the hosted model and appended to the output file as
one CoNLL block. Progress is flushed and checkpointed together at a fixed
record interval; rerunning the command after an interruption resumes from
the checkpoint and produces output identical to an uninterrupted run.

Records that fail terminally (content filter, mention the model invented,
retry exhaustion) are skipped, listed in the summary, and recorded in the
run ledger; they do not stop the run or affect the exit code. Only setup
and persistence errors exit non-zero.`,
	RunE: runLabel,
}

func runLabel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Paths.Input == "" || cfg.Paths.Output == "" {
		return fmt.Errorf("config: paths.input and paths.output required")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tag, err := newTagger(ctx, cfg)
	if err != nil {
		return err
	}

	ledger, err := openLedger(cmd, cfg)
	if err != nil {
		return err
	}
	if ledger != nil {
		defer ledger.Close()
	}

	runner := seqlabel.New(seqlabel.Options{
		Tagger:       tag,
		Retry:        newRetry(cfg),
		Ledger:       ledger,
		Logger:       logger,
		FlushEvery:   cfg.Batch.FlushEvery,
		RedactPhones: cfg.Batch.RedactPhones,
	})

	sum, err := runner.Run(ctx, seqlabel.RunRequest{
		InputPath:      cfg.Paths.Input,
		OutputPath:     cfg.Paths.Output,
		CheckpointPath: cfg.Paths.Checkpoint,
	})
	if err != nil {
		return err
	}

	logger.Info("summary",
		zap.String("run_id", sum.RunID),
		zap.Int("records", sum.Records),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Ints("failed_indices", sum.FailedIndices))
	return nil
}
