package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/annolab/seqlabel/pkg/seqlabel"
	"github.com/annolab/seqlabel/pkg/seqlabel/corpus"
)

var sampleCount int

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Label the first records and print the CoNLL blocks to stdout",
	Long: `Sample labels the first N corpus records and prints the resulting CoNLL
blocks to stdout, without touching the output file or checkpoint. Use it to
eyeball prompt and alignment quality before committing to a full run.`,
	RunE: runSample,
}

func init() {
	sampleCmd.Flags().IntVarP(&sampleCount, "count", "n", 3, "number of records to label")
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Paths.Input == "" {
		return fmt.Errorf("config: paths.input required")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	records, err := corpus.Load(cfg.Paths.Input)
	if err != nil {
		return err
	}
	if sampleCount < len(records) {
		records = records[:sampleCount]
	}

	tag, err := newTagger(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	runner := seqlabel.New(seqlabel.Options{
		Tagger:       tag,
		Retry:        newRetry(cfg),
		Logger:       logger,
		RedactPhones: cfg.Batch.RedactPhones,
	})

	for i, rec := range records {
		block, err := runner.LabelText(cmd.Context(), fmt.Sprintf("resume_%d", rec.Index), rec.Text)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "# record %d failed: %v\n", rec.Index, err)
			continue
		}
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		fmt.Fprintln(cmd.OutOrStdout(), block)
	}
	return nil
}
