// Command seqlabel labels a resume corpus for NER training: it sends each
// record to a hosted model, aligns the returned entity mentions, and writes
// BIO-tagged CoNLL output with crash-safe checkpointing.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/annolab/seqlabel/internal/logging"
	"github.com/annolab/seqlabel/pkg/seqlabel/backoff"
	"github.com/annolab/seqlabel/pkg/seqlabel/config"
	"github.com/annolab/seqlabel/pkg/seqlabel/store"
	"github.com/annolab/seqlabel/pkg/seqlabel/store/sqlite"
	"github.com/annolab/seqlabel/pkg/seqlabel/tagger"
	"github.com/annolab/seqlabel/pkg/seqlabel/tagger/gemini"
	"github.com/annolab/seqlabel/pkg/seqlabel/tagger/openai"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "seqlabel",
	Short: "Label resume text for NER training with a hosted model",
	Long: `seqlabel drives an entity-labeling pipeline over a resume corpus.

Records are sent one at a time to a hosted model, the reported entity
mentions are aligned back onto the text, and each record becomes one
BIO-tagged CoNLL block in the output file. Progress is checkpointed so an
interrupted run resumes exactly where it stopped.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "seqlabel.yaml", "path to the YAML config file")

	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(gazetteerCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Level)
}

// newTagger builds the configured hosted tagger.
func newTagger(ctx context.Context, cfg *config.Config) (tagger.Tagger, error) {
	p := cfg.Provider
	switch p.Kind {
	case "openai":
		return openai.New(openai.Options{
			BaseURL:      p.BaseURL,
			Model:        p.Model,
			APIKey:       cfg.APIKey(),
			EndpointPath: p.EndpointPath,
			ExtraHeaders: p.ExtraHeaders,
			Temperature:  *p.Temperature,
			MaxTokens:    p.MaxTokens,
			Timeout:      time.Duration(p.TimeoutSecs) * time.Second,
		})
	case "gemini":
		return gemini.New(ctx, gemini.Options{
			Model:       p.Model,
			APIKey:      cfg.APIKey(),
			Temperature: float32(*p.Temperature),
			MaxTokens:   int32(p.MaxTokens),
		})
	}
	return nil, fmt.Errorf("unknown provider kind %q", p.Kind)
}

// newRetry converts the config retry section to a backoff policy.
func newRetry(cfg *config.Config) backoff.Policy {
	return backoff.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Multiplier:  cfg.Retry.Multiplier,
		MaxDelay:    cfg.Retry.MaxDelay,
		Jitter:      cfg.Retry.Jitter,
	}
}

// openLedger opens the sqlite run ledger if one is configured. Returns nil
// when the config names no ledger path.
func openLedger(cmd *cobra.Command, cfg *config.Config) (store.Store, error) {
	if cfg.Paths.Ledger == "" {
		return nil, nil
	}
	return sqlite.Open(cmd.Context(), cfg.Paths.Ledger)
}
