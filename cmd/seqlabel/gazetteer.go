package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/annolab/seqlabel/pkg/seqlabel/gazette"
)

var gazetteerCmd = &cobra.Command{
	Use:   "gazetteer",
	Short: "Refresh the skill gazetteer from the configured sources",
	Long: `Gazetteer fetches skill names from the configured sources (the
skill-icons repository listing plus any HTML skill lists), deduplicates
them, and writes one skill per line to the configured output path. With no
output path configured the list goes to stdout.`,
	RunE: runGazetteer,
}

func runGazetteer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sources := []gazette.Source{&gazette.GitHubIcons{URL: cfg.Gazette.IconsURL}}
	for _, url := range cfg.Gazette.HTMLURLs {
		sources = append(sources, &gazette.HTMLList{URL: url})
	}

	f := &gazette.Fetcher{Sources: sources}
	skills, err := f.Fetch(cmd.Context())
	if err != nil {
		return err
	}

	out := strings.Join(skills, "\n") + "\n"
	if cfg.Gazette.Output == "" {
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}
	if err := os.WriteFile(cfg.Gazette.Output, []byte(out), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d skills to %s\n", len(skills), cfg.Gazette.Output)
	return nil
}
