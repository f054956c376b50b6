package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past labeling runs from the ledger",
	RunE:  runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the per-record outcomes of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
	runsCmd.AddCommand(runsShowCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ledger, err := openLedger(cmd, cfg)
	if err != nil {
		return err
	}
	if ledger == nil {
		return fmt.Errorf("config: paths.ledger required for the runs command")
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tPROCESSED\tFAILED\tINPUT")
	for _, r := range runs {
		dur := "running"
		if !r.FinishedAt.IsZero() {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), dur, r.Processed, r.Failed, r.InputPath)
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ledger, err := openLedger(cmd, cfg)
	if err != nil {
		return err
	}
	if ledger == nil {
		return fmt.Errorf("config: paths.ledger required for the runs command")
	}
	defer ledger.Close()

	run, ok, err := ledger.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run %s not found", args[0])
	}

	outcomes, err := ledger.ListOutcomes(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tSTATUS\tCLASS\tATTEMPTS")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", o.RecordIndex, o.Status, o.ErrorClass, o.Attempts)
	}
	return w.Flush()
}
