package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/journal"
)

func newHistoryCommand() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded provisioning runs",
		Long: `List past runs from the journal, or the step results of one run
with --run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return fmt.Errorf("journal is disabled (journal_path is empty)")
			}

			j, err := journal.Open(cmd.Context(), cfg.JournalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			if runID != "" {
				return printStepResults(cmd, j, runID)
			}
			return printRuns(cmd, j)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "show step results for this run ID")

	return cmd
}

func printRuns(cmd *cobra.Command, j *journal.Journal) error {
	runs, err := j.Runs(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tDURATION")
	for _, r := range runs {
		duration := "-"
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, duration)
	}
	return w.Flush()
}

func printStepResults(cmd *cobra.Command, j *journal.Journal, runID string) error {
	recs, err := j.StepResults(cmd.Context(), runID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tOUTCOME\tDURATION\tNOTE")
	for _, r := range recs {
		note := ""
		if r.Warning != nil {
			note = *r.Warning
		}
		if r.Error != nil {
			note = *r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%dms\t%s\n", r.Step, r.Outcome, r.DurationMS, note)
	}
	return w.Flush()
}
