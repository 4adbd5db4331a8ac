package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/content-engine/internal/observability"
	"github.com/jonathan/content-engine/internal/scheduler"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Work with scheduled generation jobs",
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a scheduled job immediately",
	Long: `Run a scheduled job once, outside its cron schedule. The run is recorded and
the job's webhook is notified exactly as for a scheduled run.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsRun,
}

func init() {
	jobsCmd.AddCommand(jobsRunCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsRun(cmd *cobra.Command, args []string) error {
	jobID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", args[0], err)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var onProgress scheduler.ProgressFunc
	if verbose {
		onProgress = progressPrinter(cmd)
	}

	report, err := a.scheduler.RunNow(cmd.Context(), jobID, onProgress)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRunReport(report)
	return nil
}

// progressPrinter writes one line per progress event to stderr.
func progressPrinter(cmd *cobra.Command) scheduler.ProgressFunc {
	out := cmd.ErrOrStderr()
	return func(ev scheduler.ProgressEvent) {
		switch {
		case ev.Error != "":
			fmt.Fprintf(out, "[%d/%d] %s %s: %s\n", ev.Completed, ev.Total, ev.Type, ev.Product, ev.Error)
		case ev.Product != "":
			fmt.Fprintf(out, "[%d/%d] %s %s\n", ev.Completed, ev.Total, ev.Type, ev.Product)
		default:
			fmt.Fprintf(out, "[%d/%d] %s %s\n", ev.Completed, ev.Total, ev.Type, ev.Status)
		}
	}
}
