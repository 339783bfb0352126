package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/orchestrator"
)

var (
	statusLimit int
	statusJobID string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent jobs from the configured store",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of jobs to show")
	statusCmd.Flags().StringVar(&statusJobID, "job", "", "show the details of one job")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	if statusJobID != "" {
		job, err := a.repo.Get(ctx, statusJobID)
		if err != nil {
			return fmt.Errorf("failed to load job %s: %w", statusJobID, err)
		}
		return writeJobDetail(os.Stdout, job)
	}

	jobs, err := a.repo.List(ctx, statusLimit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	return writeJobs(os.Stdout, jobs)
}

func writeJobs(out io.Writer, jobs []*domain.Job) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tOPERATION\tHANDLE\tSTATE\tATTEMPTS\tWAIT\tLAST ERROR\tUPDATED")

	for _, job := range jobs {
		lastErr := ""
		if job.LastCode != 0 {
			lastErr = job.LastCode.String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%ds\t%s\t%s\n",
			job.ID, job.Operation, job.Handle, job.State,
			job.Poll.Attempts, job.Poll.CumulativeWaitSeconds, lastErr,
			job.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func writeJobDetail(out io.Writer, job *domain.Job) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID:\t%s\n", job.ID)
	_, _ = fmt.Fprintf(w, "Operation:\t%s\n", job.Operation)
	_, _ = fmt.Fprintf(w, "Handle:\t%s\n", job.Handle)
	_, _ = fmt.Fprintf(w, "State:\t%s\n", orchestrator.StateDescription(job.State))
	_, _ = fmt.Fprintf(w, "Attempts:\t%d\n", job.Poll.Attempts)
	_, _ = fmt.Fprintf(w, "Total wait:\t%ds\n", job.Poll.CumulativeWaitSeconds)
	if job.LastCode != 0 {
		_, _ = fmt.Fprintf(w, "Last error:\t%d %s %s\n", int(job.LastCode), job.LastCode, job.LastReason)
	}
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", job.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Updated:\t%s\n", job.UpdatedAt.Format(time.RFC3339))
	return w.Flush()
}
