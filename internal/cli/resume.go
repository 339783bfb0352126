package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/infra/storage"
)

var resumeJobID string

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue polling a job left active by an earlier run",
	Long: `resume reads the active job from the configured store (redis or postgres)
and polls it until it finishes. --job selects a specific submission instead.`,
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeJobID, "job", "", "submission id to resume")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	job, err := findResumable(ctx, a.repo, resumeJobID)
	if err != nil {
		return err
	}

	a.startBackground(ctx)
	if err := a.orch.Resume(ctx, job); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Resuming job %s (total waiting time: %d)\n", job.Handle, job.Poll.CumulativeWaitSeconds)
	return a.follow(ctx, os.Stdout)
}

func findResumable(ctx context.Context, repo storage.JobRepository, id string) (*domain.Job, error) {
	if id == "" {
		job, err := repo.GetActive(ctx)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("no active job to resume")
		}
		return job, nil
	}

	job, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !storage.IsActive(job) {
		return nil, fmt.Errorf("job %s is %s, nothing to resume", id, job.State)
	}
	return job, nil
}
