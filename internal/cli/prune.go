package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/jobpoll/internal/core/worker"
)

var pruneOlderThan time.Duration

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete finished jobs older than the retention period",
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "override storage.retention")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	retention := appConfig.Storage.Retention
	if pruneOlderThan > 0 {
		retention = pruneOlderThan
	}
	if retention <= 0 {
		return errors.New("no retention configured, set storage.retention or --older-than")
	}

	ctx := context.Background()
	a, err := newApp(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	n, err := worker.NewPruner(retention, a.repo).Prune(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d jobs\n", n)
	return nil
}
