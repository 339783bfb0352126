package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vietddude/jobpoll/internal/classify"
	"github.com/vietddude/jobpoll/internal/core/config"
	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/core/worker"
	"github.com/vietddude/jobpoll/internal/health"
	redisclient "github.com/vietddude/jobpoll/internal/infra/redis"
	"github.com/vietddude/jobpoll/internal/infra/storage"
	"github.com/vietddude/jobpoll/internal/infra/storage/memory"
	"github.com/vietddude/jobpoll/internal/infra/storage/postgres"
	"github.com/vietddude/jobpoll/internal/infra/transport"
	"github.com/vietddude/jobpoll/internal/orchestrator"
	"github.com/vietddude/jobpoll/internal/scheduler"
)

// errUnrecognized ends a run whose last body could not be interpreted.
var errUnrecognized = errors.New("unrecognized response")

// app wires one orchestrator with its store and health servers.
type app struct {
	cfg     *config.AppConfig
	repo    storage.JobRepository
	orch    *orchestrator.Orchestrator
	checks  map[string]health.Check
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	a := &app{cfg: cfg, checks: make(map[string]health.Check)}

	if err := a.openRepository(ctx); err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Transport:  transport.NewHTTPTransport(cfg.Service),
		Classifier: classify.NewClassifier(cfg.Classifier),
		Scheduler:  scheduler.New(cfg.Polling),
		Repository: a.repo,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orch = orch
	return a, nil
}

func (a *app) openRepository(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case config.StorageRedis:
		client, err := redisclient.NewClient(a.cfg.Redis)
		if err != nil {
			return err
		}
		a.repo = redisclient.NewJobRepo(client, a.cfg.Redis)
		a.checks["redis"] = client.Ping
		a.closers = append(a.closers, client.Close)

	case config.StoragePostgres:
		db, err := postgres.NewDB(ctx, a.cfg.Database)
		if err != nil {
			return err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return err
		}
		a.repo = postgres.NewJobRepo(db)
		a.checks["postgres"] = db.Health
		a.closers = append(a.closers, db.Close)

	default:
		a.repo = memory.NewJobRepo()
	}
	return nil
}

// startBackground runs the pruner and the health servers.
func (a *app) startBackground(ctx context.Context) {
	go worker.NewPruner(a.cfg.Storage.Retention, a.repo).Start(ctx)
	a.startHealth(ctx)
}

// startHealth runs the health servers configured with a non-zero port.
func (a *app) startHealth(ctx context.Context) {
	if a.cfg.Server.Port == 0 && a.cfg.Server.GRPCPort == 0 {
		return
	}

	monitor := health.NewMonitor(a.orch, a.checks)

	if a.cfg.Server.GRPCPort != 0 {
		grpcServer := health.NewGRPCServer(monitor, a.cfg.Server.GRPCPort)
		go func() {
			if err := grpcServer.Start(); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
		a.closers = append(a.closers, func() error {
			grpcServer.Stop()
			return nil
		})
	}

	if a.cfg.Server.Port != 0 {
		server := health.NewServer(monitor, a.cfg.Server.Port)
		go func() {
			if err := server.Start(); err != nil {
				slog.Debug("Health server stopped", "error", err)
			}
		}()
		a.closers = append(a.closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		})
	}

	go monitor.Start(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Error during shutdown", "error", err)
		}
	}
}

// follow prints events until the job ends. An interrupted run leaves the job
// record active so it can be resumed.
func (a *app) follow(ctx context.Context, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			if job := a.orch.Job(); job != nil && job.Handle != "" {
				fmt.Fprintf(w, "Interrupted. Job %s is still running; continue with `jobpoll resume`.\n", job.Handle)
			}
			return ctx.Err()

		case ev := <-a.orch.Events():
			switch ev.Kind {
			case orchestrator.EventProgress:
				fmt.Fprintln(w, ev.Message)
			case orchestrator.EventTerminal:
				return printResult(w, ev.Outcome.Result)
			case orchestrator.EventFatal:
				fmt.Fprintln(w, ev.Message)
				return fmt.Errorf("job failed: %s", ev.Outcome.Code)
			case orchestrator.EventUnrecognized:
				printUnrecognized(w, ev.Raw, a.orch.LastErrors())
				a.orch.Cancel()
				return errUnrecognized
			}
		}
	}
}

func printResult(w io.Writer, result any) error {
	if speech, ok := result.(domain.RecognizeSpeechResult); ok {
		for _, doc := range speech.Document {
			fmt.Fprintf(w, "Paragraph: %s\n", doc.Content)
			fmt.Fprintf(w, "Offset: %d\n", doc.Offset)
		}
		return nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printUnrecognized(w io.Writer, raw string, errs []domain.ErrorObject) {
	fmt.Fprintln(w, "Unrecognized response:")
	fmt.Fprintln(w, raw)
	for _, e := range errs {
		fmt.Fprintf(w, "Error code: %d\nReason: %s\n", int(e.Code), e.Reason)
		if e.Detail != "" {
			fmt.Fprintf(w, "Detail: %s\n", e.Detail)
		}
		if e.JobID != "" {
			fmt.Fprintf(w, "JobID: %s\n", e.JobID)
		}
	}
}
