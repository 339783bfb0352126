package postgres

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

func TestJobRow_RoundTrip(t *testing.T) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:         "sub-1",
		Operation:  "recognizespeech",
		Handle:     "J1",
		State:      domain.JobStatePolling,
		Poll:       domain.PollState{CumulativeWaitSeconds: 40, NextDelaySeconds: 20, Attempts: 3, Active: true},
		LastCode:   domain.CodeInProgress,
		LastReason: "in progress",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	got := toRow(job).toJob()
	if *got != *job {
		t.Errorf("round trip = %+v, want %+v", got, job)
	}

	idle := toRow(&domain.Job{ID: "sub-2", State: domain.JobStateSubmitting}).toJob()
	if idle.Poll.Active {
		t.Error("job without handle reported active")
	}
}

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil || len(files) == 0 {
		t.Fatalf("no embedded migrations: %v", err)
	}

	data, err := fs.ReadFile(migrations, files[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, want := range []string{"-- +goose Up", "-- +goose Down", "CREATE TABLE IF NOT EXISTS jobs"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("migration missing %q", want)
		}
	}
}
