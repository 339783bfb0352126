package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/infra/storage"
	"github.com/vietddude/jobpoll/internal/infra/storage/memory"
)

func resetSubmitFlags() {
	submitFile, submitURL = "", ""
	submitOperation = "recognizespeech"
	submitInterval = "20000"
	submitParams = nil
}

func TestBuildRequest(t *testing.T) {
	defer resetSubmitFlags()

	resetSubmitFlags()
	if _, err := buildRequest(); err == nil {
		t.Error("expected error without --file or --url")
	}

	resetSubmitFlags()
	submitFile = "talk.mp3"
	req, err := buildRequest()
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if req.Files["file"] != "talk.mp3" || req.Params["interval"] != "20000" || req.Operation != "recognizespeech" {
		t.Errorf("file request = %+v", req)
	}

	resetSubmitFlags()
	submitURL = "https://example.com/a.wav"
	submitParams = map[string]string{"language": "en-US"}
	req, err = buildRequest()
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if req.Params["url"] != "https://example.com/a.wav" || req.Params["language"] != "en-US" || len(req.Files) != 0 {
		t.Errorf("url request = %+v", req)
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	err := printResult(&buf, domain.RecognizeSpeechResult{Document: []domain.Document{
		{Content: "hello", Offset: 0},
		{Content: "world", Offset: 1520},
	}})
	if err != nil {
		t.Fatalf("printResult: %v", err)
	}
	want := "Paragraph: hello\nOffset: 0\nParagraph: world\nOffset: 1520\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := printResult(&buf, map[string]int{"pages": 2}); err != nil {
		t.Fatalf("printResult: %v", err)
	}
	if !strings.Contains(buf.String(), `"pages": 2`) {
		t.Errorf("generic output = %q", buf.String())
	}
}

func TestPrintUnrecognized(t *testing.T) {
	var buf bytes.Buffer
	printUnrecognized(&buf, `{"error": 7005}`, []domain.ErrorObject{
		{Code: 7005, Reason: "service specific", JobID: "J1"},
	})
	out := buf.String()
	for _, want := range []string{`{"error": 7005}`, "Error code: 7005", "Reason: service specific", "JobID: J1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFindResumable(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewJobRepo()

	if _, err := findResumable(ctx, repo, ""); err == nil {
		t.Error("expected error with no active job")
	}

	now := time.Now()
	_ = repo.Save(ctx, &domain.Job{ID: "done", Handle: "J0", State: domain.JobStateCompleted, UpdatedAt: now})
	_ = repo.Save(ctx, &domain.Job{ID: "live", Handle: "J1", State: domain.JobStatePolling, UpdatedAt: now})

	job, err := findResumable(ctx, repo, "")
	if err != nil || job.ID != "live" {
		t.Errorf("findResumable() = %+v, %v", job, err)
	}
	if _, err := findResumable(ctx, repo, "done"); err == nil {
		t.Error("expected error resuming a completed job")
	}
	if _, err := findResumable(ctx, repo, "missing"); !errors.Is(err, storage.ErrJobNotFound) {
		t.Errorf("missing job error = %v", err)
	}
}

func TestWriteJobs(t *testing.T) {
	var buf bytes.Buffer
	err := writeJobs(&buf, []*domain.Job{{
		ID:        "sub-1",
		Operation: "recognizespeech",
		Handle:    "J1",
		State:     domain.JobStateFailed,
		Poll:      domain.PollState{Attempts: 4, CumulativeWaitSeconds: 60},
		LastCode:  domain.CodeTimeout,
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}})
	if err != nil {
		t.Fatalf("writeJobs: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"sub-1", "J1", "failed", "60s", "TIMEOUT", "2026-01-02T03:04:05Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJobDetail(t *testing.T) {
	var buf bytes.Buffer
	err := writeJobDetail(&buf, &domain.Job{
		ID:         "sub-2",
		Operation:  "recognizespeech",
		Handle:     "J2",
		State:      domain.JobStatePolling,
		Poll:       domain.PollState{Attempts: 2, CumulativeWaitSeconds: 20},
		LastCode:   4005,
		LastReason: "Failed to recognize speech",
		UpdatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("writeJobDetail: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"sub-2",
		"Polling - job accepted, waiting for the next status check",
		"20s",
		"4005 CODE_4005 Failed to recognize speech",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
