package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

func newTestTransport(url string) *HTTPTransport {
	return NewHTTPTransport(Config{
		BaseURL: url,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
		StatusRetry: RetryConfig{
			MaxAttempts:     3,
			InitialDelay:    time.Millisecond,
			MaxDelay:        2 * time.Millisecond,
			BackoffMultiple: 2,
		},
	})
}

func TestHTTPTransport_PostRequestForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1/api/async/recognizespeech/v1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if r.PostForm.Get("apikey") != "test-key" || r.PostForm.Get("url") != "https://example.com/a.mp3" {
			t.Errorf("form = %v", r.PostForm)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id header")
		}
		_, _ = io.WriteString(w, `{"jobID": "J1"}`)
	}))
	defer server.Close()

	tr := newTestTransport(server.URL)
	body, err := tr.PostRequest(context.Background(), Request{
		Operation: "recognizespeech",
		Params:    map[string]string{"url": "https://example.com/a.mp3"},
	})
	if err != nil {
		t.Fatalf("PostRequest: %v", err)
	}
	if body != `{"jobID": "J1"}` {
		t.Errorf("body = %q", body)
	}
}

func TestHTTPTransport_PostRequestMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speech.mp3")
	if err := os.WriteFile(path, []byte("ID3 fake audio"), 0o600); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("content type = %s", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if r.FormValue("interval") != "20000" || r.FormValue("apikey") != "test-key" {
			t.Errorf("fields = %v", r.MultipartForm.Value)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "speech.mp3" || string(data) != "ID3 fake audio" {
			t.Errorf("file %s = %q", hdr.Filename, data)
		}
		_, _ = io.WriteString(w, `{"jobID": "J2"}`)
	}))
	defer server.Close()

	tr := newTestTransport(server.URL)
	body, err := tr.PostRequest(context.Background(), Request{
		Operation: "recognizespeech",
		Params:    map[string]string{"interval": "20000"},
		Files:     map[string]string{"file": path},
	})
	if err != nil {
		t.Fatalf("PostRequest: %v", err)
	}
	if body != `{"jobID": "J2"}` {
		t.Errorf("body = %q", body)
	}
}

func TestHTTPTransport_PostRequestMissingFile(t *testing.T) {
	tr := newTestTransport("http://127.0.0.1:1")
	_, err := tr.PostRequest(context.Background(), Request{
		Operation: "recognizespeech",
		Files:     map[string]string{"file": "/does/not/exist.mp3"},
	})
	if CodeOf(err) != domain.CodeIOError {
		t.Errorf("CodeOf(err) = %s, want IO_ERROR", CodeOf(err))
	}
}

func TestHTTPTransport_ErrorEnvelopeIsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": 1640, "reason": "Invalid parameter"}`)
	}))
	defer server.Close()

	body, err := newTestTransport(server.URL).PostRequest(context.Background(), Request{Operation: "recognizespeech"})
	if err != nil {
		t.Fatalf("PostRequest: %v", err)
	}
	if !strings.Contains(body, "1640") {
		t.Errorf("body = %q", body)
	}
}

func TestHTTPTransport_GetJobStatusRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/1/job/status/J1" || r.URL.Query().Get("apikey") != "test-key" {
			t.Errorf("url = %s", r.URL)
		}
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "<html>bad gateway</html>")
			return
		}
		_, _ = io.WriteString(w, `{"jobID": "J1", "status": "in progress", "actions": []}`)
	}))
	defer server.Close()

	body, err := newTestTransport(server.URL).GetJobStatus(context.Background(), "J1")
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if !strings.Contains(body, "in progress") {
		t.Errorf("body = %q", body)
	}
}

func TestHTTPTransport_SubmissionNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestTransport(server.URL).PostRequest(context.Background(), Request{Operation: "recognizespeech"})
	if CodeOf(err) != domain.CodeHTTPError {
		t.Errorf("CodeOf(err) = %s, want HTTP_ERROR", CodeOf(err))
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
