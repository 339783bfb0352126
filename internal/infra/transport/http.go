package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/metrics"
)

// Config holds service endpoint settings.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	APIVersion string        `yaml:"api_version"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	// StatusRetry applies to status checks only; submissions are never
	// retried by the transport.
	StatusRetry RetryConfig `yaml:"status_retry"`
}

// HTTPTransport talks to the service over HTTP.
type HTTPTransport struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(cfg Config) *HTTPTransport {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.StatusRetry.MaxAttempts == 0 {
		cfg.StatusRetry = DefaultRetryConfig
	}
	return &HTTPTransport{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: slog.Default().With("component", "transport"),
	}
}

// SetHTTPClient overrides the default HTTP client.
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// PostRequest submits req once.
func (t *HTTPTransport) PostRequest(ctx context.Context, req Request) (string, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeAsync
	}
	if req.Operation == "" {
		return "", &Error{Code: domain.CodeInvalidParam, Err: fmt.Errorf("empty operation")}
	}

	body, contentType, err := t.encode(req)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("/%s/api/%s/%s/v1", t.cfg.APIVersion, mode, url.PathEscape(req.Operation))
	httpReq, err := t.newRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", contentType)

	return t.do(httpReq, "post_request")
}

// GetJobStatus fetches the status of handle, retrying transient failures.
func (t *HTTPTransport) GetJobStatus(ctx context.Context, handle domain.JobHandle) (string, error) {
	if handle == "" {
		return "", &Error{Code: domain.CodeInvalidParam, Err: fmt.Errorf("empty job id")}
	}

	path := fmt.Sprintf("/%s/job/status/%s", t.cfg.APIVersion, url.PathEscape(string(handle)))
	return CallWithRetry(ctx, t.cfg.StatusRetry, func(ctx context.Context) (string, error) {
		query := url.Values{"apikey": {t.cfg.APIKey}}
		httpReq, err := t.newRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return "", err
		}
		return t.do(httpReq, "get_job_status")
	})
}

// encode builds a multipart body when files are attached and a form body otherwise.
func (t *HTTPTransport) encode(req Request) (io.Reader, string, error) {
	if len(req.Files) == 0 {
		form := url.Values{}
		for k, v := range req.Params {
			form.Set(k, v)
		}
		form.Set("apikey", t.cfg.APIKey)
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, k := range sortedKeys(req.Params) {
		if err := writer.WriteField(k, req.Params[k]); err != nil {
			return nil, "", &Error{Code: domain.CodeIOError, Err: err}
		}
	}
	if err := writer.WriteField("apikey", t.cfg.APIKey); err != nil {
		return nil, "", &Error{Code: domain.CodeIOError, Err: err}
	}

	for _, field := range sortedKeys(req.Files) {
		if err := attachFile(writer, field, req.Files[field]); err != nil {
			return nil, "", &Error{Code: domain.CodeIOError, Err: err}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", &Error{Code: domain.CodeIOError, Err: err}
	}
	return body, writer.FormDataContentType(), nil
}

func attachFile(writer *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := strings.TrimRight(t.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &Error{Code: domain.CodeInvalidParam, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do executes req and returns the body. Error statuses with a JSON body are
// returned as bodies, since the service reports its errors in that envelope.
func (t *HTTPTransport) do(req *http.Request, call string) (string, error) {
	start := time.Now()
	reqID := req.Header.Get("X-Request-ID")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		metrics.TransportErrorsTotal.WithLabelValues(call, domain.CodeConnectionError.String()).Inc()
		return "", &Error{Code: domain.CodeConnectionError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.TransportLatency.WithLabelValues(call).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TransportErrorsTotal.WithLabelValues(call, domain.CodeIOError.String()).Inc()
		return "", &Error{Code: domain.CodeIOError, Err: fmt.Errorf("read response: %w", err)}
	}

	t.log.Debug("Transport call finished",
		"call", call,
		"request_id", reqID,
		"status", resp.StatusCode,
		"latency", time.Since(start),
	)

	if resp.StatusCode >= 400 && !json.Valid(body) {
		metrics.TransportErrorsTotal.WithLabelValues(call, domain.CodeHTTPError.String()).Inc()
		return "", &Error{Code: domain.CodeHTTPError, Status: resp.StatusCode, Body: string(body)}
	}

	return string(body), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
