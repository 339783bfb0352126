package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// =============================================================================
// Stubs
// =============================================================================

type stubSource struct {
	state domain.JobState
	job   *domain.Job
	poll  domain.PollState
}

func (s *stubSource) State() domain.JobState { return s.state }
func (s *stubSource) Job() *domain.Job       { return s.job }
func (s *stubSource) Poll() domain.PollState { return s.poll }

// =============================================================================
// Tests
// =============================================================================

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name   string
		source *stubSource
		checks map[string]Check
		want   SystemStatus
	}{
		{
			name:   "idle",
			source: &stubSource{state: domain.JobStateIdle},
			want:   StatusHealthy,
		},
		{
			name: "polling",
			source: &stubSource{
				state: domain.JobStatePolling,
				job:   &domain.Job{ID: "sub-1", Handle: "J1"},
				poll:  domain.PollState{Attempts: 3, CumulativeWaitSeconds: 40, Active: true},
			},
			checks: map[string]Check{"store": func(context.Context) error { return nil }},
			want:   StatusHealthy,
		},
		{
			name: "service unreachable",
			source: &stubSource{
				state: domain.JobStateFailed,
				job:   &domain.Job{ID: "sub-1", LastCode: domain.CodeConnectionError},
			},
			want: StatusDegraded,
		},
		{
			name: "job rejected by service",
			source: &stubSource{
				state: domain.JobStateFailed,
				job:   &domain.Job{ID: "sub-1", LastCode: domain.CodeInvalidParam},
			},
			want: StatusHealthy,
		},
		{
			name:   "store down",
			source: &stubSource{state: domain.JobStateIdle},
			checks: map[string]Check{"store": func(context.Context) error { return errors.New("refused") }},
			want:   StatusCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.source, tt.checks)
			report := m.CheckHealth(context.Background())
			if report.SystemStatus != tt.want {
				t.Errorf("status = %s, want %s", report.SystemStatus, tt.want)
			}
		})
	}
}

func TestCheckHealth_JobDetails(t *testing.T) {
	m := NewMonitor(&stubSource{
		state: domain.JobStatePolling,
		job:   &domain.Job{ID: "sub-1", Handle: "J1"},
		poll:  domain.PollState{Attempts: 3, CumulativeWaitSeconds: 40, Active: true},
	}, nil)

	report := m.CheckHealth(context.Background())
	if report.Job.Handle != "J1" || report.Job.Attempts != 3 || report.Job.TotalWaitSeconds != 40 {
		t.Errorf("job = %+v", report.Job)
	}
}

func TestCheckHealth_CachesProbes(t *testing.T) {
	calls := 0
	m := NewMonitor(&stubSource{state: domain.JobStateIdle}, map[string]Check{
		"store": func(context.Context) error {
			calls++
			return nil
		},
	})

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	if calls != 1 {
		t.Errorf("probe calls = %d, want 1", calls)
	}
}

func TestServer_Endpoints(t *testing.T) {
	m := NewMonitor(&stubSource{state: domain.JobStateIdle}, map[string]Check{
		"store": func(context.Context) error { return errors.New("refused") },
	})
	handler := NewServer(m, 0).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health status = %d, want 503", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "critical" || body["state"] != "idle" {
		t.Errorf("/health body = %v", body)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode detailed: %v", err)
	}
	if report.Dependencies["store"] != StatusCritical {
		t.Errorf("dependencies = %v", report.Dependencies)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}

func TestGRPCServer_FollowsMonitor(t *testing.T) {
	var failing bool
	m := NewMonitor(&stubSource{state: domain.JobStateIdle}, map[string]Check{
		"store": func(context.Context) error {
			if failing {
				return errors.New("refused")
			}
			return nil
		},
	})
	m.interval = 0

	g := NewGRPCServer(m, 0)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = g.Serve(lis) }()
	defer g.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return resp.GetStatus()
	}

	m.CheckHealth(context.Background())
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %s, want SERVING", got)
	}

	overall, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check overall: %v", err)
	}
	want := &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
	if !proto.Equal(overall, want) {
		t.Errorf("overall = %v, want %v", overall, want)
	}

	_, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "unknown"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("unknown service error = %v, want NotFound", err)
	}

	failing = true
	m.CheckHealth(context.Background())
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %s, want NOT_SERVING", got)
	}
}
