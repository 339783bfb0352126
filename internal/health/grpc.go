package health

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the poller.
const ServiceName = "jobpoll"

// GRPCServer serves the standard gRPC health protocol, fed by a Monitor.
type GRPCServer struct {
	port   int
	server *grpc.Server
	health *grpchealth.Server
}

// NewGRPCServer creates a gRPC health server and subscribes it to monitor.
func NewGRPCServer(monitor *Monitor, port int) *GRPCServer {
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	g := &GRPCServer{port: port, server: srv, health: hs}
	monitor.OnChange(g.SetStatus)
	g.SetStatus(StatusHealthy)
	return g
}

// SetStatus maps a system status onto the serving status. Degraded still
// serves: the poller itself works even when the last job could not reach
// the service.
func (g *GRPCServer) SetStatus(status SystemStatus) {
	serving := healthpb.HealthCheckResponse_SERVING
	if status == StatusCritical {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", serving)
	g.health.SetServingStatus(ServiceName, serving)
}

// Serve accepts connections on lis until Stop.
func (g *GRPCServer) Serve(lis net.Listener) error {
	return g.server.Serve(lis)
}

// Start listens on the configured port.
func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	return g.Serve(lis)
}

// Stop drains in-flight RPCs and stops the server.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
