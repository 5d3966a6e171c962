package monitor

import (
	"fmt"
	"log"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DetectorService is the health service name reported for the pipeline.
const DetectorService = "motionwatch.Detector"

// HealthServer exposes the standard gRPC health protocol so supervisors can
// probe the detector without speaking HTTP.
type HealthServer struct {
	mu       sync.Mutex
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewHealthServer registers a health service reporting NOT_SERVING until
// SetServing is called.
func NewHealthServer() *HealthServer {
	h := &HealthServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	h.health.SetServingStatus(DetectorService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Start binds addr and serves in the background.
func (h *HealthServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	h.mu.Lock()
	h.listener = lis
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		log.Printf("[health] gRPC health listening on %s", lis.Addr())
		if err := h.server.Serve(lis); err != nil {
			log.Printf("[health] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (h *HealthServer) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// SetServing flips the detector service status.
func (h *HealthServer) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(DetectorService, status)
	h.health.SetServingStatus("", status)
}

// Stop marks every service NOT_SERVING and stops the server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
	h.wg.Wait()
	log.Printf("[health] gRPC health stopped")
}
