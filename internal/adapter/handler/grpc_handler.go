package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/pantry/internal/platform/logger"
	"github.com/rl1809/pantry/internal/port"
)

// InventoryServiceName is the health service name reported alongside the
// server-wide "" entry.
const InventoryServiceName = "pantry.Inventory"

type GRPCHandler struct {
	health *health.Server
	deps   map[string]port.Pinger
	log    *logger.Logger
}

// NewGRPCHandler reports SERVING only while every dependency answers Ping.
func NewGRPCHandler(deps map[string]port.Pinger, log *logger.Logger) *GRPCHandler {
	if log == nil {
		log = logger.Nop()
	}
	h := &GRPCHandler{health: health.NewServer(), deps: deps, log: log}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *GRPCHandler) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

func (h *GRPCHandler) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(InventoryServiceName, status)
}

// Probe pings every dependency once and updates the served status.
func (h *GRPCHandler) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.log.Warn("dependency unhealthy", "dependency", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.set(status)
	return status
}

// Watch probes every interval until ctx is done.
func (h *GRPCHandler) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		h.Probe(probeCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Shutdown flips every service to NOT_SERVING and ignores later updates.
func (h *GRPCHandler) Shutdown() {
	h.health.Shutdown()
}
