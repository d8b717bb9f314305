package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	repo "github.com/joseph-ayodele/legalaid-petitions/internal/repository"
)

// HealthServer serves the standard gRPC health service and flips it to NOT_SERVING
// while the database stops answering.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	db     *repo.DB
	logger *slog.Logger
}

func NewHealthServer(db *repo.DB, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	return &HealthServer{grpc: gs, health: hs, db: db, logger: logger}
}

// Serve blocks until the listener fails or Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	return h.grpc.Serve(lis)
}

// Watch pings the database every interval until ctx is done.
func (h *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	if h.db == nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		err := h.db.HealthCheck(ctx, interval/2, h.logger)
		switch {
		case err != nil && serving:
			h.logger.Warn("health.not_serving", "error", err)
			h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			h.logger.Info("health.serving")
			h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
			serving = true
		}
	}
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
