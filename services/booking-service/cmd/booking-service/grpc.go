package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/config"
	"github.com/md-rashed-zaman/meetslot/libs/grpcx"
	"github.com/md-rashed-zaman/meetslot/libs/runtime"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// startHealthServer exposes the standard gRPC health service for orchestrators that
// probe over gRPC. Serving status follows the readiness checks.
func startHealthServer(ctx context.Context, logger *slog.Logger, checks []runtime.ReadyCheck) error {
	port := config.String("GRPC_PORT", "")
	if port == "" {
		return nil
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpcx.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go watchHealth(ctx, hs, checks)
	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()
	return nil
}

func watchHealth(ctx context.Context, hs *health.Server, checks []runtime.ReadyCheck) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		status := healthpb.HealthCheckResponse_SERVING
		for _, c := range checks {
			checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := c.Check(checkCtx)
			cancel()
			if err != nil {
				status = healthpb.HealthCheckResponse_NOT_SERVING
				break
			}
		}
		hs.SetServingStatus("", status)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
