package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/PaulBabatuyi/startsmart/internal/config"
)

// negotiationService is the service name reported next to the overall status.
const negotiationService = "startsmart.negotiation"

// newHealthGRPCServer builds the gRPC server exposing grpc.health.v1. If TLS
// certs are configured the server requires TLS.
func newHealthGRPCServer(tlsCfg config.TLSConfig, hs *health.Server) (*grpc.Server, error) {
	var serverOpts []grpc.ServerOption

	if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(tlsCfg.CertFile, tlsCfg.KeyFile)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	srv := grpc.NewServer(serverOpts...)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, nil
}

// watchHealth polls the database and mirrors the result into hs until ctx is done.
// On return every service is marked NOT_SERVING.
func watchHealth(ctx context.Context, hs *health.Server, checker healthChecker, interval time.Duration, log *zap.Logger) {
	report := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if !checker.IsHealthy(pingCtx) {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			log.Warn("database unhealthy, reporting NOT_SERVING")
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(negotiationService, status)
	}

	report()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			report()
		}
	}
}
