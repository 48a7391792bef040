package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"github.com/PaulBabatuyi/startsmart/internal/auth"
	"github.com/PaulBabatuyi/startsmart/internal/config"
	"github.com/PaulBabatuyi/startsmart/internal/data"
	"github.com/PaulBabatuyi/startsmart/internal/db"
	"github.com/PaulBabatuyi/startsmart/internal/logger"
	"github.com/PaulBabatuyi/startsmart/internal/middleware"
	"github.com/PaulBabatuyi/startsmart/internal/negotiation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	dbClient, err := db.Open(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to DB: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dbClient.Close(closeCtx); err != nil {
			zl.Warn("failed to close DB client", zap.Error(err))
		}
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	// Create stores
	usersStore := data.NewUsersStore(dbClient.Users())
	fundingsStore := data.NewFundingRequestsStore(dbClient.FundingRequests())
	interestsStore := data.NewInterestsStore(dbClient.Interests())
	msgsStore := data.NewMessagesStore(dbClient.Messages(), db.UsersCollection)
	notificationsStore := data.NewNotificationsStore(dbClient.Notifications())

	svc := negotiation.NewService(fundingsStore, interestsStore, msgsStore, zl.Named("negotiation"))

	// If JWT_KEYS is supplied we parse keys so token rotation is possible;
	// otherwise fall back to the single JWT_SECRET value.
	var jwtMgr *auth.JWTManager
	if cfg.JWT.Keys != "" {
		keyMap, err := cfg.JWT.KeyMap()
		if err != nil {
			return err
		}
		jwtMgr = auth.NewJWTManagerFromKeys(keyMap, cfg.JWT.ActiveKid, cfg.JWT.TTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	}

	// register and login are rate limited per client IP
	limiterStore := middleware.NewLimiterStore(cfg.RateLimit.RPM, cfg.RateLimit.Burst, time.Minute)
	defer limiterStore.Stop()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := newServer(usersStore, notificationsStore, svc, dbClient, jwtMgr, zl, cfg.Production())
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           srv.routes(limiterStore),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hs := health.NewServer()
	grpcServer, err := newHealthGRPCServer(cfg.TLS, hs)
	if err != nil {
		return fmt.Errorf("load TLS certs: %w", err)
	}
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		return fmt.Errorf("listen gRPC: %w", err)
	}

	go watchHealth(ctx, hs, dbClient, cfg.GRPC.HealthInterval, zl.Named("health"))

	errCh := make(chan error, 2)
	go func() {
		zl.Info("gRPC health server listening", zap.String("address", grpcLis.Addr().String()))
		if err := grpcServer.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	go func() {
		zl.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	select {
	case <-ctx.Done():
		zl.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	grpcServer.GracefulStop()
	return nil
}
