package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/thraizz/coup-server-go/internal/config"
	"github.com/thraizz/coup-server-go/internal/game"
	"github.com/thraizz/coup-server-go/internal/lobby"
	"github.com/thraizz/coup-server-go/internal/room"
	"github.com/thraizz/coup-server-go/internal/server"
	"github.com/thraizz/coup-server-go/internal/store"
	"github.com/thraizz/coup-server-go/internal/store/memory"
	"github.com/thraizz/coup-server-go/internal/store/postgres"
	"github.com/thraizz/coup-server-go/internal/store/sqlite"
	"github.com/thraizz/coup-server-go/internal/telemetry"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting coup server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}

	roomStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to open room store", zap.Error(err))
	}
	logger.Info("room store initialized", zap.String("driver", cfg.Storage.Driver))

	recorder := game.NewReplayRecorder(logger, cfg.Game.ReplayDir)

	roomMgr := room.NewManager(room.Options{
		Logger:           logger,
		Store:            roomStore,
		Recorder:         recorder,
		PhaseTimeout:     cfg.Game.PhaseTimeout,
		SubscriberBuffer: cfg.Game.SubscriberBuffer,
		Seed:             cfg.Game.Seed,
	})
	logger.Info("room manager initialized",
		zap.Duration("phase_timeout", cfg.Game.PhaseTimeout),
	)

	lobbyMgr := lobby.NewManager(logger, roomMgr, cfg.Game.MinPlayers, cfg.Game.MaxPlayers)
	logger.Info("lobby manager initialized",
		zap.Int("min_players", cfg.Game.MinPlayers),
		zap.Int("max_players", cfg.Game.MaxPlayers),
	)

	service := server.NewService(roomMgr, logger)

	hub := server.NewHub(service, cfg.Server.WebSocket, logger)
	go hub.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           server.NewHTTPHandler(lobbyMgr, service, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
		)),
		grpc.StreamInterceptor(server.StreamLoggingInterceptor(logger)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	server.RegisterCoupEngineServer(grpcServer, server.NewCoupServer(service, logger))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	go func() {
		logger.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	logger.Info("coup server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("http_address", cfg.Server.WebSocket.Address),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	cancel()

	// Closing rooms ends every WatchState stream so GracefulStop can finish.
	roomMgr.CloseAll()
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	if err := roomStore.Close(); err != nil {
		logger.Warn("failed to close room store", zap.Error(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn("failed to flush telemetry", zap.Error(err))
	}

	logger.Info("coup server stopped")
}

// openStore opens the room store selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DSN)
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN)
	default:
		return memory.New(), nil
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
