package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mr1hm/go-accident-alerts/internal/api"
	"github.com/mr1hm/go-accident-alerts/internal/channel"
	"github.com/mr1hm/go-accident-alerts/internal/classifier"
	"github.com/mr1hm/go-accident-alerts/internal/config"
	"github.com/mr1hm/go-accident-alerts/internal/dispatch"
	internalgrpc "github.com/mr1hm/go-accident-alerts/internal/grpc"
	"github.com/mr1hm/go-accident-alerts/internal/ingestion"
	"github.com/mr1hm/go-accident-alerts/internal/logging"
	"github.com/mr1hm/go-accident-alerts/internal/metrics"
	"github.com/mr1hm/go-accident-alerts/internal/models"
	"github.com/mr1hm/go-accident-alerts/internal/repository"
	"github.com/mr1hm/go-accident-alerts/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "db_driver", cfg.DB.Driver, "push_driver", cfg.Push.Driver)

	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		logging.Fatalf("Failed to load policy: %v", err)
	}

	cls, err := classifier.New(policy.Classifier)
	if err != nil {
		logging.Fatalf("Invalid classifier policy: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openRepository(ctx, cfg.DB)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	reports := store.New(db, store.Config{
		MaxAttempts:    cfg.Store.MaxAttempts,
		RetryBackoff:   cfg.Store.RetryBackoff,
		PageSize:       cfg.Store.PageSize,
		MaxDescription: cfg.Store.MaxDescription,
	})

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logging.Fatalf("Failed to register metrics: %v", err)
	}

	// Broadcast subscribers are served over both gRPC and websocket
	broadcaster := internalgrpc.NewBroadcaster()

	sinks := map[models.Channel]dispatch.Sink{
		models.ChannelBroadcast: channel.NewBroadcastSink(broadcaster),
	}
	push, closePush, err := openPushSink(ctx, cfg.Push)
	if err != nil {
		logging.Fatalf("Failed to initialize push channel: %v", err)
	}
	defer closePush()
	if push != nil {
		sinks[models.ChannelPush] = push
	}

	dispatcher := dispatch.New(dispatch.Config{
		Timeout:           cfg.Dispatch.Timeout,
		BroadcastRadiusKM: cfg.Dispatch.BroadcastRadiusKM,
	}, sinks)
	dispatcher.SetObserver(metrics.Recorder{})

	gateway, err := ingestion.NewGateway(cls, reports, dispatcher, policy.Ingestion,
		ingestion.WithIdentity(ingestion.ContextIdentity{}),
		ingestion.WithObserver(metrics.Recorder{}),
	)
	if err != nil {
		logging.Fatalf("Failed to build ingestion gateway: %v", err)
	}

	grpcServer := internalgrpc.NewServer(reports, broadcaster)
	go func() {
		grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logging.Fatalf("gRPC server error: %v", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router, err := api.NewRouter(api.RouterConfig{RateLimitRPS: cfg.RateLimit.RPS},
		api.NewHandler(gateway, reports, broadcaster))
	if err != nil {
		logging.Fatalf("Failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	broadcaster.Close() // ends gRPC streams and websocket clients
	grpcServer.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("shutdown complete")
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.ReportRepository, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return repository.NewPostgresDB(ctx, cfg.PostgresDSN)
	default:
		return repository.NewSQLiteDB(cfg.Path)
	}
}

// openPushSink returns a nil sink when push is disabled; push results then
// report the channel as not configured.
func openPushSink(ctx context.Context, cfg config.PushConfig) (dispatch.Sink, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case config.PushWebhook:
		return channel.NewWebhookPushSink(channel.WebhookConfig{URL: cfg.WebhookURL}, nil), noop, nil
	case config.PushRedis:
		rdb, err := channel.NewRedisClient(ctx, channel.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, noop, err
		}
		return channel.NewRedisPushSink(rdb, cfg.RedisKey), func() { _ = rdb.Close() }, nil
	default:
		slog.Warn("push channel disabled", "driver", cfg.Driver)
		return nil, noop, nil
	}
}
