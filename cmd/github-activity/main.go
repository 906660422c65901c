package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/devcard/github-activity/internal/app"
	"github.com/devcard/github-activity/internal/cache"
	"github.com/devcard/github-activity/internal/config"
	"github.com/devcard/github-activity/internal/githubapi"
	"github.com/devcard/github-activity/internal/health"
	"github.com/devcard/github-activity/internal/stats"
	"github.com/devcard/github-activity/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "github-activity: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; the file is optional.
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "config/local.yaml", "path to YAML config file")
	flag.Parse()

	configFile, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = configFile.Close()
	}()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if token := strings.TrimSpace(os.Getenv("GITHUB_ACTIVITY_FALLBACK_TOKEN")); token != "" {
		cfg.GitHub.FallbackToken = token
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(logLevel(cfg.Server.LogLevel))
	logger, err := loggerConfig.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	telemetryRuntime, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      "github-activity",
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryRuntime.Shutdown(shutdownCtx)
	}()

	store, err := newCacheStore(cfg)
	if err != nil {
		return fmt.Errorf("build cache store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	factory, err := stats.NewClientFactory(cfg)
	if err != nil {
		return fmt.Errorf("build hosting client factory: %w", err)
	}

	orchestrator := stats.NewOrchestratorFromConfig(cfg, factory, store, logger)

	githubProbe := &health.GitHubProbe{
		Probe: func(ctx context.Context) error {
			httpClient := factory.HTTPClientFor(cfg.GitHub.FallbackToken)
			_, err := githubapi.GetViewer(ctx, httpClient, factory.APIBaseURL())
			return err
		},
		Interval: cfg.Health.GitHubProbeInterval,
	}
	healthHandler := health.NewHandler(logger,
		health.CheckerFunc{ComponentName: "cache", CheckFn: store.Ping},
		githubProbe,
	)

	handler := app.NewHTTPHandler(orchestrator, app.NewMetrics(), healthHandler, logger)
	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.ListenAddr))
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			serverErrCh <- serveErr
		}
		close(serverErrCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-serverErrCh:
		if serveErr != nil {
			return fmt.Errorf("http server failed: %w", serveErr)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newCacheStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		return cache.NewRedisStore(client, cache.RedisStoreConfig{
			Namespace: cfg.Cache.Namespace,
		}), nil
	case "memory":
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
}

func logLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
