package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tessellate-ai/foundry/services/analysis/internal/adapter"
	"github.com/tessellate-ai/foundry/services/analysis/internal/adapter/normalizers"
	"github.com/tessellate-ai/foundry/services/analysis/internal/auth"
	"github.com/tessellate-ai/foundry/services/analysis/internal/config"
	"github.com/tessellate-ai/foundry/services/analysis/internal/engine"
	"github.com/tessellate-ai/foundry/services/analysis/internal/registry"
	"github.com/tessellate-ai/foundry/services/analysis/internal/server"
	"github.com/tessellate-ai/foundry/services/analysis/internal/storage"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("ANALYSIS_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config file plus env overrides
	cfg, err := config.Load(os.Getenv("ANALYSIS_CONFIG"))
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg.Server.Addr = envOrDefault("ANALYSIS_ADDR", cfg.Server.Addr)
	cfg.Engine.MaxWorkers = envOrDefaultInt("ANALYSIS_MAX_WORKERS", cfg.Engine.MaxWorkers)
	cfg.Storage.BoltPath = envOrDefault("ANALYSIS_BOLT_PATH", cfg.Storage.BoltPath)
	cfg.Storage.PostgresDSN = envOrDefault("POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.ClickHouseDSN = envOrDefault("CLICKHOUSE_DSN", cfg.Storage.ClickHouseDSN)
	cfg.Auth.PostgresDSN = envOrDefault("AUTH_POSTGRES_DSN", cfg.Auth.PostgresDSN)
	cfg.Catalog.OverlayPath = envOrDefault("ANALYSIS_CATALOG_OVERLAY", cfg.Catalog.OverlayPath)

	logger.Info("starting analysis server",
		zap.String("addr", cfg.Server.Addr),
		zap.Int("max_workers", cfg.Engine.MaxWorkers),
	)

	// Tool registry — builtin catalog, optionally reshaped by an overlay file
	defs := registry.BuiltinCatalog()
	if cfg.Catalog.OverlayPath != "" {
		overlay, err := registry.LoadOverlay(cfg.Catalog.OverlayPath)
		if err != nil {
			logger.Fatal("failed to load catalog overlay", zap.Error(err))
		}
		defs, err = overlay.Apply(defs)
		if err != nil {
			logger.Fatal("failed to apply catalog overlay", zap.Error(err))
		}
		logger.Info("catalog overlay applied",
			zap.String("path", cfg.Catalog.OverlayPath),
			zap.Int("tools", len(defs)))
	}
	reg, err := registry.New(defs)
	if err != nil {
		logger.Fatal("invalid tool catalog", zap.Error(err))
	}

	// Audit stream — ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if cfg.Storage.ClickHouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.Storage.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no clickhouse dsn set, using log writer")
	}
	defer writer.Close()

	// Artifact store — Postgres if DSN provided, otherwise local bbolt
	var store storage.ArtifactStore
	if cfg.Storage.PostgresDSN != "" {
		db := mustOpenPostgres(cfg.Storage.PostgresDSN, logger)
		defer func() { _ = db.Close() }()
		store = storage.NewPostgresArtifactStore(db, logger)
		logger.Info("postgres artifact store connected")
	} else {
		boltStore, err := storage.NewBoltArtifactStore(cfg.Storage.BoltPath, logger)
		if err != nil {
			logger.Fatal("failed to open artifact db", zap.Error(err))
		}
		store = boltStore
		logger.Info("bbolt artifact store opened", zap.String("path", cfg.Storage.BoltPath))
	}
	defer store.Close()

	// Auth — Postgres if DSN provided, otherwise static key set
	var authenticator auth.Authenticator
	if cfg.Auth.PostgresDSN != "" {
		db := mustOpenPostgres(cfg.Auth.PostgresDSN, logger)
		defer func() { _ = db.Close() }()
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(cfg.Auth.CacheTTLSeconds) * time.Second,
			FailOpen: cfg.Auth.FailOpen,
			Logger:   logger,
		})
		logger.Info("postgres authenticator connected")
	} else {
		authenticator = auth.NewStaticAuthenticator(cfg.Auth.APIKeys)
		logger.Info("using static authenticator", zap.Int("keys", len(cfg.Auth.APIKeys)))
	}

	// Engine
	executor := adapter.NewCommandAdapter(normalizers.All(logger), logger)
	scheduler := engine.NewScheduler(executor, cfg.Engine.MaxWorkers, writer, logger)
	tracker := engine.NewTracker()

	srv := server.NewServer(scheduler, reg, tracker, store, authenticator, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn("shutdown did not complete cleanly", zap.Error(err))
		}
	}()

	logger.Info("analysis server listening", zap.String("addr", cfg.Server.Addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func mustOpenPostgres(dsn string, logger *zap.Logger) *sql.DB {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(context.Background()); err != nil {
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}
	return db
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
