package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/http"
	kafkaadapter "github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/kafka"
	redisadapter "github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/redis"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/snapshotapi"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/tabular"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/config"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/dashboard"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/observability"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Snapshot store served on /api/snapshot: Redis when configured, memory otherwise.
	var kv snapshot.KV
	var redisKV *redisadapter.KV
	if cfg.RedisAddr != "" {
		redisKV = redisadapter.NewKV(cfg)
		kv = redisKV
		logger.Info("snapshot store: redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	} else {
		kv = snapshot.NewMemoryKV()
		logger.Info("snapshot store: memory")
	}

	// Kafka notification (feature-flagged via KAFKA_BROKERS).
	var notifier snapshot.Notifier
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		notifier = writer
		logger.Info("kafka snapshot events enabled", "topic", cfg.KafkaSnapshotTopic)
	}

	snapshots := snapshot.NewService(kv, notifier, logger, metrics)

	// The dashboard publishes to its own store unless SNAPSHOT_URL points elsewhere.
	var publishTo dashboard.SnapshotStore = snapshots
	if cfg.SnapshotURL != "" {
		publishTo = snapshotapi.NewClient(cfg.SnapshotURL, cfg.SnapshotTimeout, metrics, logger)
		logger.Info("remote snapshot store", "url", cfg.SnapshotURL)
	}

	store := dashboard.NewStore(domain.DefaultEngine, publishTo, logger, metrics)
	loadStations(store, cfg.StationsFile, logger)

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:           cfg.HTTPAddr,
		ReadOnly:       cfg.ReadOnly,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, store, snapshots, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisKV != nil {
		if err := redisKV.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// loadStations imports the default data source. A missing file leaves the
// dashboard empty; the store is marked loaded either way.
func loadStations(store *dashboard.Store, path string, logger *slog.Logger) {
	defer store.MarkLoaded()

	if path == "" {
		logger.Warn("no STATIONS_FILE configured, starting empty")
		return
	}

	format, err := tabular.FormatFromPath(path)
	if err != nil {
		logger.Error("unsupported stations file", "path", path, "error", err)
		return
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("stations file not found, starting empty", "path", path)
		return
	}
	if err != nil {
		logger.Error("open stations file", "path", path, "error", err)
		return
	}
	defer f.Close()

	if _, err := store.Load(f, format); err != nil {
		logger.Error("load stations file", "path", path, "error", err)
	}
}
