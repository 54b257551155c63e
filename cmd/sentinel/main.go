package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/watershed-sentinel/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/watershed-sentinel/internal/adapter/kafka"
	"github.com/couchcryptid/watershed-sentinel/internal/config"
	"github.com/couchcryptid/watershed-sentinel/internal/geo"
	"github.com/couchcryptid/watershed-sentinel/internal/health"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
	"github.com/couchcryptid/watershed-sentinel/internal/persist"
	"github.com/couchcryptid/watershed-sentinel/internal/scheduler"
	"github.com/couchcryptid/watershed-sentinel/internal/scoring"
	"github.com/couchcryptid/watershed-sentinel/internal/source"
	"github.com/couchcryptid/watershed-sentinel/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence: Badger local tier, GCS remote tier when configured.
	local, err := persist.OpenBadger(persist.BadgerConfig{
		Path:       cfg.DataDir,
		SyncWrites: true,
	}, logger)
	if err != nil {
		logger.Error("failed to open local store", "error", err)
		os.Exit(1)
	}
	var remote persist.Store
	if cfg.RemoteTierEnabled() {
		gcs, err := persist.NewGCS(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSCredentialsFile)
		if err != nil {
			logger.Error("failed to create remote store", "bucket", cfg.GCSBucket, "error", err)
			os.Exit(1)
		}
		remote = gcs
		logger.Info("remote persistence tier enabled", "bucket", cfg.GCSBucket, "prefix", cfg.GCSPrefix)
	} else {
		logger.Info("remote persistence tier disabled")
	}
	durable := persist.NewTiered(local, remote, logger)

	rules := scoring.DefaultRules()
	if cfg.RulesPath != "" {
		rules, err = scoring.LoadRules(cfg.RulesPath)
		if err != nil {
			logger.Error("failed to load scoring rules", "error", err)
			os.Exit(1)
		}
		logger.Info("scoring rules loaded", "path", cfg.RulesPath, "patterns", len(rules.Patterns))
	}

	index := geo.Empty()
	if cfg.GeoIndexPath != "" {
		index, err = geo.LoadFile(cfg.GeoIndexPath)
		if err != nil {
			logger.Error("failed to load geo index", "error", err)
			os.Exit(1)
		}
		logger.Info("geo index loaded", "path", cfg.GeoIndexPath, "units", index.Len())
	} else {
		logger.Warn("no geo index configured; adjacency boosts disabled")
	}

	tracker := health.New(durable, clock, logger, metrics)
	events := store.New(durable, clock, logger, metrics, cfg.EventRetention)
	engine := scoring.NewEngine(events, index, rules, durable, clock, logger, metrics)

	adapters := []source.Adapter{
		source.NewWeatherAlerts(source.AlertFile{Path: filepath.Join(cfg.CacheDir, "alerts.json")}, clock, metrics),
		source.NewStreamGauges(source.GaugeFile{Path: filepath.Join(cfg.CacheDir, "gauges.json")}, clock),
		source.NewDischargePermits(source.PermitFile{Path: filepath.Join(cfg.CacheDir, "permits.json")}, clock),
		source.NewFloodForecasts(source.ForecastFile{Path: filepath.Join(cfg.CacheDir, "forecasts.json")}, clock),
		source.NewCompliance(source.EnforcementFile{Path: filepath.Join(cfg.CacheDir, "enforcement.json")}, clock, metrics),
	}

	var announcer scheduler.Announcer
	var announcerCloser *kafkaadapter.Announcer
	if cfg.AnnouncerEnabled() {
		a := kafkaadapter.NewAnnouncer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		announcer = a
		announcerCloser = a
		logger.Info("change-event announcer enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("change-event announcer disabled")
	}

	sched := scheduler.New(adapters, tracker, events, engine, announcer, clock, logger, metrics, scheduler.Config{
		PollInterval:  cfg.PollInterval,
		ScoreInterval: cfg.ScoreInterval,
		PollTimeout:   cfg.PollTimeout,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, sched, tracker, engine, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if announcerCloser != nil {
		if err := announcerCloser.Close(); err != nil {
			logger.Error("announcer close error", "error", err)
		}
	}
	if err := durable.Close(); err != nil {
		logger.Error("persistence close error", "error", err)
	}

	logger.Info("shutdown complete")
}
