package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/storm-radar-extract/internal/adapter/cfradial"
	httpadapter "github.com/couchcryptid/storm-radar-extract/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-radar-extract/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar-extract/internal/adapter/stations"
	"github.com/couchcryptid/storm-radar-extract/internal/config"
	"github.com/couchcryptid/storm-radar-extract/internal/observability"
	"github.com/couchcryptid/storm-radar-extract/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	points, err := stations.Load(cfg.StationsFile)
	if err != nil {
		logger.Error("failed to load stations", "file", cfg.StationsFile, "error", err)
		os.Exit(1)
	}
	if len(points) == 0 {
		logger.Warn("no stations configured; volumes will produce no records", "file", cfg.StationsFile)
	}

	loader := cfradial.NewCachedLoader(cfradial.NewLoader(), cfg.VolumeCacheSize, metrics)
	logger.Info("extraction configured",
		"stations", len(points),
		"fields", cfg.Fields,
		"mode", cfg.Mode.String(),
		"seam", cfg.Seam.String(),
		"mask", cfg.Mask != nil,
		"volume_cache_size", cfg.VolumeCacheSize,
	)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(loader, pipeline.ExtractionConfig{
		Points:  points,
		Fields:  cfg.Fields,
		Options: cfg.ExtractOptions(),
		Site:    cfg.Site,
	}, logger, metrics)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	var extract *httpadapter.ExtractConfig
	if cfg.VolumeRoot != "" {
		extract = &httpadapter.ExtractConfig{Loader: loader, Root: cfg.VolumeRoot, Defaults: cfg.ExtractOptions()}
	} else {
		logger.Info("VOLUME_ROOT unset; POST /extract disabled")
	}
	srv, err := httpadapter.NewServer(cfg.HTTPAddr, p, extract, logger)
	if err != nil {
		logger.Error("failed to configure http server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start extraction pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
