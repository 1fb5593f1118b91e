package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/couchcryptid/storm-radar-extract/internal/domain"
	"github.com/couchcryptid/storm-radar-extract/internal/observability"
)

// ExtractionConfig is what VolumeTransformer extracts from every volume.
type ExtractionConfig struct {
	Points  []domain.Point
	Fields  []string
	Options domain.ExtractOptions
	// Site is the radar position for the geodesic range and azimuth of each record.
	Site domain.Site
}

// VolumeTransformer implements Transformer: it loads the announced volume,
// extracts every station and serializes one record per station.
type VolumeTransformer struct {
	loader  domain.VolumeLoader
	cfg     ExtractionConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTransformer creates a VolumeTransformer.
func NewTransformer(loader domain.VolumeLoader, cfg ExtractionConfig, logger *slog.Logger, metrics *observability.Metrics) *VolumeTransformer {
	return &VolumeTransformer{
		loader:  loader,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Transform loads the volume a notice names and returns one record per station.
func (t *VolumeTransformer) Transform(ctx context.Context, raw domain.RawEvent) ([]domain.OutputEvent, error) {
	notice, err := domain.ParseVolumeNotice(raw)
	if err != nil {
		return nil, err
	}

	v, err := t.loader.Load(ctx, notice.Path)
	if err != nil {
		return nil, fmt.Errorf("load volume: %w", err)
	}

	batch := domain.ExtractMany(v, t.cfg.Fields, t.cfg.Points, t.cfg.Options)
	t.report(v, notice, batch)

	records := domain.BuildPointRecords(batch, domain.RecordOptions{
		Notice:  notice,
		BatchID: uuid.NewString(),
		Mode:    t.cfg.Options.Mode,
		Site:    t.cfg.Site,
	})

	out := make([]domain.OutputEvent, 0, len(records))
	for _, rec := range records {
		event, err := domain.SerializePointRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}

	t.logger.Info("volume extracted",
		"path", notice.Path,
		"volume_time", batch.Time,
		"stations", len(batch.Labels),
		"failed", batch.Failures(),
	)
	return out, nil
}

// report logs and counts per-station outcomes.
func (t *VolumeTransformer) report(v *domain.Volume, notice domain.VolumeNotice, batch domain.BatchResult) {
	for _, err := range batch.Errors {
		t.logger.Warn("station rejected", "path", notice.Path, "error", err)
		t.metrics.PointExtractions.WithLabelValues("rejected").Inc()
	}

	for _, label := range batch.Labels {
		r := batch.Points[label]
		for _, fe := range r.FieldErrors {
			t.logger.Warn("field not extracted", "label", label, "error", fe)
			t.metrics.FieldErrors.Inc()
		}
		if r.Failed() {
			t.logger.Warn("station extraction failed", "label", label, "path", notice.Path, "error", r.Err)
			t.metrics.PointExtractions.WithLabelValues("failed").Inc()
			continue
		}
		t.metrics.PointExtractions.WithLabelValues("success").Inc()

		if t.logger.Enabled(context.Background(), slog.LevelDebug) {
			attrs := []any{
				"label", label,
				"gate", r.Index.Gate,
				"azimuth", r.Index.Azimuth,
				"theta", r.Index.Theta,
				"range_km", r.Index.RangeKm,
			}
			if lat, lon, alt, err := v.GateLocation(r.Index); err == nil {
				attrs = append(attrs, "gate_lat", lat, "gate_lon", lon, "gate_alt", alt)
			}
			t.logger.Debug("station resolved", attrs...)
		}
	}
}
