package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_radar"

// Metrics holds the Prometheus counters, histograms, and gauges for the extraction pipeline.
type Metrics struct {
	VolumesConsumed prometheus.Counter
	RecordsProduced prometheus.Counter
	TransformErrors prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Extraction metrics.
	PointExtractions   *prometheus.CounterVec // labels: outcome={success,failed,rejected}
	FieldErrors        prometheus.Counter
	VolumeCache        *prometheus.CounterVec // labels: result={hit,miss}
	VolumeLoadDuration prometheus.Histogram
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		VolumesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "volumes_consumed_total",
			Help:      help("Total volume notices read from the source topic."),
		}),
		RecordsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_produced_total",
			Help:      help("Total point records written to the sink topic."),
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      help("Total volume notices that could not be processed."),
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 when the pipeline is active, 0 when shut down."),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      help("Number of volume notices per batch extracted from Kafka."),
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      help("Duration of a complete batch extract-transform-load cycle."),
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PointExtractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "point_extractions_total",
			Help:      help("Station extractions by outcome."),
		}, []string{"outcome"}),
		FieldErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_errors_total",
			Help:      help("Requested fields missing from a volume."),
		}),
		VolumeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "volume_cache_total",
			Help:      help("Volume cache lookups by result."),
		}, []string{"result"}),
		VolumeLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "volume_load_duration_seconds",
			Help:      help("Time to read and decode a radar volume file."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.VolumesConsumed,
		m.RecordsProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.PointExtractions,
		m.FieldErrors,
		m.VolumeCache,
		m.VolumeLoadDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
