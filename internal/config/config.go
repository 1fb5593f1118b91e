package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Extraction configuration.
	StationsFile    string
	Fields          []string
	Mode            domain.Mode
	Mask            *domain.Mask
	Seam            domain.SeamPolicy
	Site            domain.Site
	VolumeCacheSize int
	// VolumeRoot confines the paths POST /extract may open. Empty disables the endpoint.
	VolumeRoot      string
}

// ExtractOptions returns the extractor settings carried by the config.
func (c *Config) ExtractOptions() domain.ExtractOptions {
	return domain.ExtractOptions{Mode: c.Mode, Mask: c.Mask, Seam: c.Seam}
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mode, err := domain.ParseMode(sharedcfg.EnvOrDefault("EXTRACT_MODE", "window"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACT_MODE: %w", err)
	}

	seam, err := domain.ParseSeamPolicy(sharedcfg.EnvOrDefault("AZIMUTH_SEAM", "wrap"))
	if err != nil {
		return nil, fmt.Errorf("invalid AZIMUTH_SEAM: %w", err)
	}

	mask, err := parseMask()
	if err != nil {
		return nil, err
	}

	siteLat, err := parseFloat("RADAR_SITE_LAT", "-31.4412824015")
	if err != nil {
		return nil, err
	}
	siteLon, err := parseFloat("RADAR_SITE_LON", "-64.1919061484")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "radar-volumes"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "radar-point-extractions"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "storm-radar-extract"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		StationsFile:    sharedcfg.EnvOrDefault("STATIONS_FILE", "config/stations.yaml"),
		Fields:          parseFields(sharedcfg.EnvOrDefault("RADAR_FIELDS", "DBZH,ZDR,RHOHV")),
		Mode:            mode,
		Mask:            mask,
		Seam:            seam,
		Site:            domain.Site{Lat: siteLat, Lon: siteLon},
		VolumeCacheSize: parseVolumeCacheSize(),
		VolumeRoot:      os.Getenv("VOLUME_ROOT"),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if len(cfg.Fields) == 0 {
		return nil, errors.New("RADAR_FIELDS is required")
	}
	if cfg.Site.Lat < -90 || cfg.Site.Lat > 90 {
		return nil, errors.New("RADAR_SITE_LAT must be within [-90, 90]")
	}
	if cfg.Site.Lon < -180 || cfg.Site.Lon > 180 {
		return nil, errors.New("RADAR_SITE_LON must be within [-180, 180]")
	}

	return cfg, nil
}

func parseMask() (*domain.Mask, error) {
	if os.Getenv("MASK_ENABLED") != "true" {
		return nil, nil
	}
	threshold, err := parseFloat("MASK_THRESHOLD", strconv.FormatFloat(domain.DefaultMaskThreshold, 'f', -1, 64))
	if err != nil {
		return nil, err
	}
	field := sharedcfg.EnvOrDefault("MASK_FIELD", domain.DefaultMaskField)
	if field == "" {
		return nil, errors.New("MASK_FIELD is required when MASK_ENABLED is true")
	}
	return &domain.Mask{Field: field, Threshold: threshold}, nil
}

func parseFloat(key, fallback string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, fallback), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// parseFields splits a comma-separated field list, dropping blanks.
func parseFields(s string) []string {
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func parseVolumeCacheSize() int {
	if s := os.Getenv("VOLUME_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 8
}
