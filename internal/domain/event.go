package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// VolumeNotice announces a radar volume ready for extraction.
type VolumeNotice struct {
	Path string `json:"path"`
	Site string `json:"site,omitempty"`
}

// PointRecord is the extraction of one station from one volume, the unit
// published to the sink topic.
type PointRecord struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id"`
	Station    string    `json:"station"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Site       string    `json:"site,omitempty"`
	VolumePath string    `json:"volume_path"`
	VolumeTime time.Time `json:"volume_time"`
	Mode       string    `json:"mode"`

	Index           *GateAzimuth `json:"index,omitempty"`
	GeodesicRangeKm float64      `json:"geodesic_range_km"`
	GeodesicAzimuth float64      `json:"geodesic_azimuth"`

	// Columns holds the table row: "<field> [i,j]" in window mode, "<field>" in point mode.
	Columns     map[string]Cell `json:"columns,omitempty"`
	FieldErrors []string        `json:"field_errors,omitempty"`
	Error       string          `json:"error,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
