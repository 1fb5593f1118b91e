package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidNotice is returned for a source message that does not name a volume.
var ErrInvalidNotice = errors.New("invalid volume notice")

// ParseVolumeNotice deserializes a RawEvent's value into a VolumeNotice.
func ParseVolumeNotice(raw RawEvent) (VolumeNotice, error) {
	var n VolumeNotice
	if err := json.Unmarshal(raw.Value, &n); err != nil {
		return VolumeNotice{}, fmt.Errorf("parse volume notice: %w", err)
	}
	n.Path = strings.TrimSpace(n.Path)
	if n.Path == "" {
		return VolumeNotice{}, fmt.Errorf("missing path: %w", ErrInvalidNotice)
	}
	return n, nil
}

// RecordOptions carries the per-volume context of BuildPointRecords.
type RecordOptions struct {
	Notice  VolumeNotice
	BatchID string
	Mode    Mode
	// Site is the radar position used for the geodesic range and azimuth.
	Site Site
}

// BuildPointRecords turns a batch into one record per label, in input order.
// Failed points yield a record with Error set and no columns.
func BuildPointRecords(batch BatchResult, opts RecordOptions) []PointRecord {
	now := clock.Now().UTC()
	records := make([]PointRecord, 0, len(batch.Labels))

	for _, label := range batch.Labels {
		r := batch.Points[label]
		rangeKm, azimuth := RangeAzimuth(opts.Site, r.Point.Lat, r.Point.Lon)

		rec := PointRecord{
			ID:              generateID(opts.Notice.Site, label, batch.Time),
			BatchID:         opts.BatchID,
			Station:         label,
			Lat:             r.Point.Lat,
			Lon:             r.Point.Lon,
			Site:            opts.Notice.Site,
			VolumePath:      opts.Notice.Path,
			VolumeTime:      batch.Time.UTC(),
			Mode:            opts.Mode.String(),
			GeodesicRangeKm: rangeKm,
			GeodesicAzimuth: azimuth,
			ProcessedAt:     now,
		}
		if r.Index.GateSpacing > 0 {
			idx := r.Index
			rec.Index = &idx
		}
		for _, fe := range r.FieldErrors {
			rec.FieldErrors = append(rec.FieldErrors, fe.Error())
		}

		if r.Failed() {
			rec.Error = r.Err.Error()
			records = append(records, rec)
			continue
		}

		row, err := ExtractionRow(batch.Time, r.Extraction)
		if err != nil {
			rec.Error = err.Error()
			records = append(records, rec)
			continue
		}
		rec.Columns = make(map[string]Cell, len(row.Columns))
		for i, col := range row.Columns {
			rec.Columns[col] = row.Cells[i]
		}
		records = append(records, rec)
	}
	return records
}

// SerializePointRecord marshals a record into an OutputEvent keyed by its ID.
func SerializePointRecord(rec PointRecord) (OutputEvent, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize point record: %w", err)
	}
	return OutputEvent{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: map[string]string{
			"station":      rec.Station,
			"volume_time":  rec.VolumeTime.Format(time.RFC3339),
			"processed_at": rec.ProcessedAt.Format(time.RFC3339),
			"batch_id":     rec.BatchID,
		},
	}, nil
}

// generateID produces a deterministic ID from the site, station label and
// volume time, so replaying a volume notice yields the same record IDs.
func generateID(site, label string, volumeTime time.Time) string {
	input := fmt.Sprintf("%s|%s|%s", site, label, volumeTime.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
