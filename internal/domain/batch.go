package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateTimeKey is the reserved BatchResult key carrying the volume timestamp.
const DateTimeKey = "datetime"

// ErrReservedLabel is returned for a point whose label collides with DateTimeKey.
var ErrReservedLabel = errors.New("point label is reserved")

// Point is a labeled target position, e.g. a rain gauge.
type Point struct {
	Label string  `json:"label" yaml:"label"`
	Lat   float64 `json:"lat" yaml:"lat"`
	Lon   float64 `json:"lon" yaml:"lon"`
}

// PointResult is the outcome of resolving and extracting one point.
// Err is set when the point failed; a failed point carries no values.
type PointResult struct {
	Point Point
	Index GateAzimuth
	Extraction
	Err error
}

// Failed reports whether the point could not be extracted.
func (r PointResult) Failed() bool { return r.Err != nil }

// BatchResult holds the extractions of a list of points against one volume.
// Labels keeps the input order; a repeated label keeps its first position
// and the later point's result.
type BatchResult struct {
	Time   time.Time
	Labels []string
	Points map[string]PointResult
	// Errors lists points rejected before extraction.
	Errors []error
}

// Failures returns the number of failed points.
func (b BatchResult) Failures() int {
	n := 0
	for _, r := range b.Points {
		if r.Failed() {
			n++
		}
	}
	return n
}

// ExtractMany resolves and extracts every point independently. A point that
// fails is recorded with its error; the remaining points are still processed.
func ExtractMany(v *Volume, fields []string, points []Point, opts ExtractOptions) BatchResult {
	res := BatchResult{
		Time:   v.Time,
		Labels: make([]string, 0, len(points)),
		Points: make(map[string]PointResult, len(points)),
	}

	for _, p := range points {
		if p.Label == DateTimeKey {
			res.Errors = append(res.Errors, fmt.Errorf("point %q (%.4f, %.4f): %w", p.Label, p.Lat, p.Lon, ErrReservedLabel))
			continue
		}
		if _, seen := res.Points[p.Label]; !seen {
			res.Labels = append(res.Labels, p.Label)
		}
		res.Points[p.Label] = extractPoint(v, fields, p, opts)
	}
	return res
}

func extractPoint(v *Volume, fields []string, p Point, opts ExtractOptions) PointResult {
	out := PointResult{Point: p}

	idx, err := Resolve(v, p.Lon, p.Lat)
	if err != nil {
		out.Err = fmt.Errorf("resolve: %w", err)
		return out
	}
	out.Index = idx

	ext, err := Extract(v, fields, idx, opts)
	if err != nil {
		out.FieldErrors = ext.FieldErrors
		out.Err = fmt.Errorf("extract: %w", err)
		return out
	}
	out.Extraction = ext
	return out
}

type pointJSON struct {
	Lat         float64       `json:"lat"`
	Lon         float64       `json:"lon"`
	Index       *GateAzimuth  `json:"index,omitempty"`
	Values      []FieldValue  `json:"values,omitempty"`
	Windows     []FieldWindow `json:"windows,omitempty"`
	FieldErrors []string      `json:"field_errors,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// MarshalJSON encodes the batch as one object: the DateTimeKey entry first,
// then one entry per label in input order.
func (b BatchResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	key, _ := json.Marshal(DateTimeKey)
	ts, err := json.Marshal(b.Time.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(ts)

	for _, label := range b.Labels {
		r := b.Points[label]
		pj := pointJSON{Lat: r.Point.Lat, Lon: r.Point.Lon, Values: r.Values, Windows: r.Windows}
		if r.Err != nil {
			pj.Error = r.Err.Error()
		}
		if r.Index.GateSpacing > 0 {
			idx := r.Index
			pj.Index = &idx
		}
		for _, fe := range r.FieldErrors {
			pj.FieldErrors = append(pj.FieldErrors, fe.Error())
		}

		k, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(pj)
		if err != nil {
			return nil, fmt.Errorf("encode point %q: %w", label, err)
		}
		buf.WriteByte(',')
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
