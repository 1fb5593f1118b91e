package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
)

// Default quality mask: correlation coefficient below 0.8 marks a sample missing.
const (
	DefaultMaskField     = "RHOHV"
	DefaultMaskThreshold = 0.8
)

// Cell is one extracted sample. Valid is false for masked or missing samples.
type Cell struct {
	Value float64
	Valid bool
}

// Present returns a valid cell holding v.
func Present(v float64) Cell { return Cell{Value: v, Valid: true} }

// MarshalJSON encodes missing and NaN cells as null. Infinities, such as
// LinearToDB(0), have no JSON number form and are encoded as the strings
// "+Inf" and "-Inf".
func (c Cell) MarshalJSON() ([]byte, error) {
	switch {
	case !c.Valid || math.IsNaN(c.Value):
		return []byte("null"), nil
	case math.IsInf(c.Value, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(c.Value, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Cell{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !math.IsInf(v, 0) {
			return fmt.Errorf("cell: %q is not a number or an infinity", s)
		}
		*c = Present(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Present(v)
	return nil
}

// Neighborhood is a 3×3 window around a resolved cell. Rows run gate+1,
// gate, gate-1; columns run azimuth-1, azimuth, azimuth+1.
type Neighborhood [3][3]Cell

// Center returns the cell at the resolved gate and azimuth.
func (n Neighborhood) Center() Cell { return n[1][1] }

// Grid returns the window as a slice grid, the shape tabular assembly consumes.
func (n Neighborhood) Grid() [][]Cell {
	grid := make([][]Cell, len(n))
	for i := range n {
		grid[i] = append([]Cell(nil), n[i][:]...)
	}
	return grid
}

// Map applies f to every valid cell. Missing cells stay missing.
func (n Neighborhood) Map(f func(float64) float64) Neighborhood {
	var out Neighborhood
	for i := range n {
		for j := range n[i] {
			if n[i][j].Valid {
				out[i][j] = Present(f(n[i][j].Value))
			}
		}
	}
	return out
}

// windowGateOffsets and windowRayOffsets give the row and column order of a Neighborhood.
var (
	windowGateOffsets = [3]int{+1, 0, -1}
	windowRayOffsets  = [3]int{-1, 0, +1}
)

// Mode selects single-sample or 3×3 extraction.
type Mode int

const (
	ModeWindow Mode = iota
	ModePoint
)

func (m Mode) String() string {
	if m == ModePoint {
		return "point"
	}
	return "window"
}

// ParseMode parses "window" or "point".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "window":
		return ModeWindow, nil
	case "point":
		return ModePoint, nil
	default:
		return 0, fmt.Errorf("unknown extraction mode %q", s)
	}
}

// SeamPolicy decides how ray indices outside [0, rays) are treated.
type SeamPolicy int

const (
	// SeamWrap indexes rays modulo the ray count, so a window centered on
	// ray 0 takes its counter-clockwise neighbor from the last ray.
	SeamWrap SeamPolicy = iota
	// SeamStrict reports an IndexError for any ray outside the volume.
	SeamStrict
)

func (s SeamPolicy) String() string {
	if s == SeamStrict {
		return "strict"
	}
	return "wrap"
}

// ParseSeamPolicy parses "wrap" or "strict".
func ParseSeamPolicy(s string) (SeamPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wrap":
		return SeamWrap, nil
	case "strict":
		return SeamStrict, nil
	default:
		return 0, fmt.Errorf("unknown azimuth seam policy %q", s)
	}
}

// Mask marks samples missing where Field is below Threshold.
type Mask struct {
	Field     string  `json:"field"`
	Threshold float64 `json:"threshold"`
}

// ExtractOptions configures Extract. The zero value extracts an unmasked
// 3×3 window with seam wrapping.
type ExtractOptions struct {
	Mode Mode
	Mask *Mask
	Seam SeamPolicy
}

// FieldValue is a single-point sample of one field.
type FieldValue struct {
	Field string `json:"field"`
	Value Cell   `json:"value"`
}

// FieldWindow is a 3×3 neighborhood of one field.
type FieldWindow struct {
	Field  string       `json:"field"`
	Window Neighborhood `json:"window"`
}

// Extraction holds the values extracted for one resolved cell, in the order
// the fields were requested. Unknown fields are skipped and reported in FieldErrors.
type Extraction struct {
	Values      []FieldValue  `json:"values,omitempty"`
	Windows     []FieldWindow `json:"windows,omitempty"`
	FieldErrors []error       `json:"-"`
}

type namedField struct {
	name string
	data *sparse.DenseArray
}

// Extract reads fields at idx. Unknown fields are recoverable and reported
// in the result; an index outside the volume or an unknown mask field is
// returned as the error.
func Extract(v *Volume, fields []string, idx GateAzimuth, opts ExtractOptions) (Extraction, error) {
	var out Extraction

	selected := make([]namedField, 0, len(fields))
	for _, name := range fields {
		data, ok := v.Fields[name]
		if !ok {
			out.FieldErrors = append(out.FieldErrors, &UnknownFieldError{Field: name, Available: v.FieldNames()})
			continue
		}
		selected = append(selected, namedField{name: name, data: data})
	}

	s := sampler{}
	if opts.Mask != nil {
		maskData, ok := v.Fields[opts.Mask.Field]
		if !ok {
			return out, fmt.Errorf("mask: %w", &UnknownFieldError{Field: opts.Mask.Field, Available: v.FieldNames()})
		}
		s.mask = maskData
		s.threshold = opts.Mask.Threshold
	}

	if opts.Mode == ModePoint {
		ray, gate, err := pointIndex(v, idx, opts.Seam)
		if err != nil {
			return out, err
		}
		out.Values = make([]FieldValue, 0, len(selected))
		for _, f := range selected {
			out.Values = append(out.Values, FieldValue{Field: f.name, Value: s.cell(f.data, ray, gate)})
		}
		return out, nil
	}

	rays, gates, err := windowIndex(v, idx, opts.Seam)
	if err != nil {
		return out, err
	}
	out.Windows = make([]FieldWindow, 0, len(selected))
	for _, f := range selected {
		var n Neighborhood
		for i, gate := range gates {
			for j, ray := range rays {
				n[i][j] = s.cell(f.data, ray, gate)
			}
		}
		out.Windows = append(out.Windows, FieldWindow{Field: f.name, Window: n})
	}
	return out, nil
}

// sampler reads one position of a field, applying the optional quality mask.
type sampler struct {
	mask      *sparse.DenseArray
	threshold float64
}

func (s sampler) cell(data *sparse.DenseArray, ray, gate int) Cell {
	val := data.Get(ray, gate)
	if isMissing(val) {
		return Cell{}
	}
	if s.mask != nil {
		q := s.mask.Get(ray, gate)
		if isMissing(q) || q < s.threshold {
			return Cell{}
		}
	}
	return Present(val)
}

func pointIndex(v *Volume, idx GateAzimuth, seam SeamPolicy) (ray, gate int, err error) {
	rays, gates := v.Shape()
	ray, ok := normalizeRay(idx.Azimuth, rays, seam)
	if !ok || idx.Gate < 0 || idx.Gate >= gates {
		return 0, 0, &IndexError{Azimuth: idx.Azimuth, Gate: idx.Gate, Rays: rays, Gates: gates}
	}
	return ray, idx.Gate, nil
}

// windowIndex returns the ray for each column and the gate for each row of
// the window around idx.
func windowIndex(v *Volume, idx GateAzimuth, seam SeamPolicy) (rays, gates [3]int, err error) {
	nRays, nGates := v.Shape()
	for j, off := range windowRayOffsets {
		ray, ok := normalizeRay(idx.Azimuth+off, nRays, seam)
		if !ok {
			return rays, gates, &IndexError{Azimuth: idx.Azimuth, Gate: idx.Gate, Rays: nRays, Gates: nGates, Window: true}
		}
		rays[j] = ray
	}
	for i, off := range windowGateOffsets {
		gate := idx.Gate + off
		if gate < 0 || gate >= nGates {
			return rays, gates, &IndexError{Azimuth: idx.Azimuth, Gate: idx.Gate, Rays: nRays, Gates: nGates, Window: true}
		}
		gates[i] = gate
	}
	return rays, gates, nil
}

func normalizeRay(ray, rays int, seam SeamPolicy) (int, bool) {
	if rays <= 0 {
		return 0, false
	}
	if ray >= 0 && ray < rays {
		return ray, true
	}
	if seam == SeamStrict {
		return 0, false
	}
	return ((ray % rays) + rays) % rays, true
}
