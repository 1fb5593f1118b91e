package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/sparse"
)

var (
	// ErrShapeMismatch is returned when a field or coordinate array does not
	// match the volume's rays × gates shape.
	ErrShapeMismatch = errors.New("array shape does not match volume")

	// ErrTimeUnits is returned when a time units string does not follow the
	// "<unit> since YYYY-MM-DDTHH:MM:SSZ" convention.
	ErrTimeUnits = errors.New("invalid time units")
)

// timeUnitsLayout is the reference timestamp layout after the "since" keyword.
const timeUnitsLayout = "2006-01-02T15:04:05Z"

// Site is the geographic position of a radar antenna.
type Site struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Altitude float64 `json:"altitude"`
}

// Volume is one radar sweep: named 2-D fields indexed [ray][gate] plus the
// geographic coordinates of every gate. Masked samples are NaN.
//
// A Volume is read-only once built and may be shared between goroutines.
type Volume struct {
	Site   Site
	Time   time.Time
	Fields map[string]*sparse.DenseArray

	GateLatitude  *sparse.DenseArray
	GateLongitude *sparse.DenseArray
	GateAltitude  *sparse.DenseArray
}

// VolumeLoader provides radar volumes by path.
type VolumeLoader interface {
	Load(ctx context.Context, path string) (*Volume, error)
}

// Shape returns the number of rays and gates of the volume.
func (v *Volume) Shape() (rays, gates int) {
	if v.GateLatitude == nil || len(v.GateLatitude.Shape) != 2 {
		return 0, 0
	}
	return v.GateLatitude.Shape[0], v.GateLatitude.Shape[1]
}

// FieldNames returns the volume's field names in sorted order.
func (v *Volume) FieldNames() []string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every field and coordinate array shares the rays ×
// gates shape and that there are at least two gates to measure spacing from.
func (v *Volume) Validate() error {
	if v.GateLatitude == nil || v.GateLongitude == nil {
		return fmt.Errorf("gate coordinates: %w", ErrShapeMismatch)
	}
	rays, gates := v.Shape()
	if rays == 0 || gates < 2 {
		return fmt.Errorf("volume needs at least one ray and two gates, got %dx%d: %w", rays, gates, ErrShapeMismatch)
	}

	check := func(name string, a *sparse.DenseArray) error {
		if a == nil {
			return nil
		}
		if len(a.Shape) != 2 || a.Shape[0] != rays || a.Shape[1] != gates {
			return fmt.Errorf("%s has shape %v, want [%d %d]: %w", name, a.Shape, rays, gates, ErrShapeMismatch)
		}
		return nil
	}
	if err := check("gate_longitude", v.GateLongitude); err != nil {
		return err
	}
	if err := check("gate_altitude", v.GateAltitude); err != nil {
		return err
	}
	for _, name := range v.FieldNames() {
		if err := check(name, v.Fields[name]); err != nil {
			return err
		}
	}
	return nil
}

// GateLocation returns the latitude, longitude, and altitude of the gate at idx.
func (v *Volume) GateLocation(idx GateAzimuth) (lat, lon, alt float64, err error) {
	rays, gates := v.Shape()
	ray, ok := normalizeRay(idx.Azimuth, rays, SeamWrap)
	if !ok || idx.Gate < 0 || idx.Gate >= gates {
		return 0, 0, 0, &IndexError{Azimuth: idx.Azimuth, Gate: idx.Gate, Rays: rays, Gates: gates}
	}
	lat = v.GateLatitude.Get(ray, idx.Gate)
	lon = v.GateLongitude.Get(ray, idx.Gate)
	if v.GateAltitude != nil {
		alt = v.GateAltitude.Get(ray, idx.Gate)
	}
	return lat, lon, alt, nil
}

// ParseTimeUnits extracts the reference time from a CF time units string
// such as "seconds since 2021-06-01T18:04:31Z".
func ParseTimeUnits(units string) (time.Time, error) {
	_, ref, ok := strings.Cut(units, "since ")
	if !ok {
		return time.Time{}, fmt.Errorf("%q: %w", units, ErrTimeUnits)
	}
	t, err := time.Parse(timeUnitsLayout, strings.TrimSpace(ref))
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", units, ErrTimeUnits)
	}
	return t.UTC(), nil
}

func isMissing(v float64) bool {
	return math.IsNaN(v)
}
