package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateGateSpacing is returned when the first two gates of ray 0 do
// not define a positive range spacing.
var ErrDegenerateGateSpacing = errors.New("degenerate gate spacing")

// GateAzimuth is the nearest sampling cell for a target position.
// Gate and Azimuth index into the volume; the remaining fields are diagnostics.
type GateAzimuth struct {
	Gate    int `json:"gate"`
	Azimuth int `json:"azimuth"`

	// Theta is the exact bearing in degrees clockwise from north.
	Theta float64 `json:"theta"`
	// RangeKm is the planar distance to the radar.
	RangeKm float64 `json:"range_km"`
	// GateSpacing is Δr in meters, measured on ray 0.
	GateSpacing float64 `json:"gate_spacing_m"`
}

// Bearing returns the clockwise angle from north of a local point, in [0, 360).
func Bearing(p LocalPoint) float64 {
	x, y := p.X, p.Y
	switch {
	case x > 0 && y > 0:
		return degrees(math.Atan(math.Abs(x / y)))
	case x > 0 && y < 0:
		return degrees(math.Atan(math.Abs(y)/x)) + 90
	case x < 0 && y < 0:
		return degrees(math.Atan(math.Abs(x/y))) + 180
	case x < 0 && y > 0:
		return degrees(math.Atan(y/math.Abs(x))) + 270
	case x > 0: // y == 0
		return 90
	case y < 0: // x == 0
		return 180
	case x < 0: // y == 0
		return 270
	default: // north axis or the radar site
		return 0
	}
}

// GateSpacing measures the first gate radius and the gate spacing of the
// volume from the coordinates of ray 0, gates 0 and 1.
func GateSpacing(v *Volume) (first, spacing float64, err error) {
	_, gates := v.Shape()
	if gates < 2 {
		return 0, 0, fmt.Errorf("need two gates on ray 0, got %d: %w", gates, ErrDegenerateGateSpacing)
	}
	r0 := Project(v.GateLongitude.Get(0, 0), v.GateLatitude.Get(0, 0), v.Site.Lon, v.Site.Lat).Radius()
	r1 := Project(v.GateLongitude.Get(0, 1), v.GateLatitude.Get(0, 1), v.Site.Lon, v.Site.Lat).Radius()
	spacing = r1 - r0
	if !(spacing > 0) {
		return 0, 0, fmt.Errorf("r0=%.3fm r1=%.3fm: %w", r0, r1, ErrDegenerateGateSpacing)
	}
	return r0, spacing, nil
}

// Resolve returns the nearest gate and ray for a geographic position.
//
// The result is not bounds-checked against the volume; extraction reports
// indices that fall outside it.
func Resolve(v *Volume, lon, lat float64) (GateAzimuth, error) {
	first, spacing, err := GateSpacing(v)
	if err != nil {
		return GateAzimuth{}, err
	}

	p := Project(lon, lat, v.Site.Lon, v.Site.Lat)
	r := p.Radius()
	theta := Bearing(p)

	return GateAzimuth{
		Gate:        int(math.RoundToEven((r - first) / spacing)),
		Azimuth:     int(math.RoundToEven(theta)),
		Theta:       theta,
		RangeKm:     r / 1000,
		GateSpacing: spacing,
	}, nil
}
