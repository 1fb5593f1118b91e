package domain

import (
	"math"
	"testing"
	"time"

	"github.com/ctessum/sparse"
)

const (
	testSiteLat = -31.4412824015
	testSiteLon = -64.1919061484
)

var testVolumeTime = time.Date(2021, 6, 1, 18, 4, 31, 0, time.UTC)

// syntheticVolume builds a 360-ray sweep where ray i points at bearing i
// degrees and gate g sits at first + g*spacing meters. Gate coordinates are
// placed with Unproject so resolution round-trips exactly.
func syntheticVolume(t *testing.T, gates int, first, spacing float64, fields map[string]func(ray, gate int) float64) *Volume {
	t.Helper()
	const rays = 360

	lat := sparse.ZerosDense(rays, gates)
	lon := sparse.ZerosDense(rays, gates)
	alt := sparse.ZerosDense(rays, gates)
	for ray := 0; ray < rays; ray++ {
		az := radians(float64(ray))
		for gate := 0; gate < gates; gate++ {
			r := first + float64(gate)*spacing
			p := LocalPoint{X: r * math.Sin(az), Y: r * math.Cos(az)}
			gLon, gLat := Unproject(p, testSiteLon, testSiteLat)
			lat.Set(gLat, ray, gate)
			lon.Set(gLon, ray, gate)
			alt.Set(450, ray, gate)
		}
	}

	v := &Volume{
		Site:          Site{Lat: testSiteLat, Lon: testSiteLon, Altitude: 450},
		Time:          testVolumeTime,
		Fields:        make(map[string]*sparse.DenseArray, len(fields)),
		GateLatitude:  lat,
		GateLongitude: lon,
		GateAltitude:  alt,
	}
	for name, fn := range fields {
		data := sparse.ZerosDense(rays, gates)
		for ray := 0; ray < rays; ray++ {
			for gate := 0; gate < gates; gate++ {
				data.Set(fn(ray, gate), ray, gate)
			}
		}
		v.Fields[name] = data
	}
	return v
}

func indexField(ray, gate int) float64 { return float64(ray*1000 + gate) }

func constField(c float64) func(int, int) float64 {
	return func(int, int) float64 { return c }
}

// targetAt returns the geographic position at bearing deg and range m from the test site.
func targetAt(deg, m float64) (lon, lat float64) {
	a := radians(deg)
	return Unproject(LocalPoint{X: m * math.Sin(a), Y: m * math.Cos(a)}, testSiteLon, testSiteLat)
}
