package domain

import (
	"math"

	"github.com/tidwall/geodesic"
)

// RangeAzimuth returns the WGS-84 geodesic distance (km) from site to a
// position and the bearing (degrees clockwise from north, [0, 360)) of the
// position as seen from site.
//
// Westward forward azimuths are folded through the back azimuth (the
// bearing from the position back to site): azimuth = 180 + back.
func RangeAzimuth(site Site, lat, lon float64) (rangeKm, azimuth float64) {
	var s12, azi1, azi2 float64
	geodesic.WGS84.Inverse(site.Lat, site.Lon, lat, lon, &s12, &azi1, &azi2)

	azimuth = azi1
	if azi1 < 0 {
		azimuth = 180 + backAzimuth(azi2)
	}
	return s12 / 1000, azimuth
}

// backAzimuth reverses the arrival azimuth at the far end of a geodesic and
// wraps it to (-180, 180].
func backAzimuth(azi2 float64) float64 {
	back := math.Mod(azi2+180, 360)
	switch {
	case back > 180:
		back -= 360
	case back <= -180:
		back += 360
	}
	return back
}
