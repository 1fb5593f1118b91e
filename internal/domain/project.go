package domain

import "math"

const (
	// aeqdEarthRadius is the sphere radius (m) of the local azimuthal-equidistant projection.
	aeqdEarthRadius = 6370997.0

	// effectiveEarthRadius is the 4/3 earth radius (m) of the standard beam propagation model.
	effectiveEarthRadius = 6371000.0 * 4.0 / 3.0
)

// LocalPoint is a radar-centered planar position in meters: X east, Y north.
type LocalPoint struct {
	X float64
	Y float64
}

// Radius returns the distance of the point from the radar in meters.
func (p LocalPoint) Radius() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y)
}

// Project converts a geographic position to local coordinates relative to
// the radar with an azimuthal-equidistant projection. Inputs are decimal degrees.
func Project(lon, lat, radarLon, radarLat float64) LocalPoint {
	latR := radians(lat)
	lat0 := radians(radarLat)
	dLon := radians(lon) - radians(radarLon)

	cosC := math.Sin(lat0)*math.Sin(latR) + math.Cos(lat0)*math.Cos(latR)*math.Cos(dLon)
	cosC = math.Max(-1, math.Min(1, cosC))
	c := math.Acos(cosC)

	k := 1.0
	if c != 0 {
		k = c / math.Sin(c)
	}

	return LocalPoint{
		X: aeqdEarthRadius * k * math.Cos(latR) * math.Sin(dLon),
		Y: aeqdEarthRadius * k * (math.Cos(lat0)*math.Sin(latR) - math.Sin(lat0)*math.Cos(latR)*math.Cos(dLon)),
	}
}

// Unproject is the inverse of Project: it returns the longitude and latitude
// of a local point. Longitudes are wrapped to [-180, 180].
func Unproject(p LocalPoint, radarLon, radarLat float64) (lon, lat float64) {
	lat0 := radians(radarLat)
	lon0 := radians(radarLon)

	rho := p.Radius()
	if rho == 0 {
		return radarLon, radarLat
	}
	c := rho / aeqdEarthRadius

	lat = degrees(math.Asin(math.Cos(c)*math.Sin(lat0) + p.Y*math.Sin(c)*math.Cos(lat0)/rho))

	x1 := p.X * math.Sin(c)
	x2 := rho*math.Cos(lat0)*math.Cos(c) - p.Y*math.Sin(lat0)*math.Sin(c)
	lon = degrees(lon0 + math.Atan2(x1, x2))
	switch {
	case lon > 180:
		lon -= 360
	case lon < -180:
		lon += 360
	}
	return lon, lat
}

// AntennaToCartesian converts a gate's slant range (m), azimuth and
// elevation (degrees) to local coordinates plus height above the antenna,
// using the 4/3 effective earth radius beam model.
func AntennaToCartesian(rangeM, azimuth, elevation float64) (p LocalPoint, height float64) {
	e := radians(elevation)
	a := radians(azimuth)
	r := rangeM
	R := effectiveEarthRadius

	height = math.Sqrt(r*r+R*R+2*r*R*math.Sin(e)) - R
	s := R * math.Asin(r*math.Cos(e)/(R+height))
	return LocalPoint{X: s * math.Sin(a), Y: s * math.Cos(a)}, height
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
