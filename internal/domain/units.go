package domain

import "math"

// DBToLinear converts a logarithmic value to linear units: 10^(dB/10).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/10)
}

// LinearToDB converts a linear value to decibels: 10·log10(linear).
// Zero maps to -Inf.
func LinearToDB(linear float64) float64 {
	return 10 * math.Log10(linear)
}

// RainRateZR returns the precipitation rate (mm/h) from the power law
// Z = a·R^b, i.e. R = (Z/a)^(1/b). Z must be in linear units (mm⁶/m³).
func RainRateZR(a, b, z float64) float64 {
	return math.Pow(z/a, 1/b)
}

// RainRateZZDR returns the precipitation rate (mm/h) from the dual-polarization
// relation R = a·Z^b·ZDR^c. Z and ZDR must be in linear units.
func RainRateZZDR(a, b, c, z, zdr float64) float64 {
	return a * math.Pow(z, b) * math.Pow(zdr, c)
}
