// Package units provides shared angular unit conversions and formatting for
// telescope pointing. Positions are degrees, commanded rates are arcseconds
// per second (the unit the hand control speaks).
package units

import "math"

// ArcsecPerDegree is the number of arcseconds in one degree.
const ArcsecPerDegree = 3600.0

// DegreesToArcsec converts an angle in degrees to arcseconds.
func DegreesToArcsec(deg float64) float64 {
	return deg * ArcsecPerDegree
}

// ArcsecToDegrees converts an angle in arcseconds to degrees.
func ArcsecToDegrees(arcsec float64) float64 {
	return arcsec / ArcsecPerDegree
}

// RadiansToDegrees converts an angle in radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// NormalizeDegrees wraps an angle to the range [0, 360).
func NormalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// DMS is a sexagesimal angle with an explicit sign, as used by the hand
// control location command.
type DMS struct {
	Degrees  int
	Minutes  int
	Seconds  int
	Negative bool
}

// DecimalToDMS decomposes a signed decimal angle into degrees, minutes and
// whole seconds. Rounding is to the nearest second.
func DecimalToDMS(deg float64) DMS {
	neg := deg < 0
	abs := math.Abs(deg)

	d := int(abs)
	remMinutes := (abs - float64(d)) * 60
	m := int(remMinutes)
	s := int(math.Round((remMinutes - float64(m)) * 60))

	// rounding seconds can carry into minutes and degrees
	if s == 60 {
		s = 0
		m++
	}
	if m == 60 {
		m = 0
		d++
	}

	return DMS{Degrees: d, Minutes: m, Seconds: s, Negative: neg}
}

// Decimal converts the DMS value back to a signed decimal angle.
func (a DMS) Decimal() float64 {
	v := float64(a.Degrees) + float64(a.Minutes)/60 + float64(a.Seconds)/3600
	if a.Negative {
		return -v
	}
	return v
}
