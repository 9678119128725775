// Package ephemeris computes where a satellite appears in an observer's sky.
// It propagates a two-line element set with SGP4 and converts the resulting
// ECI position to topocentric look angles at fixed time steps.
package ephemeris

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/banshee-data/sattrack/internal/trajectory"
	"github.com/banshee-data/sattrack/internal/units"
)

// Observer is a geodetic observing site.
type Observer struct {
	Latitude  float64 // degrees, north positive
	Longitude float64 // degrees, east positive
	AltitudeM float64 // metres above the ellipsoid
}

// Provider produces alt/az observation samples for one satellite as seen
// from one site. Construction parses the TLE once; sampling is a pure batch
// computation.
type Provider struct {
	sat satellite.Satellite
	obs Observer
}

// NewProvider builds a provider from TLE lines and an observing site.
func NewProvider(line1, line2 string, obs Observer) (*Provider, error) {
	if len(line1) < 69 || len(line2) < 69 || line1[0] != '1' || line2[0] != '2' {
		return nil, fmt.Errorf("malformed TLE lines")
	}
	if obs.Latitude < -90 || obs.Latitude > 90 {
		return nil, fmt.Errorf("observer latitude %v out of range", obs.Latitude)
	}
	if obs.Longitude < -180 || obs.Longitude > 180 {
		return nil, fmt.Errorf("observer longitude %v out of range", obs.Longitude)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &Provider{sat: sat, obs: obs}, nil
}

// At returns the satellite's altitude and azimuth in degrees at the given
// instant. Azimuth is the raw value in [0, 360); altitude is negative below
// the horizon.
func (p *Provider) At(t time.Time) (alt, az float64) {
	utc := t.UTC()
	year, month, day := utc.Date()
	hour, min, sec := utc.Clock()

	pos, _ := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	jday := satellite.JDay(year, int(month), day, hour, min, sec)

	angles := satellite.ECIToLookAngles(pos, satellite.LatLong{
		Latitude:  p.obs.Latitude * math.Pi / 180,
		Longitude: p.obs.Longitude * math.Pi / 180,
	}, p.obs.AltitudeM/1000, jday)

	alt = units.RadiansToDegrees(angles.El)
	az = units.NormalizeDegrees(units.RadiansToDegrees(angles.Az))
	return alt, az
}

// Samples returns observation samples every step over [start, start+d),
// matching the waypoint grid the trajectory synthesizer consumes.
func (p *Provider) Samples(start time.Time, d, step time.Duration) ([]trajectory.ObservationSample, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %v", step)
	}
	if d < 2*step {
		return nil, fmt.Errorf("duration %v too short for step %v: need at least two samples", d, step)
	}

	var out []trajectory.ObservationSample
	for offset := time.Duration(0); offset < d; offset += step {
		at := start.Add(offset)
		alt, az := p.At(at)
		out = append(out, trajectory.ObservationSample{
			Time:     at,
			Altitude: alt,
			Azimuth:  az,
		})
	}
	return out, nil
}
