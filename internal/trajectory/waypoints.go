// Package trajectory turns discrete alt/az ephemeris samples into a smooth,
// kinematically feasible motion profile for an alt-azimuth mount.
//
// The pipeline is Series -> CheckSlewRates -> Pad -> NewMinimumSnap. Each
// stage validates its input so that an infeasible or degenerate pass is
// rejected before any hardware is commanded.
package trajectory

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/sattrack/internal/units"
)

var (
	// ErrInfeasibleTrajectory reports that consecutive samples imply an
	// angular rate beyond the mount's slew limit.
	ErrInfeasibleTrajectory = errors.New("trajectory exceeds mount slew rate")

	// ErrInvalidTrajectory reports malformed waypoint input: too few
	// points or a non-monotonic time grid.
	ErrInvalidTrajectory = errors.New("invalid trajectory input")

	// ErrNumericalFailure reports a singular polynomial system. It should
	// not occur for valid input.
	ErrNumericalFailure = errors.New("trajectory solve failed")
)

// ObservationSample is one ephemeris sample: where the satellite is in the
// observer's sky at an instant. Azimuth is the raw value in [0, 360).
type ObservationSample struct {
	Time     time.Time
	Altitude float64 // degrees above horizon
	Azimuth  float64 // degrees, clockwise from north
}

// Series holds per-axis waypoints on a shared time grid. Times are seconds
// relative to the first sample and strictly increasing. Azimuth values are
// unwrapped: they stay continuous across the 0/360 boundary and may leave
// [0, 360). Altitude is bounded and never unwrapped.
type Series struct {
	Times    []float64
	Altitude []float64
	Azimuth  []float64
}

// UnwrapStep returns raw adjusted by a whole number of turns so that it lies
// within a half turn of prev. Applying it to an already-continuous sequence
// changes nothing.
func UnwrapStep(prev, raw float64) float64 {
	for raw-prev > 180 {
		raw -= 360
	}
	for prev-raw > 180 {
		raw += 360
	}
	return raw
}

// NewSeries converts ephemeris samples into a waypoint series with relative
// times and a continuous azimuth sequence.
func NewSeries(samples []ObservationSample) (*Series, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrInvalidTrajectory, len(samples))
	}

	s := &Series{
		Times:    make([]float64, len(samples)),
		Altitude: make([]float64, len(samples)),
		Azimuth:  make([]float64, len(samples)),
	}

	t0 := samples[0].Time
	for i, smp := range samples {
		s.Times[i] = smp.Time.Sub(t0).Seconds()
		s.Altitude[i] = smp.Altitude
		az := smp.Azimuth
		if i > 0 {
			az = UnwrapStep(s.Azimuth[i-1], az)
		}
		s.Azimuth[i] = az
	}

	for i := 1; i < len(s.Times); i++ {
		if s.Times[i] <= s.Times[i-1] {
			return nil, fmt.Errorf("%w: sample times not strictly increasing at index %d", ErrInvalidTrajectory, i)
		}
	}
	return s, nil
}

// CheckSlewRates verifies that every consecutive waypoint pair implies an
// angular rate within maxRate (arcseconds per second) on both axes. This is
// a hard precondition: a violation means the mount physically cannot follow
// the pass.
func (s *Series) CheckSlewRates(maxRate float64) error {
	for i := 1; i < len(s.Times); i++ {
		dt := s.Times[i] - s.Times[i-1]
		altRate := units.DegreesToArcsec(s.Altitude[i]-s.Altitude[i-1]) / dt
		azRate := units.DegreesToArcsec(s.Azimuth[i]-s.Azimuth[i-1]) / dt

		if math.Abs(altRate) > maxRate {
			return fmt.Errorf("%w: altitude rate %.1f arcsec/s over [%.1fs, %.1fs] exceeds %.1f",
				ErrInfeasibleTrajectory, altRate, s.Times[i-1], s.Times[i], maxRate)
		}
		if math.Abs(azRate) > maxRate {
			return fmt.Errorf("%w: azimuth rate %.1f arcsec/s over [%.1fs, %.1fs] exceeds %.1f",
				ErrInfeasibleTrajectory, azRate, s.Times[i-1], s.Times[i], maxRate)
		}
	}
	return nil
}

// Pad returns a new series with one synthetic waypoint prepended and one
// appended, offset in time by pad seconds. The synthetic values are linear
// extrapolations scaled by multiplier, which manufactures non-zero boundary
// velocities so the fitted curve ramps up and down instead of starting and
// stopping abruptly.
func (s *Series) Pad(pad, multiplier float64) (*Series, error) {
	if len(s.Times) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 waypoints to pad, got %d", ErrInvalidTrajectory, len(s.Times))
	}
	if pad <= 0 || multiplier <= 0 {
		return nil, fmt.Errorf("%w: pad and multiplier must be positive", ErrInvalidTrajectory)
	}

	n := len(s.Times)
	out := &Series{
		Times:    make([]float64, 0, n+2),
		Altitude: make([]float64, 0, n+2),
		Azimuth:  make([]float64, 0, n+2),
	}

	out.Times = append(out.Times, s.Times[0]-pad)
	out.Altitude = append(out.Altitude, s.Altitude[0]-multiplier*(s.Altitude[1]-s.Altitude[0]))
	out.Azimuth = append(out.Azimuth, s.Azimuth[0]-multiplier*(s.Azimuth[1]-s.Azimuth[0]))

	out.Times = append(out.Times, s.Times...)
	out.Altitude = append(out.Altitude, s.Altitude...)
	out.Azimuth = append(out.Azimuth, s.Azimuth...)

	out.Times = append(out.Times, s.Times[n-1]+pad)
	out.Altitude = append(out.Altitude, s.Altitude[n-1]+multiplier*(s.Altitude[n-1]-s.Altitude[n-2]))
	out.Azimuth = append(out.Azimuth, s.Azimuth[n-1]+multiplier*(s.Azimuth[n-1]-s.Azimuth[n-2]))

	return out, nil
}
