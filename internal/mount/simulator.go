package mount

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/sattrack/internal/timeutil"
	"github.com/banshee-data/sattrack/internal/units"
)

// Simulator is a kinematic mount model implementing Driver. It integrates
// commanded rates against a Clock, so dev-mode runs exercise the full
// control loop with no hardware attached and tests can drive it from a
// MockClock.
type Simulator struct {
	mu    sync.Mutex
	clock timeutil.Clock

	az, alt         float64 // degrees
	azRate, altRate float64 // commanded, degrees per second
	last            time.Time

	gotoActive        bool
	gotoAz, gotoAlt   float64
	gotoSpeed         float64 // degrees per second
	mode              Mode
	slewCalls         int
	stopCalls         int
	lastAz, lastAlt   int // last commanded rates, arcsec/s
	trackingModeSwaps []Mode
}

// NewSimulator creates a simulator parked at the origin with a 4 deg/s goto
// speed, roughly a consumer mount's fastest slew.
func NewSimulator(clock timeutil.Clock) *Simulator {
	return &Simulator{
		clock:     clock,
		gotoSpeed: 4.0,
		mode:      ModeAltAz,
		last:      clock.Now(),
	}
}

// advance integrates motion up to the current clock time. Callers hold mu.
func (s *Simulator) advance() {
	now := s.clock.Now()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	if dt <= 0 {
		return
	}

	if s.gotoActive {
		s.az = approach(s.az, s.gotoAz, s.gotoSpeed*dt)
		s.alt = approach(s.alt, s.gotoAlt, s.gotoSpeed*dt)
		if s.az == s.gotoAz && s.alt == s.gotoAlt {
			s.gotoActive = false
		}
		return
	}

	s.az += s.azRate * dt
	s.alt += s.altRate * dt
}

func approach(from, to, maxStep float64) float64 {
	d := to - from
	if math.Abs(d) <= maxStep {
		return to
	}
	if d < 0 {
		return from - maxStep
	}
	return from + maxStep
}

// GotoAzAlt starts a simulated slew toward the target position.
func (s *Simulator) GotoAzAlt(az, alt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.gotoActive = true
	s.gotoAz = az
	s.gotoAlt = alt
	s.azRate, s.altRate = 0, 0
	return nil
}

// GotoInProgress reports whether the simulated goto has reached its target.
func (s *Simulator) GotoInProgress() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.gotoActive, nil
}

// Position returns the simulated position, azimuth normalized to [0, 360).
func (s *Simulator) Position() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return units.NormalizeDegrees(s.az), s.alt, nil
}

// TrackingMode returns the simulated onboard mode.
func (s *Simulator) TrackingMode() (Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, nil
}

// SetTrackingMode records the simulated onboard mode.
func (s *Simulator) SetTrackingMode(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackingModeSwaps = append(s.trackingModeSwaps, m)
	s.mode = m
	return nil
}

// SlewAtRate sets the simulated axis rates from arcsec/s commands.
func (s *Simulator) SlewAtRate(azRate, altRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.slewCalls++
	s.lastAz, s.lastAlt = azRate, altRate
	s.azRate = units.ArcsecToDegrees(float64(azRate))
	s.altRate = units.ArcsecToDegrees(float64(altRate))
	return nil
}

// StopSlew zeroes the simulated rates.
func (s *Simulator) StopSlew() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.stopCalls++
	s.azRate, s.altRate = 0, 0
	return nil
}

// SetPosition teleports the simulator, for test setup.
func (s *Simulator) SetPosition(az, alt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.az, s.alt = az, alt
}

// SlewCalls reports how many rate commands have been issued.
func (s *Simulator) SlewCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slewCalls
}

// StopCalls reports how many stop commands have been issued.
func (s *Simulator) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// LastRates returns the most recently commanded rates in arcsec/s.
func (s *Simulator) LastRates() (azRate, altRate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAz, s.lastAlt
}

// ModeHistory returns every tracking mode set on the simulator, in order.
func (s *Simulator) ModeHistory() []Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Mode, len(s.trackingModeSwaps))
	copy(out, s.trackingModeSwaps)
	return out
}
