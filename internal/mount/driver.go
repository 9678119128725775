// Package mount drives an alt-azimuth telescope mount. The NexStar type
// speaks the Celestron hand-control serial protocol; Simulator provides a
// kinematic stand-in for development and tests.
package mount

import "errors"

var (
	// ErrNotConnected reports that the hand control did not answer the
	// connection check.
	ErrNotConnected = errors.New("mount not connected")

	// ErrCommandFailed wraps any wire-level failure talking to the mount.
	ErrCommandFailed = errors.New("mount command failed")
)

// Mode is the mount's onboard tracking mode. During closed-loop tracking the
// mode is set to Off so the firmware does not fight commanded rates.
type Mode byte

const (
	ModeOff Mode = iota
	ModeAltAz
	ModeEQNorth
	ModeEQSouth
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeAltAz:
		return "alt-az"
	case ModeEQNorth:
		return "eq-north"
	case ModeEQSouth:
		return "eq-south"
	default:
		return "unknown"
	}
}

// Driver is the capability set the tracking loop needs from a mount. The
// loop owns the driver exclusively while it runs; no other component may
// issue motion commands during that window.
type Driver interface {
	// GotoAzAlt starts a slew to the given absolute position in degrees.
	// It returns once the command is accepted, not when motion completes.
	GotoAzAlt(az, alt float64) error

	// GotoInProgress reports whether a goto is still running.
	GotoInProgress() (bool, error)

	// Position returns the current azimuth and altitude in degrees.
	Position() (az, alt float64, err error)

	// TrackingMode reads the onboard tracking mode.
	TrackingMode() (Mode, error)

	// SetTrackingMode sets the onboard tracking mode.
	SetTrackingMode(Mode) error

	// SlewAtRate commands a fixed-rate slew on both axes, in arcseconds
	// per second. Negative values reverse direction.
	SlewAtRate(azRate, altRate int) error

	// StopSlew halts all commanded motion.
	StopSlew() error
}
