// Package config loads and validates the station and pass configuration
// files. Both are JSON; fields are validated on load so that a bad geometry,
// rate or timing value aborts before any hardware is touched.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStationPath is the path to the default station configuration file.
const DefaultStationPath = "conf/sattrack.json"

// ErrInvalid is wrapped by all validation failures from this package.
var ErrInvalid = errors.New("invalid configuration")

// Location is the observer's geodetic position.
type Location struct {
	Latitude  float64 `json:"latitude"`  // degrees, north positive
	Longitude float64 `json:"longitude"` // degrees, east positive
	AltitudeM float64 `json:"altitude_m"`
}

// Telescope describes the mount hardware attached to this station.
type Telescope struct {
	Port string `json:"port"` // serial device, e.g. /dev/ttyUSB0

	// MaxSlewRate is the fastest the mount can track, in arcseconds per
	// second. Trajectories implying a faster rate are rejected outright.
	MaxSlewRate float64 `json:"max_slew_rate"`
}

// Station is the per-site configuration: where the telescope is and how it
// is connected.
type Station struct {
	Location  Location  `json:"location"`
	Timezone  string    `json:"timezone"` // IANA name, e.g. "America/Vancouver"
	Telescope Telescope `json:"telescope"`
}

// Validate checks the station configuration for out-of-range values.
func (s *Station) Validate() error {
	if s.Location.Latitude < -90 || s.Location.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalid, s.Location.Latitude)
	}
	if s.Location.Longitude < -180 || s.Location.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalid, s.Location.Longitude)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalid, s.Timezone)
	}
	if s.Telescope.Port == "" {
		return fmt.Errorf("%w: telescope port is required", ErrInvalid)
	}
	if s.Telescope.MaxSlewRate <= 0 {
		return fmt.Errorf("%w: max_slew_rate must be positive, got %v", ErrInvalid, s.Telescope.MaxSlewRate)
	}
	return nil
}

// TZ returns the station's timezone. Validate must have succeeded.
func (s *Station) TZ() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Trajectory holds the waypoint generation parameters for one pass.
type Trajectory struct {
	// StepSeconds is the ephemeris sampling interval.
	StepSeconds int `json:"step"`

	// PadSeconds is how long before and after the pass the mount ramps
	// to and from tracking velocity.
	PadSeconds float64 `json:"pad"`

	// OffsetMultiplier scales the extrapolated value of the synthetic
	// boundary waypoints that give the fitted curve non-zero end
	// velocities.
	OffsetMultiplier float64 `json:"offset_multiplier"`
}

// Pass configures tracking of a single satellite pass.
type Pass struct {
	Satellite  string     `json:"satellite"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Trajectory Trajectory `json:"trajectory"`

	// PeriodSeconds is the control loop period. Sub-second values are
	// typical; the mount is commanded once per period.
	PeriodSeconds float64 `json:"tracking_period"`

	// PrerollTimeoutSeconds bounds the wait for the initial goto to
	// complete. Zero selects the default.
	PrerollTimeoutSeconds float64 `json:"preroll_timeout,omitempty"`
}

// Validate checks the pass configuration for degenerate values.
func (p *Pass) Validate() error {
	if p.Satellite == "" {
		return fmt.Errorf("%w: satellite name is required", ErrInvalid)
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalid)
	}
	if !p.Start.Before(p.End) {
		return fmt.Errorf("%w: start %v must be before end %v", ErrInvalid, p.Start, p.End)
	}
	if p.Trajectory.StepSeconds <= 0 {
		return fmt.Errorf("%w: trajectory step must be positive, got %d", ErrInvalid, p.Trajectory.StepSeconds)
	}
	if p.Trajectory.PadSeconds <= 0 {
		return fmt.Errorf("%w: trajectory pad must be positive, got %v", ErrInvalid, p.Trajectory.PadSeconds)
	}
	if p.Trajectory.OffsetMultiplier <= 0 {
		return fmt.Errorf("%w: offset_multiplier must be positive, got %v", ErrInvalid, p.Trajectory.OffsetMultiplier)
	}
	if p.PeriodSeconds <= 0 {
		return fmt.Errorf("%w: tracking_period must be positive, got %v", ErrInvalid, p.PeriodSeconds)
	}
	if p.PrerollTimeoutSeconds < 0 {
		return fmt.Errorf("%w: preroll_timeout must not be negative, got %v", ErrInvalid, p.PrerollTimeoutSeconds)
	}
	return nil
}

// Duration returns the nominal pass duration, rounded to whole seconds.
func (p *Pass) Duration() time.Duration {
	return p.End.Sub(p.Start).Round(time.Second)
}

// Period returns the control loop period as a duration.
func (p *Pass) Period() time.Duration {
	return time.Duration(p.PeriodSeconds * float64(time.Second))
}

// Pad returns the ramp padding as a duration.
func (p *Pass) Pad() time.Duration {
	return time.Duration(p.Trajectory.PadSeconds * float64(time.Second))
}

// LoadStation loads and validates a station configuration file.
func LoadStation(path string) (*Station, error) {
	var s Station
	if err := loadJSON(path, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadPass loads and validates a pass configuration file.
func LoadPass(path string) (*Pass, error) {
	var p Pass
	if err := loadJSON(path, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// maxFileSize caps config file reads (1MB).
const maxFileSize = 1 * 1024 * 1024

func loadJSON(path string, v any) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("%w: config file must have .json extension, got %q", ErrInvalid, ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrInvalid, fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}
