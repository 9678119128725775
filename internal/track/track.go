// Package track runs the real-time closed loop that drives a mount along a
// synthesized trajectory: pre-roll to the first sample, wait for the
// scheduled start, then command axis rates each period while sampling
// pointing error, with guaranteed hardware cleanup on every exit path.
package track

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sattrack/internal/monitoring"
	"github.com/banshee-data/sattrack/internal/mount"
	"github.com/banshee-data/sattrack/internal/timeutil"
	"github.com/banshee-data/sattrack/internal/trajectory"
	"github.com/banshee-data/sattrack/internal/units"
)

var (
	// ErrStartElapsed reports that a scheduled start time has already
	// passed; execution must be rejected before any motion.
	ErrStartElapsed = errors.New("scheduled start time has already passed")

	// ErrPrerollTimeout reports that the initial goto did not finish
	// within the configured bound.
	ErrPrerollTimeout = errors.New("timed out waiting for mount to reach start position")
)

// Config holds the loop cadences. Period is required; the rest default.
type Config struct {
	// Pad is the ramp time before and after the nominal pass.
	Pad time.Duration

	// Period is the control loop period; the mount is commanded a new
	// rate once per period.
	Period time.Duration

	// ErrorSampleInterval is how often to read back the mount position
	// and record pointing error. Reading position costs a round trip to
	// the hand control, so it runs coarser than the command cadence.
	ErrorSampleInterval time.Duration

	// ProgressInterval is how often to emit a percent-complete message.
	ProgressInterval time.Duration

	// PrerollPollInterval is how often to poll goto completion.
	PrerollPollInterval time.Duration

	// PrerollTimeout bounds the pre-roll goto wait.
	PrerollTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ErrorSampleInterval <= 0 {
		c.ErrorSampleInterval = time.Second
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 5 * time.Second
	}
	if c.PrerollPollInterval <= 0 {
		c.PrerollPollInterval = 500 * time.Millisecond
	}
	if c.PrerollTimeout <= 0 {
		c.PrerollTimeout = 90 * time.Second
	}
	return c
}

// ErrorSample is one measured pointing error: commanded minus actual, in
// degrees, at a trajectory-relative time.
type ErrorSample struct {
	RelTime  float64 // seconds
	AzError  float64 // degrees
	AltError float64 // degrees
}

// Session is the record of one tracking run. It is created at loop start and
// returned to the caller at loop exit; the error samples are a finite,
// non-restartable sequence.
type Session struct {
	ID        uuid.UUID
	Satellite string
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool
	Loops     int
	Overruns  int
	Errors    []ErrorSample
}

// Tracker executes tracking runs. The driver is owned exclusively by Run for
// the duration of the call.
type Tracker struct {
	Driver mount.Driver
	Clock  timeutil.Clock
	Logf   func(format string, v ...any)
	Config Config

	Satellite string
}

func (t *Tracker) logf(format string, v ...any) {
	if t.Logf != nil {
		t.Logf(format, v...)
		return
	}
	monitoring.Logf(format, v...)
}

// Run drives the mount along traj. In dry-run mode tracking begins as soon
// as the mount reaches the start position; otherwise Run sleeps until
// startAt minus the pad, and rejects startAt values already in the past.
//
// On every exit path after the tracking-mode handoff — normal completion,
// context cancellation or a hardware failure inside the loop — the mount is
// stopped and its original tracking mode restored exactly once.
func (t *Tracker) Run(ctx context.Context, traj *trajectory.Trajectory, startAt time.Time, dryRun bool) (*Session, error) {
	cfg := t.Config.withDefaults()
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("tracking period must be positive, got %v", cfg.Period)
	}

	if !dryRun && t.Clock.Now().After(startAt) {
		return nil, fmt.Errorf("%w: start was %v", ErrStartElapsed, startAt)
	}

	if err := t.preroll(ctx, traj); err != nil {
		return nil, err
	}

	if !dryRun {
		if err := t.waitForStart(ctx, startAt, cfg.Pad); err != nil {
			return nil, err
		}
	} else {
		t.logf("dry run: tracking the trajectory immediately")
	}

	// stash the onboard tracking mode and switch to manual rates so the
	// firmware does not fight the commanded slews
	originalMode, err := t.Driver.TrackingMode()
	if err != nil {
		return nil, fmt.Errorf("read tracking mode: %w", err)
	}
	if err := t.Driver.SetTrackingMode(mount.ModeOff); err != nil {
		return nil, fmt.Errorf("disable tracking mode: %w", err)
	}

	session := &Session{
		ID:        uuid.New(),
		Satellite: t.Satellite,
		StartedAt: t.Clock.Now(),
		DryRun:    dryRun,
	}

	loopErr := t.loop(ctx, traj, cfg, session)

	// guaranteed cleanup: stop the mount and restore the stashed mode no
	// matter how the loop exited
	if err := t.Driver.StopSlew(); err != nil {
		t.logf("cleanup: stop slew failed: %v", err)
		if loopErr == nil {
			loopErr = fmt.Errorf("stop slew: %w", err)
		}
	}
	if err := t.Driver.SetTrackingMode(originalMode); err != nil {
		t.logf("cleanup: restoring tracking mode %v failed: %v", originalMode, err)
		if loopErr == nil {
			loopErr = fmt.Errorf("restore tracking mode: %w", err)
		}
	}

	session.Duration = t.Clock.Since(session.StartedAt)
	if loopErr != nil {
		return session, loopErr
	}
	t.logf("tracking complete: %d loops, %d overruns, %d error samples",
		session.Loops, session.Overruns, len(session.Errors))
	return session, nil
}

// preroll commands an absolute goto to the first trajectory sample and polls
// until the mount arrives or the timeout elapses.
func (t *Tracker) preroll(ctx context.Context, traj *trajectory.Trajectory) error {
	cfg := t.Config.withDefaults()

	start := traj.At(traj.Start())
	t.logf("moving to start position az %.3f alt %.3f", start.Azimuth.Position, start.Altitude.Position)
	if err := t.Driver.GotoAzAlt(units.NormalizeDegrees(start.Azimuth.Position), start.Altitude.Position); err != nil {
		return fmt.Errorf("goto start position: %w", err)
	}

	deadline := t.Clock.Now().Add(cfg.PrerollTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		busy, err := t.Driver.GotoInProgress()
		if err != nil {
			return fmt.Errorf("poll goto status: %w", err)
		}
		if !busy {
			break
		}
		if t.Clock.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrPrerollTimeout, cfg.PrerollTimeout)
		}
		t.Clock.Sleep(cfg.PrerollPollInterval)
	}
	t.logf("arrived at trajectory start position")
	return nil
}

// waitForStart sleeps until startAt minus pad, in short slices so context
// cancellation is honoured during long waits.
func (t *Tracker) waitForStart(ctx context.Context, startAt time.Time, pad time.Duration) error {
	wakeAt := startAt.Add(-pad)
	t.logf("waiting %v until tracking begins (includes %v pad)", t.Clock.Until(wakeAt).Round(time.Millisecond), pad)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := t.Clock.Until(wakeAt)
		if remaining <= 0 {
			return nil
		}
		if remaining > time.Second {
			remaining = time.Second
		}
		t.Clock.Sleep(remaining)
	}
}

// loop is the fixed-period control loop. Relative time is always derived
// from the wall clock, never from the loop counter, so an overrun on one
// tick self-corrects on the next instead of desynchronizing from the
// trajectory.
func (t *Tracker) loop(ctx context.Context, traj *trajectory.Trajectory, cfg Config, session *Session) error {
	total := time.Duration(traj.Duration() * float64(time.Second))
	pad := cfg.Pad.Seconds()

	t0 := t.Clock.Now()
	paddedT0 := t0.Add(cfg.Pad)

	loopsPerErrorSample := intervalLoops(cfg.ErrorSampleInterval, cfg.Period)
	loopsPerProgress := intervalLoops(cfg.ProgressInterval, cfg.Period)

	// seed the wrap correction for error sampling from the mount's
	// actual position at loop entry
	lastAz, _, err := t.Driver.Position()
	if err != nil {
		return fmt.Errorf("read initial position: %w", err)
	}

	for t.Clock.Since(t0) < total {
		if err := ctx.Err(); err != nil {
			return err
		}

		opStart := t.Clock.Now()
		rt := opStart.Sub(paddedT0).Seconds() // negative during ramp-up

		st := traj.At(rt)
		azRate := int(math.Round(units.DegreesToArcsec(st.Azimuth.Velocity)))
		altRate := int(math.Round(units.DegreesToArcsec(st.Altitude.Velocity)))
		if err := t.Driver.SlewAtRate(azRate, altRate); err != nil {
			return fmt.Errorf("command slew rates: %w", err)
		}

		if session.Loops%loopsPerErrorSample == 0 {
			az, alt, err := t.Driver.Position()
			if err != nil {
				return fmt.Errorf("read position: %w", err)
			}
			// measured azimuth wraps at 0/360 while the trajectory
			// is continuous; apply the same unwrap as waypoint prep
			az = trajectory.UnwrapStep(lastAz, az)
			session.Errors = append(session.Errors, ErrorSample{
				RelTime:  rt,
				AzError:  st.Azimuth.Position - az,
				AltError: st.Altitude.Position - alt,
			})
			lastAz = az
		}

		if session.Loops%loopsPerProgress == 0 {
			t.logf("progress: %.1f%%", (rt+pad)/total.Seconds()*100)
		}

		opDuration := t.Clock.Since(opStart)
		if opDuration > cfg.Period {
			session.Overruns++
			t.logf("warning: tick took %v, longer than the %v period", opDuration, cfg.Period)
		} else {
			t.Clock.Sleep(cfg.Period - opDuration)
		}
		session.Loops++
	}
	return nil
}

// intervalLoops converts a sampling interval to a loop-count stride.
func intervalLoops(interval, period time.Duration) int {
	n := int(math.Round(float64(interval) / float64(period)))
	if n < 1 {
		n = 1
	}
	return n
}
