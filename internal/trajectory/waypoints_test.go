package trajectory

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sampleSeries(t *testing.T, samples []ObservationSample) *Series {
	t.Helper()
	s, err := NewSeries(samples)
	if err != nil {
		t.Fatalf("NewSeries() error = %v", err)
	}
	return s
}

func atSeconds(base time.Time, secs float64) time.Time {
	return base.Add(time.Duration(secs * float64(time.Second)))
}

func TestUnwrapStep(t *testing.T) {
	tests := []struct {
		name string
		prev float64
		raw  float64
		want float64
	}{
		{"no crossing", 10, 20, 20},
		{"crossing up", 350, 10, 370},
		{"crossing down", 10, 350, -10},
		{"already unwrapped", 370, 380, 380},
		{"prev far above range", 720, 5, 725},
		{"exactly half turn apart", 0, 180, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnwrapStep(tt.prev, tt.raw); got != tt.want {
				t.Errorf("UnwrapStep(%v, %v) = %v, want %v", tt.prev, tt.raw, got, tt.want)
			}
		})
	}
}

// Re-unwrapping an already-unwrapped sequence must be a no-op.
func TestUnwrapIdempotent(t *testing.T) {
	unwrapped := []float64{350, 356, 362, 368, 374}
	for i := 1; i < len(unwrapped); i++ {
		if got := UnwrapStep(unwrapped[i-1], unwrapped[i]); got != unwrapped[i] {
			t.Errorf("UnwrapStep(%v, %v) = %v, want unchanged", unwrapped[i-1], unwrapped[i], got)
		}
	}
}

// A pass rising alt 10->45 while azimuth crosses the 0/360 boundary from
// 350 toward 10 must produce a continuous azimuth sequence ending near 370,
// not jumping down to 10.
func TestNewSeriesAzimuthBoundaryCrossing(t *testing.T) {
	base := time.Date(2026, 3, 1, 4, 10, 0, 0, time.UTC)
	s := sampleSeries(t, []ObservationSample{
		{Time: base, Altitude: 10, Azimuth: 350},
		{Time: atSeconds(base, 30), Altitude: 30, Azimuth: 0},
		{Time: atSeconds(base, 60), Altitude: 45, Azimuth: 10},
	})

	wantAz := []float64{350, 360, 370}
	if diff := cmp.Diff(wantAz, s.Azimuth); diff != "" {
		t.Errorf("azimuth mismatch (-want +got):\n%s", diff)
	}
	wantTimes := []float64{0, 30, 60}
	if diff := cmp.Diff(wantTimes, s.Times); diff != "" {
		t.Errorf("times mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSeriesDescendingCrossing(t *testing.T) {
	base := time.Date(2026, 3, 1, 4, 10, 0, 0, time.UTC)
	s := sampleSeries(t, []ObservationSample{
		{Time: base, Altitude: 20, Azimuth: 10},
		{Time: atSeconds(base, 30), Altitude: 25, Azimuth: 350},
	})

	if s.Azimuth[1] != -10 {
		t.Errorf("descending crossing gave %v, want -10", s.Azimuth[1])
	}
}

func TestNewSeriesRejectsTooFewSamples(t *testing.T) {
	_, err := NewSeries([]ObservationSample{{Time: time.Now()}})
	if !errors.Is(err, ErrInvalidTrajectory) {
		t.Errorf("error = %v, want ErrInvalidTrajectory", err)
	}
}

func TestNewSeriesRejectsNonMonotonicTimes(t *testing.T) {
	base := time.Date(2026, 3, 1, 4, 10, 0, 0, time.UTC)
	_, err := NewSeries([]ObservationSample{
		{Time: base, Altitude: 10, Azimuth: 100},
		{Time: base, Altitude: 11, Azimuth: 101},
	})
	if !errors.Is(err, ErrInvalidTrajectory) {
		t.Errorf("error = %v, want ErrInvalidTrajectory", err)
	}
}

// With a 600 arcsec/s limit, a waypoint pair implying 1200 arcsec/s must be
// rejected before any hardware is commanded.
func TestCheckSlewRatesRejectsInfeasible(t *testing.T) {
	base := time.Date(2026, 3, 1, 4, 10, 0, 0, time.UTC)
	// 10 degrees in 30 s = 1200 arcsec/s on azimuth
	s := sampleSeries(t, []ObservationSample{
		{Time: base, Altitude: 10, Azimuth: 100},
		{Time: atSeconds(base, 30), Altitude: 10.5, Azimuth: 110},
	})

	err := s.CheckSlewRates(600)
	if !errors.Is(err, ErrInfeasibleTrajectory) {
		t.Errorf("error = %v, want ErrInfeasibleTrajectory", err)
	}
}

func TestCheckSlewRatesAcceptsAtLimit(t *testing.T) {
	base := time.Date(2026, 3, 1, 4, 10, 0, 0, time.UTC)
	// exactly 1200 arcsec/s on azimuth
	s := sampleSeries(t, []ObservationSample{
		{Time: base, Altitude: 10, Azimuth: 100},
		{Time: atSeconds(base, 30), Altitude: 10.5, Azimuth: 110},
	})

	if err := s.CheckSlewRates(1200); err != nil {
		t.Errorf("CheckSlewRates(1200) = %v, want nil", err)
	}
}

func TestCheckSlewRatesAltitudeAxis(t *testing.T) {
	base := time.Date(2026, 3, 1, 4, 10, 0, 0, time.UTC)
	// altitude moves 20 degrees in 30 s = 2400 arcsec/s
	s := sampleSeries(t, []ObservationSample{
		{Time: base, Altitude: 10, Azimuth: 100},
		{Time: atSeconds(base, 30), Altitude: 30, Azimuth: 101},
	})

	if err := s.CheckSlewRates(600); !errors.Is(err, ErrInfeasibleTrajectory) {
		t.Errorf("error = %v, want ErrInfeasibleTrajectory", err)
	}
}

func TestPad(t *testing.T) {
	base := time.Date(2026, 3, 1, 4, 10, 0, 0, time.UTC)
	s := sampleSeries(t, []ObservationSample{
		{Time: base, Altitude: 10, Azimuth: 350},
		{Time: atSeconds(base, 30), Altitude: 30, Azimuth: 0},
		{Time: atSeconds(base, 60), Altitude: 45, Azimuth: 10},
	})

	padded, err := s.Pad(2, 1.0)
	if err != nil {
		t.Fatalf("Pad() error = %v", err)
	}

	wantTimes := []float64{-2, 0, 30, 60, 62}
	if diff := cmp.Diff(wantTimes, padded.Times); diff != "" {
		t.Errorf("times mismatch (-want +got):\n%s", diff)
	}

	// prepended value: first - 1.0*(second-first); appended symmetric
	wantAlt := []float64{-10, 10, 30, 45, 60}
	if diff := cmp.Diff(wantAlt, padded.Altitude); diff != "" {
		t.Errorf("altitude mismatch (-want +got):\n%s", diff)
	}
	wantAz := []float64{340, 350, 360, 370, 380}
	if diff := cmp.Diff(wantAz, padded.Azimuth); diff != "" {
		t.Errorf("azimuth mismatch (-want +got):\n%s", diff)
	}

	if len(padded.Times) < 4 {
		t.Errorf("padded series has %d points, want >= 4", len(padded.Times))
	}
}

func TestPadMultiplierScaling(t *testing.T) {
	base := time.Date(2026, 3, 1, 4, 10, 0, 0, time.UTC)
	s := sampleSeries(t, []ObservationSample{
		{Time: base, Altitude: 10, Azimuth: 100},
		{Time: atSeconds(base, 30), Altitude: 14, Azimuth: 106},
	})

	padded, err := s.Pad(5, 0.5)
	if err != nil {
		t.Fatalf("Pad() error = %v", err)
	}

	if got := padded.Altitude[0]; got != 8 {
		t.Errorf("prepended altitude = %v, want 8", got)
	}
	if got := padded.Azimuth[3]; got != 109 {
		t.Errorf("appended azimuth = %v, want 109", got)
	}
	if got := padded.Times[0]; got != -5 {
		t.Errorf("prepended time = %v, want -5", got)
	}
}

func TestPadRejectsBadInput(t *testing.T) {
	s := &Series{Times: []float64{0}, Altitude: []float64{1}, Azimuth: []float64{2}}
	if _, err := s.Pad(2, 1); !errors.Is(err, ErrInvalidTrajectory) {
		t.Errorf("single point pad error = %v, want ErrInvalidTrajectory", err)
	}

	s = &Series{Times: []float64{0, 30}, Altitude: []float64{1, 2}, Azimuth: []float64{3, 4}}
	if _, err := s.Pad(0, 1); !errors.Is(err, ErrInvalidTrajectory) {
		t.Errorf("zero pad error = %v, want ErrInvalidTrajectory", err)
	}
}
