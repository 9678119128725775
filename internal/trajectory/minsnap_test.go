package trajectory

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paddedSeries is a boundary-crossing pass after padding:
// times [-2, 0, 30, 60, 62], altitude rising 10->45, azimuth crossing the
// wrap and continuing past 360.
func paddedSeries() *Series {
	return &Series{
		Times:    []float64{-2, 0, 30, 60, 62},
		Altitude: []float64{-10, 10, 30, 45, 60},
		Azimuth:  []float64{340, 350, 360, 370, 380},
	}
}

func TestMinimumSnapInterpolatesWaypoints(t *testing.T) {
	s := paddedSeries()
	traj, err := NewMinimumSnap(s)
	require.NoError(t, err)

	for i, tm := range s.Times {
		st := traj.At(tm)
		assert.InDeltaf(t, s.Altitude[i], st.Altitude.Position, 1e-6,
			"altitude at knot %d (t=%v)", i, tm)
		assert.InDeltaf(t, s.Azimuth[i], st.Azimuth.Position, 1e-6,
			"azimuth at knot %d (t=%v)", i, tm)
	}
}

func TestMinimumSnapVelocityContinuity(t *testing.T) {
	s := paddedSeries()
	traj, err := NewMinimumSnap(s)
	require.NoError(t, err)

	const eps = 1e-7
	for _, knot := range s.Times[1 : len(s.Times)-1] {
		before := traj.At(knot - eps)
		after := traj.At(knot + eps)
		assert.InDeltaf(t, before.Altitude.Velocity, after.Altitude.Velocity, 1e-4,
			"altitude velocity jump at knot t=%v", knot)
		assert.InDeltaf(t, before.Azimuth.Velocity, after.Azimuth.Velocity, 1e-4,
			"azimuth velocity jump at knot t=%v", knot)
	}
}

func TestMinimumSnapAccelerationContinuity(t *testing.T) {
	s := paddedSeries()
	traj, err := NewMinimumSnap(s)
	require.NoError(t, err)

	// finite-difference acceleration on both sides of each interior knot
	const h = 1e-4
	for _, knot := range s.Times[1 : len(s.Times)-1] {
		accBefore := (traj.At(knot-h).Altitude.Velocity - traj.At(knot-2*h).Altitude.Velocity) / h
		accAfter := (traj.At(knot+2*h).Altitude.Velocity - traj.At(knot+h).Altitude.Velocity) / h
		assert.InDeltaf(t, accBefore, accAfter, 1e-2, "acceleration jump at knot t=%v", knot)
	}
}

func TestMinimumSnapBoundaryVelocityNonZero(t *testing.T) {
	s := paddedSeries()
	traj, err := NewMinimumSnap(s)
	require.NoError(t, err)

	// padding exists precisely so the nominal pass starts at speed
	st := traj.At(0)
	assert.NotZero(t, st.Altitude.Velocity)
	assert.NotZero(t, st.Azimuth.Velocity)
}

// Collinear waypoints are a fixed point of the fit: a straight line has zero
// snap, interpolates, and satisfies the free-end conditions, so the solver
// must reproduce it exactly everywhere, not just at the knots.
func TestMinimumSnapReproducesLinearMotion(t *testing.T) {
	times := []float64{-2, 0, 30, 60, 62}
	s := &Series{
		Times:    times,
		Altitude: make([]float64, len(times)),
		Azimuth:  make([]float64, len(times)),
	}
	for i, tm := range times {
		s.Altitude[i] = 10 + 0.5*tm
		s.Azimuth[i] = 350 + tm
	}

	traj, err := NewMinimumSnap(s)
	require.NoError(t, err)

	for tm := traj.Start(); tm <= traj.End(); tm += 1.6 {
		st := traj.At(tm)
		assert.InDeltaf(t, 10+0.5*tm, st.Altitude.Position, 1e-6, "altitude at t=%v", tm)
		assert.InDeltaf(t, 0.5, st.Altitude.Velocity, 1e-6, "altitude velocity at t=%v", tm)
		assert.InDeltaf(t, 350+tm, st.Azimuth.Position, 1e-6, "azimuth at t=%v", tm)
		assert.InDeltaf(t, 1.0, st.Azimuth.Velocity, 1e-6, "azimuth velocity at t=%v", tm)
	}
}

func TestMinimumSnapDomainClamp(t *testing.T) {
	s := paddedSeries()
	traj, err := NewMinimumSnap(s)
	require.NoError(t, err)

	before := traj.At(traj.Start() - 100)
	atStart := traj.At(traj.Start())
	assert.Equal(t, atStart, before, "queries before the domain clamp to the start")

	after := traj.At(traj.End() + 100)
	atEnd := traj.At(traj.End())
	assert.Equal(t, atEnd, after, "queries after the domain clamp to the end")
}

func TestMinimumSnapDomain(t *testing.T) {
	traj, err := NewMinimumSnap(paddedSeries())
	require.NoError(t, err)

	assert.Equal(t, -2.0, traj.Start())
	assert.Equal(t, 62.0, traj.End())
	assert.Equal(t, 64.0, traj.Duration())
}

// Two knots give one free-ended segment; the fit must be the straight line
// through them, never a degenerate all-zero solution.
func TestMinimumSnapSingleSegment(t *testing.T) {
	s := &Series{
		Times:    []float64{0, 10},
		Altitude: []float64{5, 15},
		Azimuth:  []float64{100, 120},
	}
	traj, err := NewMinimumSnap(s)
	require.NoError(t, err)

	assert.InDelta(t, 5, traj.At(0).Altitude.Position, 1e-9)
	assert.InDelta(t, 100, traj.At(0).Azimuth.Position, 1e-9)
	assert.InDelta(t, 15, traj.At(10).Altitude.Position, 1e-9)
	assert.InDelta(t, 120, traj.At(10).Azimuth.Position, 1e-9)

	// constant velocity along the whole segment
	mid := traj.At(5)
	assert.InDelta(t, 10, mid.Altitude.Position, 1e-9)
	assert.InDelta(t, 110, mid.Azimuth.Position, 1e-9)
	assert.InDelta(t, 1, mid.Altitude.Velocity, 1e-9)
	assert.InDelta(t, 2, mid.Azimuth.Velocity, 1e-9)
}

func TestMinimumSnapManyKnots(t *testing.T) {
	// a long pass: 120 knots, gentle sinusoidal motion
	n := 120
	s := &Series{
		Times:    make([]float64, n),
		Altitude: make([]float64, n),
		Azimuth:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.Times[i] = float64(i) * 5
		s.Altitude[i] = 30 + 20*math.Sin(float64(i)/20)
		s.Azimuth[i] = 100 + 0.8*float64(i)
	}

	traj, err := NewMinimumSnap(s)
	require.NoError(t, err)

	// interpolation must hold to tolerance even at this scale
	for i := 0; i < n; i += 7 {
		st := traj.At(s.Times[i])
		assert.InDeltaf(t, s.Altitude[i], st.Altitude.Position, 1e-4, "altitude at knot %d", i)
		assert.InDeltaf(t, s.Azimuth[i], st.Azimuth.Position, 1e-4, "azimuth at knot %d", i)
	}
}

func TestMinimumSnapRejectsDegenerateInput(t *testing.T) {
	_, err := NewMinimumSnap(&Series{Times: []float64{1}, Altitude: []float64{1}, Azimuth: []float64{1}})
	assert.True(t, errors.Is(err, ErrInvalidTrajectory), "single knot: %v", err)

	_, err = NewMinimumSnap(&Series{
		Times:    []float64{0, 10, 10, 20},
		Altitude: []float64{1, 2, 3, 4},
		Azimuth:  []float64{1, 2, 3, 4},
	})
	assert.True(t, errors.Is(err, ErrInvalidTrajectory), "duplicate knot: %v", err)

	_, err = NewMinimumSnap(&Series{
		Times:    []float64{0, 10},
		Altitude: []float64{1, 2, 3},
		Azimuth:  []float64{1, 2},
	})
	assert.True(t, errors.Is(err, ErrInvalidTrajectory), "mismatched axes: %v", err)
}

// At must be safe for concurrent readers: a monitoring path may evaluate the
// trajectory while the control loop walks it forward.
func TestTrajectoryConcurrentEvaluate(t *testing.T) {
	traj, err := NewMinimumSnap(paddedSeries())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tm := traj.Start() + traj.Duration()*float64(i)/500
				if g%2 == 1 {
					// reverse direction to defeat the monotone cache
					tm = traj.End() - (tm - traj.Start())
				}
				st := traj.At(tm)
				if math.IsNaN(st.Altitude.Position) || math.IsNaN(st.Azimuth.Position) {
					t.Error("NaN from concurrent evaluate")
					return
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestSegmentCacheMonotoneQueries(t *testing.T) {
	traj, err := NewMinimumSnap(paddedSeries())
	require.NoError(t, err)

	// walking forward then jumping back must still evaluate correctly
	var last float64
	for tm := traj.Start(); tm <= traj.End(); tm += 0.25 {
		last = traj.At(tm).Azimuth.Position
	}
	assert.InDelta(t, 380, last, 1e-6)
	assert.InDelta(t, 350, traj.At(0).Azimuth.Position, 1e-6)
}
