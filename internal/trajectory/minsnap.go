package trajectory

import (
	"errors"
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// polyDegree is the per-segment polynomial degree. Degree 7 has exactly the
// freedom needed for snap-optimal segments: 8 coefficients cover the two
// endpoint values plus six derivative conditions.
const polyDegree = 7

const coeffsPerSegment = polyDegree + 1

// AxisState is the instantaneous kinematic state of one mount axis.
type AxisState struct {
	Position float64 // degrees
	Velocity float64 // degrees per second
}

// State is the instantaneous target state of both axes.
type State struct {
	Altitude AxisState
	Azimuth  AxisState
}

// Trajectory is an immutable piecewise-polynomial motion profile built from
// a padded waypoint series. At is safe for concurrent callers.
type Trajectory struct {
	times []float64
	alt   *piecewisePoly
	az    *piecewisePoly
}

// NewMinimumSnap fits, per axis, a piecewise degree-7 polynomial that passes
// exactly through every waypoint, is continuous through jerk at interior
// knots, and minimizes the integral of squared snap with free boundary
// conditions. The two axes are solved independently: the mount slews them
// independently, so no cross-axis coupling is modeled.
func NewMinimumSnap(s *Series) (*Trajectory, error) {
	if len(s.Times) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 knots, got %d", ErrInvalidTrajectory, len(s.Times))
	}
	if len(s.Altitude) != len(s.Times) || len(s.Azimuth) != len(s.Times) {
		return nil, fmt.Errorf("%w: axes must share the time grid", ErrInvalidTrajectory)
	}
	for i := 1; i < len(s.Times); i++ {
		if s.Times[i] <= s.Times[i-1] {
			return nil, fmt.Errorf("%w: knot times not strictly increasing at index %d", ErrInvalidTrajectory, i)
		}
	}

	alt, err := solveAxis(s.Times, s.Altitude)
	if err != nil {
		return nil, fmt.Errorf("altitude axis: %w", err)
	}
	az, err := solveAxis(s.Times, s.Azimuth)
	if err != nil {
		return nil, fmt.Errorf("azimuth axis: %w", err)
	}

	times := make([]float64, len(s.Times))
	copy(times, s.Times)
	return &Trajectory{times: times, alt: alt, az: az}, nil
}

// Start returns the beginning of the trajectory domain, in seconds.
func (t *Trajectory) Start() float64 { return t.times[0] }

// End returns the end of the trajectory domain, in seconds.
func (t *Trajectory) End() float64 { return t.times[len(t.times)-1] }

// Duration returns the total span of the trajectory domain, in seconds.
func (t *Trajectory) Duration() float64 { return t.End() - t.Start() }

// At evaluates both axes at time at (seconds on the waypoint time grid).
// Queries outside the domain are clamped to the nearest endpoint, so the
// returned state never extrapolates beyond the fitted curve.
func (t *Trajectory) At(at float64) State {
	if at < t.Start() {
		at = t.Start()
	} else if at > t.End() {
		at = t.End()
	}
	return State{
		Altitude: t.alt.at(at),
		Azimuth:  t.az.at(at),
	}
}

// piecewisePoly is one axis of the fitted trajectory: a coefficient row per
// segment in a local-time monomial basis. lastSeg caches the most recently
// used segment index; the tracking loop queries monotonically increasing
// times, so the next lookup almost always hits the cached segment or its
// successor.
type piecewisePoly struct {
	knots   []float64
	coeffs  [][]float64 // [segment][coeffsPerSegment]
	lastSeg atomic.Int64
}

func (p *piecewisePoly) at(t float64) AxisState {
	seg := p.segmentFor(t)
	tau := t - p.knots[seg]
	c := p.coeffs[seg]

	// Horner for the value, analogous scheme for the derivative.
	pos := 0.0
	vel := 0.0
	for k := polyDegree; k >= 1; k-- {
		pos = pos*tau + c[k]
		vel = vel*tau + float64(k)*c[k]
	}
	pos = pos*tau + c[0]

	return AxisState{Position: pos, Velocity: vel}
}

func (p *piecewisePoly) segmentFor(t float64) int {
	n := len(p.coeffs)
	seg := int(p.lastSeg.Load())
	if seg < 0 || seg >= n {
		seg = 0
	}

	// monotone queries either hit the cached segment or walk forward one
	for seg+1 < n && t >= p.knots[seg+1] {
		seg++
	}
	for seg > 0 && t < p.knots[seg] {
		seg--
	}

	p.lastSeg.Store(int64(seg))
	return seg
}

// factFall returns the falling factorial k!/(k-j)!, the coefficient picked
// up by differentiating tau^k j times.
func factFall(k, j int) float64 {
	f := 1.0
	for i := 0; i < j; i++ {
		f *= float64(k - i)
	}
	return f
}

// solveAxis assembles and solves the global linear system for one axis.
//
// For m segments there are 8m unknowns. The rows are:
//   - 2m interpolation constraints (each segment hits its two endpoints)
//   - 6(m-1) continuity constraints (derivatives 1..6 at interior knots);
//     derivatives 1..3 give the required smoothness through jerk, 4..6 are
//     the interior optimality conditions of the snap objective
//   - 6 natural boundary conditions (derivatives 4..6 vanish at both free
//     ends)
//
// Coefficients use a local-time basis per segment to keep the system well
// conditioned for long passes.
func solveAxis(times, values []float64) (*piecewisePoly, error) {
	m := len(times) - 1 // segments

	// a single free-ended segment makes the global system rank-deficient:
	// the natural conditions at both ends constrain the same high-order
	// coefficients, leaving c0..c3 underdetermined. The snap minimizer
	// through two points with free ends is the straight line, so build it
	// directly instead of solving.
	if m == 1 {
		knots := make([]float64, len(times))
		copy(knots, times)
		c := make([]float64, coeffsPerSegment)
		c[0] = values[0]
		c[1] = (values[1] - values[0]) / (times[1] - times[0])
		return &piecewisePoly{knots: knots, coeffs: [][]float64{c}}, nil
	}

	dim := coeffsPerSegment * m

	A := mat.NewDense(dim, dim, nil)
	b := mat.NewVecDense(dim, nil)

	row := 0
	setRow := func(seg, k int, v float64) {
		A.Set(row, seg*coeffsPerSegment+k, v)
	}

	// interpolation: p_i(0) = w_i and p_i(h_i) = w_{i+1}
	for i := 0; i < m; i++ {
		h := times[i+1] - times[i]

		setRow(i, 0, 1)
		b.SetVec(row, values[i])
		row++

		tp := 1.0
		for k := 0; k <= polyDegree; k++ {
			setRow(i, k, tp)
			tp *= h
		}
		b.SetVec(row, values[i+1])
		row++
	}

	// continuity of derivatives 1..6 at interior knots
	for i := 0; i < m-1; i++ {
		h := times[i+1] - times[i]
		for j := 1; j <= 6; j++ {
			for k := j; k <= polyDegree; k++ {
				setRow(i, k, factFall(k, j)*pow(h, k-j))
			}
			setRow(i+1, j, -factFall(j, j))
			b.SetVec(row, 0)
			row++
		}
	}

	// natural (free) boundary conditions: derivatives 4..6 are zero at the
	// start of the first segment and the end of the last
	for j := 4; j <= 6; j++ {
		setRow(0, j, factFall(j, j))
		b.SetVec(row, 0)
		row++
	}
	hLast := times[m] - times[m-1]
	for j := 4; j <= 6; j++ {
		for k := j; k <= polyDegree; k++ {
			setRow(m-1, k, factFall(k, j)*pow(hLast, k-j))
		}
		b.SetVec(row, 0)
		row++
	}

	if row != dim {
		return nil, fmt.Errorf("%w: assembled %d rows for %d unknowns", ErrNumericalFailure, row, dim)
	}

	var lu mat.LU
	lu.Factorize(A)

	x := mat.NewVecDense(dim, nil)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		// a Condition error still carries a usable solution; anything
		// else means the system is singular
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: %v", ErrNumericalFailure, err)
		}
	}

	knots := make([]float64, len(times))
	copy(knots, times)
	p := &piecewisePoly{
		knots:  knots,
		coeffs: make([][]float64, m),
	}
	for i := 0; i < m; i++ {
		c := make([]float64, coeffsPerSegment)
		for k := 0; k < coeffsPerSegment; k++ {
			c[k] = x.AtVec(i*coeffsPerSegment + k)
		}
		p.coeffs[i] = c
	}
	return p, nil
}

func pow(x float64, n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= x
	}
	return v
}
