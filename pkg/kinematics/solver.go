// Package kinematics maps between the arm's joint angles and Cartesian
// positions of its end point.
//
// The arm is a turntable carrying two pivoting links. Angles are in
// radians throughout this package. Positions use a right-handed frame
// anchored at the base axis with y pointing up.
package kinematics

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/optimize"

	"github.com/gwillem/linkarm/pkg/robot"
)

// Tolerance is the residual below which a target counts as reached.
const Tolerance = 1e-3

// Geometry holds the arm's link lengths.
type Geometry struct {
	R1 float64 // horizontal offset of the shoulder from the base axis
	L2 float64 // upper link
	L3 float64 // forearm
}

// DefaultGeometry is the geometry of the reference arm.
var DefaultGeometry = Geometry{R1: 2, L2: 20, L3: 15}

// Bounds are inclusive joint limits in radians.
type Bounds struct {
	Min robot.JointAngles
	Max robot.JointAngles
}

// DefaultBounds are the mechanical limits of the reference arm.
var DefaultBounds = Bounds{
	Min: robot.JointAngles{-90, 17, -6}.Radians(),
	Max: robot.JointAngles{90, 90, 161}.Radians(),
}

// Clamp projects a onto the bounds.
func (b Bounds) Clamp(a robot.JointAngles) robot.JointAngles {
	for i := range a {
		a[i] = math.Max(b.Min[i], math.Min(b.Max[i], a[i]))
	}
	return a
}

// Contains reports whether every angle of a is within the bounds.
func (b Bounds) Contains(a robot.JointAngles) bool {
	for i := range a {
		if a[i] < b.Min[i] || a[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Solver computes forward and inverse kinematics. The zero value is not
// usable; use New or Default.
type Solver struct {
	geo    Geometry
	bounds Bounds
}

// New returns a solver for the given geometry and joint bounds.
func New(geo Geometry, bounds Bounds) *Solver {
	return &Solver{geo: geo, bounds: bounds}
}

// Default returns a solver for the reference arm.
func Default() *Solver {
	return New(DefaultGeometry, DefaultBounds)
}

// Bounds returns the solver's joint limits.
func (s *Solver) Bounds() Bounds {
	return s.bounds
}

// Forward returns the end point position for the given angles.
func (s *Solver) Forward(a robot.JointAngles) r3.Vector {
	base, j1, j2 := a[robot.Base], a[robot.Joint1], a[robot.Joint2]
	radius := s.geo.R1 + s.geo.L2*math.Sin(j1) + s.geo.L3*math.Sin(j1+j2)
	return r3.Vector{
		X: radius * math.Cos(base),
		Y: s.geo.L2*math.Cos(j1) + s.geo.L3*math.Cos(j1+j2),
		Z: radius * math.Sin(base),
	}
}

// Inverse returns the in-bounds angles whose end point is nearest target,
// together with the residual distance. guess warm-starts the search and is
// normally the previous solution. Inverse never fails: an unreachable target
// yields the nearest feasible point and a residual above Tolerance.
func (s *Solver) Inverse(target r3.Vector, guess robot.JointAngles) (robot.JointAngles, float64) {
	best := s.bounds.Clamp(guess)
	bestRes := s.Residual(target, best)

	// Prefer an exact seed on the guess's branch.
	for _, seed := range s.analytic(target) {
		seed = s.bounds.Clamp(seed)
		r := s.Residual(target, seed)
		switch {
		case r < Tolerance/10 && bestRes < Tolerance/10:
			if distance(seed, guess) < distance(best, guess) {
				best, bestRes = seed, r
			}
		case r < bestRes:
			best, bestRes = seed, r
		}
	}
	if bestRes < Tolerance/10 {
		return best, bestRes
	}

	// Restart from the best point found so far; Nelder-Mead can stall on a
	// degenerate simplex near the bounds.
	for range 3 {
		a, r := s.minimize(target, best)
		if r >= bestRes {
			break
		}
		best, bestRes = a, r
		if bestRes < Tolerance/10 {
			break
		}
	}
	return best, bestRes
}

// Residual returns the distance between target and the end point at a.
func (s *Solver) Residual(target r3.Vector, a robot.JointAngles) float64 {
	return s.Forward(a).Sub(target).Norm()
}

// minimize runs a single Nelder-Mead search. Bounds are enforced by
// evaluating the clamped angles and penalising the distance outside them.
func (s *Solver) minimize(target r3.Vector, start robot.JointAngles) (robot.JointAngles, float64) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			var a robot.JointAngles
			copy(a[:], x)
			c := s.bounds.Clamp(a)
			var out float64
			for i := range a {
				d := a[i] - c[i]
				out += d * d
			}
			d := s.Forward(c).Sub(target)
			return d.Dot(d) + 100*out
		},
	}
	settings := &optimize.Settings{
		Converger:       &optimize.FunctionConverge{Absolute: 1e-14, Iterations: 50},
		FuncEvaluations: 4000,
	}
	result, err := optimize.Minimize(problem, start[:], settings, &optimize.NelderMead{SimplexSize: 0.05})
	if err != nil && result == nil {
		return start, s.Residual(target, start)
	}

	var a robot.JointAngles
	copy(a[:], result.X)
	a = s.bounds.Clamp(a)
	return a, s.Residual(target, a)
}

// analytic returns closed-form two-link solutions for both elbow branches.
// They are exact for reachable targets and good seeds otherwise.
func (s *Solver) analytic(target r3.Vector) []robot.JointAngles {
	base := math.Atan2(target.Z, target.X)
	rr := math.Hypot(target.X, target.Z) - s.geo.R1
	y := target.Y
	l2, l3 := s.geo.L2, s.geo.L3

	c2 := (rr*rr + y*y - l2*l2 - l3*l3) / (2 * l2 * l3)
	c2 = math.Max(-1, math.Min(1, c2))

	var out []robot.JointAngles
	for _, j2 := range []float64{math.Acos(c2), -math.Acos(c2)} {
		j1 := math.Atan2(rr, y) - math.Atan2(l3*math.Sin(j2), l2+l3*math.Cos(j2))
		out = append(out, robot.JointAngles{base, j1, j2})
	}
	return out
}

func distance(a, b robot.JointAngles) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
