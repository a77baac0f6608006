package kinematics

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/linkarm/pkg/robot"
)

func deg(base, j1, j2 float64) robot.JointAngles {
	return robot.JointAngles{base, j1, j2}.Radians()
}

func assertVecNear(t *testing.T, want, got r3.Vector, tol float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, "x")
	assert.InDelta(t, want.Y, got.Y, tol, "y")
	assert.InDelta(t, want.Z, got.Z, tol, "z")
}

func TestForward(t *testing.T) {
	s := Default()
	sin45 := math.Sin(math.Pi / 4)

	tests := []struct {
		name   string
		angles robot.JointAngles
		want   r3.Vector
	}{
		{
			name:   "straight up",
			angles: deg(0, 0, 0),
			want:   r3.Vector{X: 2, Y: 35, Z: 0},
		},
		{
			name:   "leaning 45",
			angles: deg(0, 45, 0),
			want:   r3.Vector{X: 2 + 35*sin45, Y: 35 * sin45, Z: 0},
		},
		{
			name:   "leaning 45 rotated 45",
			angles: deg(45, 45, 0),
			want:   r3.Vector{X: (2 + 35*sin45) * sin45, Y: 35 * sin45, Z: (2 + 35*sin45) * sin45},
		},
		{
			name:   "horizontal with forearm down",
			angles: deg(0, 90, 90),
			want:   r3.Vector{X: 22, Y: -15, Z: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertVecNear(t, tt.want, s.Forward(tt.angles), 1e-9)
		})
	}
}

func TestForward_Deterministic(t *testing.T) {
	s := Default()
	a := deg(12.5, 40, 33)
	assert.Equal(t, s.Forward(a), s.Forward(a))
}

func TestForward_Continuous(t *testing.T) {
	s := Default()
	b := s.Bounds()

	// A step of 1e-4 rad cannot move the end point further than the arm's
	// reach times the step, summed over the joints.
	const step = 1e-4
	reach := DefaultGeometry.R1 + DefaultGeometry.L2 + DefaultGeometry.L3
	for i := 0; i <= 20; i++ {
		f := float64(i) / 20
		var a robot.JointAngles
		for j := range a {
			a[j] = b.Min[j] + f*(b.Max[j]-b.Min[j])
		}
		next := a.Add(robot.JointAngles{step, step, step})
		d := s.Forward(next).Sub(s.Forward(a)).Norm()
		assert.Less(t, d, 3*reach*step)
	}
}

func TestInverse_RoundTrip(t *testing.T) {
	s := Default()

	tests := []robot.JointAngles{
		deg(45, 45, 0),
		deg(0, 17, -6),
		deg(-60, 80, 120),
		deg(90, 90, 161),
		deg(-90, 30, 90),
		deg(10, 50, 45),
	}

	for _, want := range tests {
		target := s.Forward(want)
		got, residual := s.Inverse(target, robot.JointAngles{})
		require.Less(t, residual, Tolerance, "target %v", target)
		assertVecNear(t, target, s.Forward(got), Tolerance)
		assert.True(t, s.Bounds().Contains(got))
	}
}

func TestInverse_WarmStart(t *testing.T) {
	s := Default()
	start := deg(20, 45, 60)
	p := s.Forward(start)

	// Small moves from a known pose stay on the same branch.
	for i := 1; i <= 10; i++ {
		target := p.Add(r3.Vector{X: 0.1 * float64(i), Y: -0.05 * float64(i)})
		got, residual := s.Inverse(target, start)
		require.Less(t, residual, Tolerance)
		for j := range got {
			assert.InDelta(t, start[j], got[j], 0.3)
		}
		start = got
	}
}

func TestInverse_Unreachable(t *testing.T) {
	s := Default()

	tests := []struct {
		name   string
		target r3.Vector
	}{
		{"beyond reach", r3.Vector{X: 100, Y: 0, Z: 0}},
		{"behind the base", r3.Vector{X: -30, Y: 5, Z: 0}},
		{"inside the base", r3.Vector{X: 0, Y: 0, Z: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, residual := s.Inverse(tt.target, deg(0, 45, 45))
			assert.Greater(t, residual, Tolerance)
			assert.True(t, s.Bounds().Contains(got))
			assert.InDelta(t, s.Residual(tt.target, got), residual, 1e-12)
		})
	}
}

func TestInverse_NearestFeasible(t *testing.T) {
	s := Default()

	// Fully stretched the arm reaches at most r1+l2+l3 from the base axis;
	// the nearest point to a far target on the horizon is at that reach.
	got, residual := s.Inverse(r3.Vector{X: 60, Y: 0, Z: 0}, robot.JointAngles{})
	p := s.Forward(got)
	assert.InDelta(t, 60-37, residual, 0.05)
	assert.InDelta(t, 37, p.X, 0.05)
}

func TestBounds_Clamp(t *testing.T) {
	b := DefaultBounds
	got := b.Clamp(deg(-120, 0, 200))
	assert.Equal(t, robot.JointAngles{b.Min[0], b.Min[1], b.Max[2]}, got)
	assert.True(t, b.Contains(got))
	assert.False(t, b.Contains(deg(0, 0, 0)))
}
