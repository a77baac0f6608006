package teleop

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/gwillem/linkarm/pkg/robot"
)

// ModeKind selects how input is mapped to arm motion.
type ModeKind int

const (
	// ModeRelative moves the arm a bounded step from where it is now.
	ModeRelative ModeKind = iota
	// ModeVirtualPoint moves a persistent target point the arm seeks.
	ModeVirtualPoint
	// ModeAxes drives each joint directly.
	ModeAxes
)

func (k ModeKind) String() string {
	switch k {
	case ModeRelative:
		return "relative"
	case ModeVirtualPoint:
		return "virtual_point"
	case ModeAxes:
		return "axes"
	default:
		return fmt.Sprintf("mode(%d)", int(k))
	}
}

// Next returns the mode after k in cycling order.
func (k ModeKind) Next() ModeKind {
	return (k + 1) % 3
}

// ParseMode returns the mode with the given name.
func ParseMode(name string) (ModeKind, error) {
	for _, k := range []ModeKind{ModeRelative, ModeVirtualPoint, ModeAxes} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown mode %q", name)
}

// Mode is one control mode with its own state. A fresh Mode is created on
// every mode change.
type Mode interface {
	Kind() ModeKind
	step(s *Session, t tick) (proposal, bool)
}

// tick is what a mode sees each control cycle.
type tick struct {
	dir     r3.Vector         // gain-shaped input direction
	now     time.Time
	logical robot.JointAngles // current logical angles, degrees
	pos     r3.Vector         // current end point
}

// proposal is a target a mode wants to send.
type proposal struct {
	logical  robot.JointAngles // degrees
	residual float64
	solved   bool // the target came from the inverse solver
}

func newMode(k ModeKind) Mode {
	switch k {
	case ModeVirtualPoint:
		return &VirtualPoint{}
	case ModeAxes:
		return &Axes{}
	default:
		return &Relative{}
	}
}

// Relative applies the input direction to the current position. It stays
// quiet while the input rests at centre.
type Relative struct {
	prev    r3.Vector
	started bool
}

func (m *Relative) Kind() ModeKind { return ModeRelative }

func (m *Relative) step(s *Session, t tick) (proposal, bool) {
	idle := m.started && t.dir.Norm() <= idleThreshold && m.prev.Norm() <= idleThreshold
	m.prev = t.dir
	m.started = true
	if idle {
		return proposal{}, false
	}

	target := t.pos.Add(normalizeThenScale(t.dir, s.cfg.RelativeStep))
	return s.solve(target, t.logical), true
}

// VirtualPoint moves a persistent point at a speed proportional to the
// input. The point only follows a move the solver can reach, so pushing
// into infeasible space does not drag it away from the arm.
type VirtualPoint struct {
	point r3.Vector
	last  time.Time
	init  bool
}

func (m *VirtualPoint) Kind() ModeKind { return ModeVirtualPoint }

// Point returns the persisted target point.
func (m *VirtualPoint) Point() r3.Vector { return m.point }

func (m *VirtualPoint) step(s *Session, t tick) (proposal, bool) {
	if !m.init {
		m.point = t.pos
		m.last = t.now
		m.init = true
		return proposal{}, false
	}

	dt := t.now.Sub(m.last)
	if dt < time.Millisecond {
		return proposal{}, false
	}
	m.last = t.now

	proposed := m.point.Add(normalizeThenScale(t.dir, s.cfg.PointSpeed*dt.Seconds()))
	p := s.solve(proposed, t.logical)
	if p.residual < s.cfg.ResidualThreshold {
		m.point = proposed
	}
	return p, true
}

// Axes drives the base, joint1 and joint2 from the x, y and z inputs at a
// fixed angular rate, bypassing the solver.
type Axes struct {
	last time.Time
	init bool
}

func (m *Axes) Kind() ModeKind { return ModeAxes }

func (m *Axes) step(s *Session, t tick) (proposal, bool) {
	if !m.init {
		m.last = t.now
		m.init = true
		return proposal{}, false
	}
	dt := t.now.Sub(m.last).Seconds()
	m.last = t.now
	if t.dir.Norm() <= idleThreshold || dt <= 0 {
		return proposal{}, false
	}

	delta := s.cfg.AxesRate * dt
	target := t.logical.Add(robot.JointAngles{t.dir.X * delta, t.dir.Y * delta, t.dir.Z * delta})
	target = s.solver.Bounds().Clamp(target.Radians()).Degrees()
	return proposal{logical: target}, true
}
