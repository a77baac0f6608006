package robot

import (
	"context"
	"math"
	"sync"
	"time"
)

// SimMotorConfig describes a simulated motor.
type SimMotorConfig struct {
	// MinStop and MaxStop are the mechanical stops in the motor's initial
	// raw frame.
	MinStop float64
	MaxStop float64

	// Start is the initial raw angle.
	Start float64

	// Speedup multiplies elapsed wall time, so tests can run a long
	// calibration sweep in a few milliseconds. Zero means 1.
	Speedup float64
}

// SimMotor is a speed-limited motor that stalls against mechanical stops.
// It implements Motor.
type SimMotor struct {
	mu      sync.Mutex
	minStop float64
	maxStop float64
	speedup float64
	now     func() time.Time

	pos    float64 // physical position, initial raw frame
	offset float64 // reported angle = pos + offset
	last   time.Time

	speed     float64 // signed deg/s while running
	target    float64 // physical target while running to target
	hasTarget bool
	duty      int

	lastSpeed  float64
	lastTarget float64
}

// NewSimMotor creates a simulated motor.
func NewSimMotor(cfg SimMotorConfig) *SimMotor {
	if cfg.Speedup <= 0 {
		cfg.Speedup = 1
	}
	m := &SimMotor{
		minStop: cfg.MinStop,
		maxStop: cfg.MaxStop,
		speedup: cfg.Speedup,
		now:     time.Now,
		pos:     math.Max(cfg.MinStop, math.Min(cfg.MaxStop, cfg.Start)),
		duty:    100,
	}
	m.last = m.now()
	return m
}

var _ Motor = (*SimMotor)(nil)

// advance integrates motion since the last call. Callers hold mu.
func (m *SimMotor) advance() {
	t := m.now()
	dt := t.Sub(m.last).Seconds() * m.speedup
	m.last = t
	if m.speed == 0 || dt <= 0 {
		return
	}

	step := m.speed * dt
	next := m.pos + step
	if m.hasTarget {
		if (step > 0 && next >= m.target) || (step < 0 && next <= m.target) {
			next = m.target
			m.speed = 0
			m.hasTarget = false
		}
	}

	// Mechanical stops: the motor keeps pushing but does not move.
	if next < m.minStop {
		next = m.minStop
	}
	if next > m.maxStop {
		next = m.maxStop
	}
	m.pos = next
}

// Angle implements Motor.
func (m *SimMotor) Angle(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.pos + m.offset, nil
}

// ResetAngle implements Motor.
func (m *SimMotor) ResetAngle(ctx context.Context, angle float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.offset = angle - m.pos
	return nil
}

// RunTarget implements Motor.
func (m *SimMotor) RunTarget(ctx context.Context, speed, target float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()

	m.lastSpeed = speed
	m.lastTarget = target

	physical := target - m.offset
	speed = math.Abs(speed)
	switch {
	case physical > m.pos:
		m.speed = speed
	case physical < m.pos:
		m.speed = -speed
	default:
		m.speed = 0
	}
	m.target = physical
	m.hasTarget = m.speed != 0
	return nil
}

// Run implements Motor.
func (m *SimMotor) Run(ctx context.Context, speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.speed = speed
	m.hasTarget = false
	return nil
}

// Stop implements Motor.
func (m *SimMotor) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.speed = 0
	m.hasTarget = false
	return nil
}

// SetDutyLimit implements Motor.
func (m *SimMotor) SetDutyLimit(ctx context.Context, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duty = percent
	return nil
}

// LastCommand returns the speed and raw target of the most recent RunTarget.
func (m *SimMotor) LastCommand() (speed, target float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSpeed, m.lastTarget
}

// DutyLimit returns the current duty limit.
func (m *SimMotor) DutyLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duty
}

// physical returns the position in the motor's initial raw frame.
func (m *SimMotor) physical() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.pos
}

// SimSwitch is a limit switch that closes when a simulated motor reaches a
// physical position.
type SimSwitch struct {
	motor *SimMotor
	at    float64
	above bool
}

// NewSimSwitch creates a switch pressed when motor is at or beyond at, in the
// motor's initial raw frame. above selects which side of at closes it.
func NewSimSwitch(motor *SimMotor, at float64, above bool) *SimSwitch {
	return &SimSwitch{motor: motor, at: at, above: above}
}

var _ LimitSwitch = (*SimSwitch)(nil)

// Pressed implements LimitSwitch.
func (s *SimSwitch) Pressed(ctx context.Context) (bool, error) {
	p := s.motor.physical()
	if s.above {
		return p >= s.at, nil
	}
	return p <= s.at, nil
}

// SimArm is a simulated arm with the reference arm's travel.
type SimArm struct {
	Joints [NumJoints]*SimMotor
	Switch *SimSwitch
}

// NewSimArm returns a simulated arm. The base has 300 degrees between its
// stops with the limit switch 50 degrees in from the lower one; joint1 and
// joint2 have 240 and 180 degrees of travel.
func NewSimArm(speedup float64) *SimArm {
	a := &SimArm{}
	a.Joints[Base] = NewSimMotor(SimMotorConfig{MinStop: -150, MaxStop: 150, Speedup: speedup})
	a.Joints[Joint1] = NewSimMotor(SimMotorConfig{MinStop: -40, MaxStop: 200, Speedup: speedup})
	a.Joints[Joint2] = NewSimMotor(SimMotorConfig{MinStop: -80, MaxStop: 100, Speedup: speedup})
	a.Switch = NewSimSwitch(a.Joints[Base], -100, false)
	return a
}

// Motors returns the arm's motors as a Motors set.
func (a *SimArm) Motors() Motors {
	var m Motors
	for j, sm := range a.Joints {
		m[j] = sm
	}
	return m
}
