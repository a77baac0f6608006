// Package teleop runs the controller side of the link: it maps input to arm
// targets through the kinematics solver and sends them to the arm.
package teleop

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gwillem/linkarm/pkg/calibration"
	"github.com/gwillem/linkarm/pkg/kinematics"
	"github.com/gwillem/linkarm/pkg/robot"
	"github.com/gwillem/linkarm/pkg/wire"
)

// Remote is the controller's view of the arm. *wire.Controller implements
// it.
type Remote interface {
	Ranges(ctx context.Context) (wire.RangeReport, error)
	Latest(ctx context.Context) (wire.Telemetry, error)
	SetTarget(ctx context.Context, cmd wire.Command) error
}

var _ Remote = (*wire.Controller)(nil)

// State is a snapshot of the session after a tick.
type State struct {
	Mode      ModeKind
	Raw       robot.JointAngles // telemetry
	Logical   robot.JointAngles // degrees
	Position  r3.Vector
	Target    *wire.Command // command sent this tick, if any
	Residual  float64
	Rejected  bool // a solution was dropped for its residual
	Waypoints int
	Timestamp time.Time
	Error     error
}

// Session is a controller session. It is driven from a single goroutine.
type Session struct {
	remote Remote
	cal    *calibration.Calibration
	solver *kinematics.Solver
	cfg    robot.ControllerConfig
	logger *zap.SugaredLogger
	now    func() time.Time

	mode      Mode
	waypoints []robot.JointAngles
	replay    int

	stateCh chan State
	logCh   chan string
}

// Connect asks the arm for its calibrated ranges and starts a session with
// conversion constants derived from them.
func Connect(ctx context.Context, remote Remote, specs [robot.NumJoints]calibration.JointSpec, cfg robot.ControllerConfig, logger *zap.SugaredLogger) (*Session, error) {
	logger.Infof("requesting ranges")
	report, err := remote.Ranges(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "request ranges")
	}
	cal, err := calibration.FromBounds(specs, report.Min, report.Max)
	if err != nil {
		return nil, errors.Wrap(err, "ranges from arm")
	}
	logger.Infof("ranges: min %v max %v", report.Min, report.Max)
	return NewSession(remote, cal, kinematics.Default(), cfg, logger)
}

// NewSession returns a session using an existing calibration.
func NewSession(remote Remote, cal *calibration.Calibration, solver *kinematics.Solver, cfg robot.ControllerConfig, logger *zap.SugaredLogger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "controller config")
	}
	kind, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	return &Session{
		remote:  remote,
		cal:     cal,
		solver:  solver,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		mode:    newMode(kind),
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}, nil
}

// States returns a channel that receives state updates.
func (s *Session) States() <-chan State {
	return s.stateCh
}

// Logs returns a channel that receives log messages.
func (s *Session) Logs() <-chan string {
	return s.logCh
}

// Hz returns the control frequency.
func (s *Session) Hz() int {
	return s.cfg.Hz
}

// Calibration returns the conversion constants in use.
func (s *Session) Calibration() *calibration.Calibration {
	return s.cal
}

// Mode returns the active mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// SetMode switches to a fresh instance of mode k.
func (s *Session) SetMode(k ModeKind) {
	s.mode = newMode(k)
	s.log("mode: %s", k)
}

// Waypoints returns the saved waypoints as logical angles.
func (s *Session) Waypoints() []robot.JointAngles {
	return append([]robot.JointAngles(nil), s.waypoints...)
}

func (s *Session) log(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	s.logger.Info(text)
	msg := fmt.Sprintf("[%s] %s", s.now().Format("15:04:05"), text)
	select {
	case s.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Run polls src and ticks the session at the configured rate until ctx is
// done or the link fails.
func (s *Session) Run(ctx context.Context, src InputSource) error {
	s.log("control started at %d Hz in %s mode", s.cfg.Hz, s.mode.Kind())

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.Hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log("control stopped")
			return ctx.Err()
		case <-ticker.C:
		}

		in, err := src.Poll(ctx)
		if err != nil {
			return errors.Wrap(err, "poll input")
		}
		st, err := s.Tick(ctx, in)
		s.sendState(st)
		switch {
		case errors.Is(err, wire.ErrClosed), errors.Is(err, context.Canceled):
			return err
		case err != nil:
			s.log("tick: %v", err)
		}
	}
}

// Tick runs one control cycle: it handles button presses, maps the input
// through the active mode and sends the resulting target, if any.
func (s *Session) Tick(ctx context.Context, in Input) (State, error) {
	now := s.now()
	st := State{Mode: s.mode.Kind(), Timestamp: now}

	tel, err := s.remote.Latest(ctx)
	if err != nil {
		st.Error = err
		return st, err
	}
	st.Raw = tel.Raw
	st.Logical = s.cal.AnglesToLogical(tel.Raw)
	st.Position = s.solver.Forward(st.Logical.Radians())

	for _, b := range in.Buttons {
		cmd, err := s.handleButton(ctx, b, st.Logical)
		if err != nil {
			st.Error = err
			return st, err
		}
		if cmd != nil {
			st.Target = cmd
		}
	}
	st.Mode = s.mode.Kind()

	p, ok := s.mode.step(s, tick{
		dir:     applyGain(in.Axes),
		now:     now,
		logical: st.Logical,
		pos:     st.Position,
	})
	st.Waypoints = len(s.waypoints)
	if !ok {
		return st, nil
	}

	st.Residual = p.residual
	if p.solved && s.cfg.EnforceResidual && p.residual >= s.cfg.ResidualThreshold {
		st.Rejected = true
		s.logger.Debugf("rejected target with residual %.3f", p.residual)
		return st, nil
	}

	cmd, err := s.send(ctx, p.logical, s.cfg.BudgetMs)
	if err != nil {
		st.Error = err
		return st, err
	}
	st.Target = cmd
	return st, nil
}

// solve finds logical angles for target, warm-started from the current
// angles.
func (s *Session) solve(target r3.Vector, current robot.JointAngles) proposal {
	angles, residual := s.solver.Inverse(target, current.Radians())
	return proposal{logical: angles.Degrees(), residual: residual, solved: true}
}

func (s *Session) send(ctx context.Context, logical robot.JointAngles, budgetMs int) (*wire.Command, error) {
	cmd := wire.Command{TimeMs: budgetMs, Raw: s.cal.AnglesToRaw(logical)}
	if err := s.remote.SetTarget(ctx, cmd); err != nil {
		return nil, errors.Wrap(err, "set target")
	}
	return &cmd, nil
}

func (s *Session) handleButton(ctx context.Context, b int, current robot.JointAngles) (*wire.Command, error) {
	switch b {
	case ButtonSaveWaypoint:
		s.waypoints = append(s.waypoints, current)
		s.log("saved waypoint %d: %.1f", len(s.waypoints), current)
	case ButtonCycleMode:
		s.SetMode(s.mode.Kind().Next())
	case ButtonReplayWaypoint:
		if len(s.waypoints) == 0 {
			s.log("no waypoints to replay")
			return nil, nil
		}
		s.replay %= len(s.waypoints)
		wp := s.waypoints[s.replay]
		s.log("replaying waypoint %d", s.replay+1)
		s.replay++
		return s.send(ctx, wp, s.cfg.ReplayBudgetMs)
	case ButtonClearWaypoints:
		s.waypoints = nil
		s.replay = 0
		s.log("waypoints cleared")
	default:
		s.logger.Debugf("button %d pressed", b)
	}
	return nil, nil
}

func (s *Session) sendState(st State) {
	select {
	case s.stateCh <- st:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-s.stateCh:
		default:
		}
		s.stateCh <- st
	}
}
