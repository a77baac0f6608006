package calibration

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gwillem/linkarm/pkg/robot"
)

// ErrSwitchNotReached is returned when a joint stalls before its limit
// switch closes.
var ErrSwitchNotReached = errors.New("limit switch not reached")

// Calibrator measures the raw travel of each joint by driving it into its
// limits at reduced torque.
type Calibrator struct {
	motors robot.Motors
	sw     robot.LimitSwitch
	specs  [robot.NumJoints]JointSpec
	cfg    robot.CalibrationConfig
	logger *zap.SugaredLogger
	now    func() time.Time

	states [robot.NumJoints]JointState
}

// NewCalibrator returns a calibrator for the given motors. sw is only used
// by joints measured with the Switch method and may be nil otherwise.
func NewCalibrator(motors robot.Motors, sw robot.LimitSwitch, specs [robot.NumJoints]JointSpec, cfg robot.CalibrationConfig, logger *zap.SugaredLogger) *Calibrator {
	return &Calibrator{
		motors: motors,
		sw:     sw,
		specs:  specs,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// State returns the calibration state of joint j.
func (c *Calibrator) State(j robot.Joint) State {
	return c.states[j].State()
}

// Calibrate measures joint j and returns its raw range. The motor is left
// stopped at the far end of its travel.
func (c *Calibrator) Calibrate(ctx context.Context, j robot.Joint) (Range, error) {
	if !j.Valid() {
		return Range{}, errors.Wrapf(robot.ErrUnknownJoint, "%d", int(j))
	}
	st := &c.states[j]
	if err := st.Begin(); err != nil {
		return Range{}, errors.Wrapf(err, "calibrate %s", j)
	}

	c.logger.Infof("calibrating %s (%s)", j, c.specs[j].Method)
	r, err := c.measure(ctx, j)
	if err != nil {
		st.Abort()
		return Range{}, errors.Wrapf(err, "calibrate %s", j)
	}
	if err := st.Complete(r); err != nil {
		st.Abort()
		return Range{}, errors.Wrapf(err, "calibrate %s", j)
	}
	c.logger.Infof("%s range [%.1f, %.1f]", j, r.Min, r.Max)
	return r, nil
}

// Result returns the calibration once every joint is calibrated.
func (c *Calibrator) Result() (*Calibration, error) {
	var ranges [robot.NumJoints]Range
	for _, j := range robot.AllJoints() {
		if c.states[j].State() != Calibrated {
			return nil, errors.Wrapf(ErrNotCalibrated, "%s is %s", j, c.states[j].State())
		}
		ranges[j] = c.states[j].Range()
	}
	return New(c.specs, ranges)
}

func (c *Calibrator) measure(ctx context.Context, j robot.Joint) (Range, error) {
	sp := c.specs[j]
	m := c.motors[j]

	// The anchor is the raw minimum, so it is always found by running in
	// the negative direction.
	switch sp.Method {
	case Switch:
		if err := c.runUntilPressed(ctx, j, -sp.MinSpeed); err != nil {
			return Range{}, err
		}
	default:
		if _, err := c.runUntilStalled(ctx, j, -sp.SeekSpeed()); err != nil {
			return Range{}, err
		}
	}
	if err := m.ResetAngle(ctx, sp.Anchor); err != nil {
		return Range{}, errors.Wrap(err, "reset angle")
	}

	r := Range{Min: sp.Anchor}
	switch sp.Method {
	case SoftLimit:
		r.Max = sp.Anchor + sp.Throw
	default:
		end, err := c.runUntilStalled(ctx, j, sp.SeekSpeed())
		if err != nil {
			return Range{}, err
		}
		r.Max = end
	}
	return r, nil
}

// runUntilStalled runs joint j at speed with the duty limit applied until it
// stalls, and returns the angle it stalled at.
func (c *Calibrator) runUntilStalled(ctx context.Context, j robot.Joint, speed float64) (float64, error) {
	var end float64
	err := c.drive(ctx, j, speed, func(pos float64, stalled bool) (bool, error) {
		end = pos
		return stalled, nil
	})
	return end, err
}

// runUntilPressed runs joint j at speed until the limit switch closes.
func (c *Calibrator) runUntilPressed(ctx context.Context, j robot.Joint, speed float64) error {
	if c.sw == nil {
		return errors.Errorf("%s has no limit switch", j)
	}
	return c.drive(ctx, j, speed, func(pos float64, stalled bool) (bool, error) {
		pressed, err := c.sw.Pressed(ctx)
		if err != nil {
			return false, errors.Wrap(err, "read limit switch")
		}
		if pressed {
			return true, nil
		}
		if stalled {
			return false, errors.Wrapf(ErrSwitchNotReached, "stalled at %.1f", pos)
		}
		return false, nil
	})
}

// drive runs joint j at speed and polls done until it reports completion.
// The motor is stopped and its duty limit lifted on return.
func (c *Calibrator) drive(ctx context.Context, j robot.Joint, speed float64, done func(pos float64, stalled bool) (bool, error)) error {
	m := c.motors[j]
	cleanup := context.WithoutCancel(ctx)

	if err := m.SetDutyLimit(ctx, c.cfg.DutyLimit); err != nil {
		return errors.Wrap(err, "set duty limit")
	}
	defer func() {
		if err := m.SetDutyLimit(cleanup, 100); err != nil {
			c.logger.Warnf("%s: restore duty limit: %v", j, err)
		}
	}()

	pos, err := m.Angle(ctx)
	if err != nil {
		return errors.Wrap(err, "read angle")
	}
	if err := m.Run(ctx, speed); err != nil {
		return errors.Wrap(err, "run")
	}
	defer func() {
		if err := m.Stop(cleanup); err != nil {
			c.logger.Warnf("%s: stop: %v", j, err)
		}
	}()

	det := NewStallDetector(c.cfg.StallAlpha, c.cfg.StallThreshold,
		time.Duration(c.cfg.MaxMsPerDegree)*time.Millisecond, speed, pos, c.now())

	ticker := time.NewTicker(c.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pos, err = m.Angle(ctx)
		if err != nil {
			return errors.Wrap(err, "read angle")
		}
		stalled := det.Update(pos, c.now())
		c.logger.Debugf("%s at %.2f, speed %.1f", j, pos, det.Speed())

		finished, err := done(pos, stalled)
		if err != nil {
			return err
		}
		if finished {
			return nil
		}
	}
}
