// Package arm runs the arm side of the link: it calibrates the joints, then
// publishes telemetry, executes motion commands and answers range requests.
package arm

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gwillem/linkarm/pkg/calibration"
	"github.com/gwillem/linkarm/pkg/motion"
	"github.com/gwillem/linkarm/pkg/robot"
	"github.com/gwillem/linkarm/pkg/wire"
)

// Start-up clearance moves, in raw degrees past the anchor.
const (
	joint1Clearance = 10
	joint2Clearance = 20
	startupBudgetMs = 2000
)

// Runtime owns the arm's motors. Calibrate must complete before Serve.
type Runtime struct {
	motors robot.Motors
	sw     robot.LimitSwitch
	cfg    robot.ArmConfig
	specs  [robot.NumJoints]calibration.JointSpec
	logger *zap.SugaredLogger

	// Written once by Calibrate, read-only afterwards.
	cal        *calibration.Calibration
	dispatcher *motion.Dispatcher
}

// New returns a runtime for the given motors and base limit switch. Without
// a switch, joints that home against it are stalled at both ends instead.
func New(motors robot.Motors, sw robot.LimitSwitch, cfg robot.ArmConfig, logger *zap.SugaredLogger) *Runtime {
	specs := calibration.SpecsFromConfig(cfg)
	if sw == nil {
		for j := range specs {
			if specs[j].Method == calibration.Switch {
				logger.Warnf("no limit switch: calibrating %s against both stops", robot.Joint(j))
				specs[j].Method = calibration.StallBoth
			}
		}
	}
	return &Runtime{
		motors: motors,
		sw:     sw,
		cfg:    cfg,
		specs:  specs,
		logger: logger,
	}
}

// Calibration returns the arm's calibration, or nil before Calibrate.
func (r *Runtime) Calibration() *calibration.Calibration {
	return r.cal
}

// Calibrate runs the start-up sequence. Joint1 is raised against its stop
// first so joint2 can sweep its whole travel safely; the base is calibrated
// last and then centred.
func (r *Runtime) Calibrate(ctx context.Context) (*calibration.Calibration, error) {
	if r.cal != nil {
		return r.cal, nil
	}
	c := calibration.NewCalibrator(r.motors, r.sw, r.specs, r.cfg.Calibration, r.logger.Named("calibration"))

	steps := []struct {
		joint     robot.Joint
		clearance float64
	}{
		{robot.Joint1, joint1Clearance},
		{robot.Joint2, joint2Clearance},
		{robot.Base, 0},
	}
	for _, s := range steps {
		rng, err := c.Calibrate(ctx, s.joint)
		if err != nil {
			return nil, err
		}
		if s.clearance == 0 {
			continue
		}
		if _, err := r.sendStartup(ctx, s.joint, rng, rng.Min+s.clearance); err != nil {
			return nil, err
		}
	}

	cal, err := c.Result()
	if err != nil {
		return nil, err
	}
	centre := cal.ToRaw(robot.Base, 0)
	if _, err := r.sendStartup(ctx, robot.Base, cal.Range(robot.Base), centre); err != nil {
		return nil, err
	}

	r.cal = cal
	r.dispatcher = motion.NewDispatcher(r.motors, cal, r.cfg.MaxSpeed, r.logger.Named("motion"))
	min, max := cal.Bounds()
	r.logger.Infof("calibrated: min %v max %v", min, max)
	return cal, nil
}

func (r *Runtime) sendStartup(ctx context.Context, j robot.Joint, rng calibration.Range, target float64) (motion.Move, error) {
	lim := motion.Limits{Min: r.specs[j].MinSpeed, Max: r.cfg.MaxSpeed}
	return motion.SendJoint(ctx, r.motors[j], j, target, startupBudgetMs, rng, lim, r.logger)
}

// Report returns the range report for the current calibration.
func (r *Runtime) Report() wire.RangeReport {
	min, max := r.cal.Bounds()
	return wire.RangeReport{Min: min, Max: max}
}

// Angles reads the raw angles of all joints.
func (r *Runtime) Angles(ctx context.Context) (robot.JointAngles, error) {
	var a robot.JointAngles
	for _, j := range robot.AllJoints() {
		v, err := r.motors[j].Angle(ctx)
		if err != nil {
			return a, errors.Wrapf(err, "read %s", j)
		}
		a[j] = v
	}
	return a, nil
}

// Serve runs the telemetry, command and range tasks until one fails or ctx
// is done.
func (r *Runtime) Serve(ctx context.Context, ep *wire.Arm) error {
	if r.cal == nil {
		return calibration.ErrNotCalibrated
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.publishTelemetry(ctx, ep) })
	g.Go(func() error { return r.consumeCommands(ctx, ep) })
	g.Go(func() error { return r.answerRanges(ctx, ep) })
	return g.Wait()
}

func (r *Runtime) publishTelemetry(ctx context.Context, ep *wire.Arm) error {
	ticker := time.NewTicker(r.cfg.TelemetryInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		a, err := r.Angles(ctx)
		if err != nil {
			return err
		}
		if err := ep.PublishCurrent(ctx, wire.Telemetry{Raw: a}); err != nil {
			return errors.Wrap(err, "publish telemetry")
		}
	}
}

func (r *Runtime) consumeCommands(ctx context.Context, ep *wire.Arm) error {
	for {
		cmd, err := ep.NextCommand(ctx)
		switch {
		case errors.Is(err, wire.ErrShortMessage):
			r.logger.Warnf("ignoring command: %v", err)
			continue
		case err != nil:
			return errors.Wrap(err, "next command")
		}

		r.logger.Debugf("target in %dms: %v", cmd.TimeMs, cmd.Raw)
		if _, err := r.dispatcher.SendAll(ctx, cmd.Raw, cmd.TimeMs); err != nil {
			return err
		}
	}
}

func (r *Runtime) answerRanges(ctx context.Context, ep *wire.Arm) error {
	report := r.Report()
	for {
		_, err := ep.NextRangeRequest(ctx)
		switch {
		case errors.Is(err, wire.ErrShortMessage):
			r.logger.Warnf("ignoring range request: %v", err)
			continue
		case err != nil:
			return errors.Wrap(err, "next range request")
		}

		r.logger.Infof("controller ready, sending ranges")
		if err := ep.SendRanges(ctx, report); err != nil {
			return errors.Wrap(err, "send ranges")
		}
	}
}
