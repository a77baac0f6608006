// Package motion turns raw joint targets with a time budget into speed
// limited motor moves.
package motion

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gwillem/linkarm/pkg/calibration"
	"github.com/gwillem/linkarm/pkg/robot"
)

// Move is a dispatched motor command.
type Move struct {
	Joint   robot.Joint
	Target  float64 // raw target after clamping
	Speed   float64 // deg/s
	Clamped bool    // the requested target was outside the range
}

// Limits bounds the speed of one joint.
type Limits struct {
	Min float64 // slowest reliable speed
	Max float64 // used when the time budget is zero
}

// Plan computes the move that takes joint j from current to target within
// budgetMs. The target is clamped into rng. The speed never drops below
// the joint's minimum, so short budgets are met but long ones may finish
// early.
func Plan(j robot.Joint, current, target float64, budgetMs int, rng calibration.Range, lim Limits) Move {
	mv := Move{Joint: j, Target: rng.Clamp(target)}
	mv.Clamped = mv.Target != target

	if budgetMs <= 0 {
		mv.Speed = math.Max(lim.Max, lim.Min)
		return mv
	}
	ideal := math.Abs(mv.Target-current) * 1000 / float64(budgetMs)
	mv.Speed = math.Max(ideal, lim.Min)
	return mv
}

// SendJoint plans a move for one motor and starts it without waiting for
// completion. A newer move preempts one in flight.
func SendJoint(ctx context.Context, m robot.Motor, j robot.Joint, target float64, budgetMs int, rng calibration.Range, lim Limits, logger *zap.SugaredLogger) (Move, error) {
	current, err := m.Angle(ctx)
	if err != nil {
		return Move{}, errors.Wrapf(err, "read %s angle", j)
	}
	mv := Plan(j, current, target, budgetMs, rng, lim)
	if mv.Clamped {
		logger.Debugf("%s target %.1f clamped to %.1f", j, target, mv.Target)
	}
	if err := m.RunTarget(ctx, mv.Speed, mv.Target); err != nil {
		return Move{}, errors.Wrapf(err, "run %s", j)
	}
	return mv, nil
}

// Dispatcher sends raw targets to the arm's motors within the calibrated
// ranges.
type Dispatcher struct {
	motors robot.Motors
	cal    *calibration.Calibration
	limits [robot.NumJoints]Limits
	logger *zap.SugaredLogger
}

// NewDispatcher returns a dispatcher for motors calibrated by cal. maxSpeed
// is used for zero time budgets.
func NewDispatcher(motors robot.Motors, cal *calibration.Calibration, maxSpeed float64, logger *zap.SugaredLogger) *Dispatcher {
	d := &Dispatcher{motors: motors, cal: cal, logger: logger}
	for _, j := range robot.AllJoints() {
		d.limits[j] = Limits{Min: cal.Spec(j).MinSpeed, Max: maxSpeed}
	}
	return d
}

// Send moves joint j toward the raw target within budgetMs.
func (d *Dispatcher) Send(ctx context.Context, j robot.Joint, target float64, budgetMs int) (Move, error) {
	if !j.Valid() {
		return Move{}, errors.Wrapf(robot.ErrUnknownJoint, "%d", int(j))
	}
	return SendJoint(ctx, d.motors[j], j, target, budgetMs, d.cal.Range(j), d.limits[j], d.logger)
}

// SendAll moves every joint toward its raw target. Joints are started in
// wire order; the first error stops the remaining joints from being sent.
func (d *Dispatcher) SendAll(ctx context.Context, raw robot.JointAngles, budgetMs int) ([robot.NumJoints]Move, error) {
	var moves [robot.NumJoints]Move
	for _, j := range robot.AllJoints() {
		mv, err := d.Send(ctx, j, raw[j], budgetMs)
		if err != nil {
			return moves, err
		}
		moves[j] = mv
	}
	return moves, nil
}
