package calibration

import (
	"fmt"

	"github.com/pkg/errors"
)

// State is the calibration state of a joint.
type State int

const (
	Uncalibrated State = iota
	Calibrating
	Calibrated
)

func (s State) String() string {
	switch s {
	case Uncalibrated:
		return "uncalibrated"
	case Calibrating:
		return "calibrating"
	case Calibrated:
		return "calibrated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTransition is returned for a state change the lifecycle does not allow.
var ErrTransition = errors.New("invalid calibration transition")

// JointState tracks one joint through Uncalibrated, Calibrating and
// Calibrated. Calibrated is terminal.
type JointState struct {
	state State
	rng   Range
}

// State returns the current state.
func (s *JointState) State() State {
	return s.state
}

// Range returns the recorded range. It is only meaningful once Calibrated.
func (s *JointState) Range() Range {
	return s.rng
}

// Begin moves an uncalibrated joint to Calibrating.
func (s *JointState) Begin() error {
	if s.state != Uncalibrated {
		return errors.Wrapf(ErrTransition, "begin from %s", s.state)
	}
	s.state = Calibrating
	return nil
}

// Complete records the measured range and moves to Calibrated.
func (s *JointState) Complete(r Range) error {
	if s.state != Calibrating {
		return errors.Wrapf(ErrTransition, "complete from %s", s.state)
	}
	if !r.Valid() {
		return errors.Wrapf(ErrInvalidRange, "[%g, %g]", r.Min, r.Max)
	}
	s.rng = r
	s.state = Calibrated
	return nil
}

// Abort returns a joint that failed mid-calibration to Uncalibrated so it
// can be retried.
func (s *JointState) Abort() {
	if s.state == Calibrating {
		s.state = Uncalibrated
	}
}
