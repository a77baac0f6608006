package calibration

import (
	"fmt"

	"github.com/gwillem/linkarm/pkg/robot"
)

// Method is the way a joint's travel is measured.
type Method int

const (
	// StallBoth drives into both mechanical stops.
	StallBoth Method = iota

	// SoftLimit drives into the anchor stop only. The far end is the
	// anchor plus the throw, an artificial limit short of the real stop.
	SoftLimit

	// Switch runs toward the anchor until the limit switch closes, then
	// drives into the far stop.
	Switch
)

func (m Method) String() string {
	switch m {
	case StallBoth:
		return "stall"
	case SoftLimit:
		return "soft-limit"
	case Switch:
		return "switch"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// JointSpec is the static description of one joint. The anchor is the end
// calibration homes against first (the limit switch for the base, the lower
// stop otherwise); the motor is reset to Anchor there, which makes it the raw
// minimum of the measured range. With Direction -1 the anchor is the logical
// maximum.
type JointSpec struct {
	Anchor        float64 // raw angle at the anchor end
	LogicalAnchor float64 // logical angle at the anchor end
	Throw         float64 // true travel in degrees
	Direction     int     // 1, or -1 when raw decreases as logical increases
	MinSpeed      float64 // slowest reliable speed in deg/s
	SeekFactor    float64 // calibration speed as a multiple of MinSpeed
	Method        Method
}

// SeekSpeed returns the speed used while searching for the joint's limits.
func (s JointSpec) SeekSpeed() float64 {
	return s.MinSpeed * s.SeekFactor
}

// DefaultSpecs describes the reference arm. The base reaches its switch at a
// logical 90 degrees and turns toward lower logical angles as raw increases.
func DefaultSpecs() [robot.NumJoints]JointSpec {
	return [robot.NumJoints]JointSpec{
		robot.Base: {
			Anchor: 90, LogicalAnchor: 90, Throw: 180,
			Direction: -1, MinSpeed: 15, SeekFactor: 3, Method: Switch,
		},
		robot.Joint1: {
			Anchor: 17, LogicalAnchor: 17, Throw: 73,
			Direction: 1, MinSpeed: 3, SeekFactor: 3, Method: SoftLimit,
		},
		robot.Joint2: {
			Anchor: -6, LogicalAnchor: -6, Throw: 167,
			Direction: 1, MinSpeed: 7, SeekFactor: 4, Method: StallBoth,
		},
	}
}

// SpecsFromConfig returns DefaultSpecs with the configured directions and
// minimum speeds.
func SpecsFromConfig(cfg robot.ArmConfig) [robot.NumJoints]JointSpec {
	specs := DefaultSpecs()
	for j := range specs {
		if cfg.Directions[j] != 0 {
			specs[j].Direction = cfg.Directions[j]
		}
		if cfg.MinSpeeds[j] > 0 {
			specs[j].MinSpeed = cfg.MinSpeeds[j]
		}
	}
	return specs
}
