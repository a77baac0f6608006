// Package robot provides the joint model and motor abstractions for the arm.
package robot

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrUnknownJoint is returned when a joint index is out of range.
var ErrUnknownJoint = errors.New("unknown joint")

// Joint identifies one of the arm's joints.
type Joint int

// Joints of the arm, in wire order.
const (
	Base Joint = iota
	Joint1
	Joint2
)

// NumJoints is the fixed joint count of the arm.
const NumJoints = 3

// AllJoints returns all joints in wire order.
func AllJoints() []Joint {
	return []Joint{Base, Joint1, Joint2}
}

func (j Joint) String() string {
	switch j {
	case Base:
		return "base"
	case Joint1:
		return "joint1"
	case Joint2:
		return "joint2"
	default:
		return fmt.Sprintf("joint(%d)", int(j))
	}
}

// Valid reports whether j names one of the arm's joints.
func (j Joint) Valid() bool {
	return j >= Base && j <= Joint2
}

// ParseJoint returns the joint with the given name.
func ParseJoint(name string) (Joint, error) {
	for _, j := range AllJoints() {
		if j.String() == name {
			return j, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownJoint, "%q", name)
}

// JointAngles is an ordered (base, joint1, joint2) triple. The unit depends
// on the layer: the kinematics solver works in radians, everything else in
// degrees.
type JointAngles [NumJoints]float64

// Radians converts angles given in degrees to radians.
func (a JointAngles) Radians() JointAngles {
	var out JointAngles
	for i, v := range a {
		out[i] = v * math.Pi / 180
	}
	return out
}

// Degrees converts angles given in radians to degrees.
func (a JointAngles) Degrees() JointAngles {
	var out JointAngles
	for i, v := range a {
		out[i] = v * 180 / math.Pi
	}
	return out
}

// Add returns the element-wise sum of a and b.
func (a JointAngles) Add(b JointAngles) JointAngles {
	for i := range a {
		a[i] += b[i]
	}
	return a
}
