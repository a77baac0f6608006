// Package calibration finds each joint's raw travel and converts between raw
// motor angles and the logical angles the kinematics model uses.
//
// Raw angles are whatever the motor reports after calibration has reset it
// at the joint's anchor. They do not match true degrees because of gear
// slop and belt stretch, so every joint gets a scale factor derived from
// its measured travel and its known true throw.
package calibration

import (
	"math"

	"github.com/pkg/errors"

	"github.com/gwillem/linkarm/pkg/robot"
)

var (
	// ErrNotCalibrated is returned when a calibration is requested before
	// every joint has been calibrated.
	ErrNotCalibrated = errors.New("not calibrated")

	// ErrInvalidRange is returned for empty or inverted raw ranges.
	ErrInvalidRange = errors.New("invalid range")
)

// Range is a joint's calibrated raw travel.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Valid reports whether the range is non-empty.
func (r Range) Valid() bool {
	return r.Min < r.Max && !math.IsNaN(r.Min) && !math.IsNaN(r.Max)
}

// Clamp returns v limited to the range.
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Span returns the raw length of the range.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// At returns the raw angle at fraction f of the range.
func (r Range) At(f float64) float64 {
	return r.Min + f*r.Span()
}

// Calibration is an immutable set of joint ranges with the conversion
// constants derived from them. It is safe for concurrent use.
type Calibration struct {
	specs  [robot.NumJoints]JointSpec
	ranges [robot.NumJoints]Range
	scales [robot.NumJoints]float64
}

// New derives a calibration from measured ranges.
func New(specs [robot.NumJoints]JointSpec, ranges [robot.NumJoints]Range) (*Calibration, error) {
	c := &Calibration{specs: specs, ranges: ranges}
	for _, j := range robot.AllJoints() {
		if !ranges[j].Valid() {
			return nil, errors.Wrapf(ErrInvalidRange, "%s: [%g, %g]", j, ranges[j].Min, ranges[j].Max)
		}
		if specs[j].Throw <= 0 {
			return nil, errors.Errorf("%s: throw must be positive, got %g", j, specs[j].Throw)
		}
		c.scales[j] = ranges[j].Span() / specs[j].Throw
	}
	return c, nil
}

// FromBounds derives a calibration from per-joint raw minimums and maximums,
// as carried by a range report.
func FromBounds(specs [robot.NumJoints]JointSpec, min, max robot.JointAngles) (*Calibration, error) {
	var ranges [robot.NumJoints]Range
	for j := range ranges {
		ranges[j] = Range{Min: min[j], Max: max[j]}
	}
	return New(specs, ranges)
}

// Range returns the raw range of joint j.
func (c *Calibration) Range(j robot.Joint) Range {
	return c.ranges[j]
}

// Ranges returns all raw ranges in wire order.
func (c *Calibration) Ranges() [robot.NumJoints]Range {
	return c.ranges
}

// Bounds returns the raw minimums and maximums in wire order.
func (c *Calibration) Bounds() (min, max robot.JointAngles) {
	for j, r := range c.ranges {
		min[j], max[j] = r.Min, r.Max
	}
	return min, max
}

// Spec returns the static description of joint j.
func (c *Calibration) Spec(j robot.Joint) JointSpec {
	return c.specs[j]
}

// Scale returns raw degrees per true degree for joint j.
func (c *Calibration) Scale(j robot.Joint) float64 {
	return c.scales[j]
}

// ToLogical converts a raw angle of joint j to its logical angle.
func (c *Calibration) ToLogical(j robot.Joint, raw float64) float64 {
	sp := c.specs[j]
	return sp.LogicalAnchor - float64(sp.Direction)*(sp.Anchor-raw)/c.scales[j]
}

// ToRaw converts a logical angle of joint j to its raw angle. The result is
// not clamped.
func (c *Calibration) ToRaw(j robot.Joint, logical float64) float64 {
	sp := c.specs[j]
	return sp.Anchor - float64(sp.Direction)*(sp.LogicalAnchor-logical)*c.scales[j]
}

// AnglesToLogical converts raw angles of all joints.
func (c *Calibration) AnglesToLogical(raw robot.JointAngles) robot.JointAngles {
	var out robot.JointAngles
	for _, j := range robot.AllJoints() {
		out[j] = c.ToLogical(j, raw[j])
	}
	return out
}

// AnglesToRaw converts logical angles of all joints.
func (c *Calibration) AnglesToRaw(logical robot.JointAngles) robot.JointAngles {
	var out robot.JointAngles
	for _, j := range robot.AllJoints() {
		out[j] = c.ToRaw(j, logical[j])
	}
	return out
}

// Clamp limits raw angles of all joints to their ranges.
func (c *Calibration) Clamp(raw robot.JointAngles) robot.JointAngles {
	for _, j := range robot.AllJoints() {
		raw[j] = c.ranges[j].Clamp(raw[j])
	}
	return raw
}
