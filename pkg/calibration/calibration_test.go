package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/linkarm/pkg/robot"
)

func mustCalibration(t *testing.T, ranges [robot.NumJoints]Range) *Calibration {
	t.Helper()
	c, err := New(DefaultSpecs(), ranges)
	require.NoError(t, err)
	return c
}

var referenceRanges = [robot.NumJoints]Range{{Min: 0, Max: 180}, {Min: 17, Max: 90}, {Min: -6, Max: 161}}

func TestBaseAnchor(t *testing.T) {
	c := mustCalibration(t, referenceRanges)
	assert.InDelta(t, 90, c.ToLogical(robot.Base, 90), 1e-12)
}

func TestBaseLogicalZero(t *testing.T) {
	c := mustCalibration(t, [robot.NumJoints]Range{{Min: 0, Max: 180}, {Min: 17, Max: 90}, {Min: -6, Max: 161}})
	assert.InDelta(t, 1.0, c.Scale(robot.Base), 1e-12)
	assert.InDelta(t, 180, c.ToRaw(robot.Base, 0), 1e-12)
}

func TestScale(t *testing.T) {
	c := mustCalibration(t, [robot.NumJoints]Range{{Min: 90, Max: 450}, {Min: 17, Max: 90}, {Min: -6, Max: 328}})

	tests := []struct {
		joint robot.Joint
		want  float64
	}{
		{robot.Base, 2},
		{robot.Joint1, 1},
		{robot.Joint2, 2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, c.Scale(tt.joint), 1e-12, tt.joint.String())
	}
}

func TestConversion(t *testing.T) {
	c := mustCalibration(t, [robot.NumJoints]Range{{Min: 90, Max: 450}, {Min: 17, Max: 90}, {Min: -6, Max: 328}})

	tests := []struct {
		name    string
		joint   robot.Joint
		raw     float64
		logical float64
	}{
		{"base anchor", robot.Base, 90, 90},
		{"base centre", robot.Base, 270, 0},
		{"base far end", robot.Base, 450, -90},
		{"joint1 anchor", robot.Joint1, 17, 17},
		{"joint1 horizontal", robot.Joint1, 90, 90},
		{"joint2 anchor", robot.Joint2, -6, -6},
		{"joint2 far end", robot.Joint2, 328, 161},
		{"joint2 straight", robot.Joint2, 6, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.logical, c.ToLogical(tt.joint, tt.raw), 1e-9)
			assert.InDelta(t, tt.raw, c.ToRaw(tt.joint, tt.logical), 1e-9)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	ranges := [][robot.NumJoints]Range{
		referenceRanges,
		{{Min: 90, Max: 451.7}, {Min: 17, Max: 90}, {Min: -6, Max: 302.25}},
		{{Min: -13, Max: 2}, {Min: 17, Max: 18}, {Min: -6, Max: 1000}},
	}

	for _, rs := range ranges {
		c := mustCalibration(t, rs)
		for _, j := range robot.AllJoints() {
			r := c.Range(j)
			for i := 0; i <= 100; i++ {
				raw := r.At(float64(i) / 100)
				back := c.ToRaw(j, c.ToLogical(j, raw))
				require.InDelta(t, raw, back, 1e-6, "%s raw %g", j, raw)
			}
		}
	}
}

func TestAngles(t *testing.T) {
	c := mustCalibration(t, [robot.NumJoints]Range{{Min: 90, Max: 450}, {Min: 17, Max: 90}, {Min: -6, Max: 328}})

	raw := robot.JointAngles{270, 50, 6}
	logical := c.AnglesToLogical(raw)
	assert.InDeltaSlice(t, []float64{0, 50, 0}, logical[:], 1e-9)

	back := c.AnglesToRaw(logical)
	assert.InDeltaSlice(t, raw[:], back[:], 1e-9)
}

func TestClamp(t *testing.T) {
	c := mustCalibration(t, referenceRanges)
	got := c.Clamp(robot.JointAngles{-10, 95, 100})
	assert.Equal(t, robot.JointAngles{0, 90, 100}, got)
}

func TestNew_InvalidRange(t *testing.T) {
	tests := []struct {
		name   string
		ranges [robot.NumJoints]Range
	}{
		{"empty", [robot.NumJoints]Range{{Min: 90, Max: 90}, {Min: 17, Max: 90}, {Min: -6, Max: 161}}},
		{"inverted", [robot.NumJoints]Range{{Min: 0, Max: 180}, {Min: 90, Max: 17}, {Min: -6, Max: 161}}},
		{"nan", [robot.NumJoints]Range{{Min: 0, Max: 180}, {Min: 17, Max: 90}, {Min: -6, Max: math.NaN()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(DefaultSpecs(), tt.ranges)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestFromBounds(t *testing.T) {
	c, err := FromBounds(DefaultSpecs(), robot.JointAngles{0, 17, -6}, robot.JointAngles{180, 90, 161})
	require.NoError(t, err)
	assert.Equal(t, referenceRanges, c.Ranges())

	min, max := c.Bounds()
	assert.Equal(t, robot.JointAngles{0, 17, -6}, min)
	assert.Equal(t, robot.JointAngles{180, 90, 161}, max)
}

func TestSpecsFromConfig(t *testing.T) {
	cfg := robot.ArmConfig{Directions: [robot.NumJoints]int{1, -1, 1}, MinSpeeds: [robot.NumJoints]float64{20, 0, 9}}
	specs := SpecsFromConfig(cfg)

	assert.Equal(t, 1, specs[robot.Base].Direction)
	assert.Equal(t, -1, specs[robot.Joint1].Direction)
	assert.Equal(t, 20.0, specs[robot.Base].MinSpeed)
	assert.Equal(t, 3.0, specs[robot.Joint1].MinSpeed)
	assert.Equal(t, 36.0, specs[robot.Joint2].SeekSpeed())
}
