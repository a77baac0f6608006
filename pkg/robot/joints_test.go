package robot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJointNames(t *testing.T) {
	assert.Equal(t, []Joint{Base, Joint1, Joint2}, AllJoints())
	assert.Len(t, AllJoints(), NumJoints)

	for _, j := range AllJoints() {
		assert.True(t, j.Valid())
		got, err := ParseJoint(j.String())
		require.NoError(t, err)
		assert.Equal(t, j, got)
	}

	assert.False(t, Joint(3).Valid())
	assert.False(t, Joint(-1).Valid())
	assert.Equal(t, "joint(7)", Joint(7).String())

	_, err := ParseJoint("wrist")
	assert.ErrorIs(t, err, ErrUnknownJoint)
}

func TestJointAngles(t *testing.T) {
	deg := JointAngles{180, -90, 45}
	rad := deg.Radians()
	assert.InDelta(t, math.Pi, rad[0], 1e-12)
	assert.InDelta(t, -math.Pi/2, rad[1], 1e-12)
	assert.InDelta(t, math.Pi/4, rad[2], 1e-12)

	back := rad.Degrees()
	for i := range deg {
		assert.InDelta(t, deg[i], back[i], 1e-9)
	}

	sum := deg.Add(JointAngles{1, 2, 3})
	assert.Equal(t, JointAngles{181, -88, 48}, sum)
	assert.Equal(t, JointAngles{180, -90, 45}, deg, "Add does not modify the receiver")
}
