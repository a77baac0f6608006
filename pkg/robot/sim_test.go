package robot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTime returns a motor clock that only moves when advanced.
func fakeTime(m *SimMotor) func(time.Duration) {
	now := time.Unix(0, 0)
	m.now = func() time.Time { return now }
	m.last = now
	return func(d time.Duration) { now = now.Add(d) }
}

func TestSimMotor_RunTarget(t *testing.T) {
	ctx := context.Background()
	m := NewSimMotor(SimMotorConfig{MinStop: -100, MaxStop: 100})
	advance := fakeTime(m)

	require.NoError(t, m.RunTarget(ctx, 10, 30))
	advance(time.Second)
	a, err := m.Angle(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10, a, 1e-9)

	// It stops at the target.
	advance(5 * time.Second)
	a, _ = m.Angle(ctx)
	assert.InDelta(t, 30, a, 1e-9)

	speed, target := m.LastCommand()
	assert.Equal(t, 10.0, speed)
	assert.Equal(t, 30.0, target)

	// The sign of the speed is ignored.
	require.NoError(t, m.RunTarget(ctx, -10, 20))
	advance(2 * time.Second)
	a, _ = m.Angle(ctx)
	assert.InDelta(t, 20, a, 1e-9)
}

func TestSimMotor_Stops(t *testing.T) {
	ctx := context.Background()
	m := NewSimMotor(SimMotorConfig{MinStop: -10, MaxStop: 10})
	advance := fakeTime(m)

	require.NoError(t, m.Run(ctx, 50))
	advance(time.Second)
	a, _ := m.Angle(ctx)
	assert.Equal(t, 10.0, a)

	require.NoError(t, m.Run(ctx, -50))
	advance(time.Second)
	a, _ = m.Angle(ctx)
	assert.Equal(t, -10.0, a)

	require.NoError(t, m.Stop(ctx))
	advance(time.Second)
	a, _ = m.Angle(ctx)
	assert.Equal(t, -10.0, a)
}

func TestSimMotor_ResetAngle(t *testing.T) {
	ctx := context.Background()
	m := NewSimMotor(SimMotorConfig{MinStop: -10, MaxStop: 10, Start: 5})
	advance := fakeTime(m)

	require.NoError(t, m.ResetAngle(ctx, 90))
	a, _ := m.Angle(ctx)
	assert.Equal(t, 90.0, a)

	// Targets are in the reset frame.
	require.NoError(t, m.RunTarget(ctx, 10, 85))
	advance(time.Second)
	a, _ = m.Angle(ctx)
	assert.InDelta(t, 85, a, 1e-9)
	assert.InDelta(t, 0, m.physical(), 1e-9)
}

func TestSimMotor_DutyLimit(t *testing.T) {
	m := NewSimMotor(SimMotorConfig{})
	assert.Equal(t, 100, m.DutyLimit())
	require.NoError(t, m.SetDutyLimit(context.Background(), 35))
	assert.Equal(t, 35, m.DutyLimit())
}

func TestSimSwitch(t *testing.T) {
	ctx := context.Background()
	arm := NewSimArm(1)
	base := arm.Joints[Base]
	advance := fakeTime(base)

	pressed, err := arm.Switch.Pressed(ctx)
	require.NoError(t, err)
	assert.False(t, pressed)

	require.NoError(t, base.Run(ctx, -50))
	advance(time.Second)
	pressed, _ = arm.Switch.Pressed(ctx)
	assert.False(t, pressed)

	advance(time.Second)
	pressed, _ = arm.Switch.Pressed(ctx)
	assert.True(t, pressed)

	// The switch follows physical position, not the reported angle.
	require.NoError(t, base.ResetAngle(ctx, 500))
	pressed, _ = arm.Switch.Pressed(ctx)
	assert.True(t, pressed)
}

func TestSimArm_Motors(t *testing.T) {
	arm := NewSimArm(10)
	motors := arm.Motors()
	for _, j := range AllJoints() {
		assert.Same(t, arm.Joints[j], motors[j])
	}
}
