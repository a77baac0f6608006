package motion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gwillem/linkarm/pkg/calibration"
	"github.com/gwillem/linkarm/pkg/robot"
)

func TestPlan(t *testing.T) {
	rng := calibration.Range{Min: 17, Max: 90}
	lim := Limits{Min: 3, Max: 400}

	tests := []struct {
		name    string
		current float64
		target  float64
		budget  int
		want    Move
	}{
		{
			name: "ideal speed", current: 20, target: 70, budget: 500,
			want: Move{Target: 70, Speed: 100},
		},
		{
			name: "minimum speed floor", current: 20, target: 21, budget: 2000,
			want: Move{Target: 21, Speed: 3},
		},
		{
			name: "above range clamps", current: 50, target: 120, budget: 1000,
			want: Move{Target: 90, Speed: 40, Clamped: true},
		},
		{
			name: "below range clamps", current: 50, target: -4, budget: 1000,
			want: Move{Target: 17, Speed: 33, Clamped: true},
		},
		{
			name: "already there", current: 30, target: 30, budget: 500,
			want: Move{Target: 30, Speed: 3},
		},
		{
			name: "zero budget", current: 20, target: 80, budget: 0,
			want: Move{Target: 80, Speed: 400},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(robot.Joint1, tt.current, tt.target, tt.budget, rng, lim)
			assert.Equal(t, robot.Joint1, got.Joint)
			assert.Equal(t, tt.want.Target, got.Target)
			assert.InDelta(t, tt.want.Speed, got.Speed, 1e-9)
			assert.Equal(t, tt.want.Clamped, got.Clamped)
		})
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, [robot.NumJoints]*robot.SimMotor) {
	t.Helper()
	cal, err := calibration.New(calibration.DefaultSpecs(), [robot.NumJoints]calibration.Range{{Min: 90, Max: 450}, {Min: 17, Max: 90}, {Min: -6, Max: 161}})
	require.NoError(t, err)

	sims := [robot.NumJoints]*robot.SimMotor{
		robot.NewSimMotor(robot.SimMotorConfig{MinStop: -1000, MaxStop: 1000, Start: 270}),
		robot.NewSimMotor(robot.SimMotorConfig{MinStop: -1000, MaxStop: 1000, Start: 50}),
		robot.NewSimMotor(robot.SimMotorConfig{MinStop: -1000, MaxStop: 1000, Start: 0}),
	}
	var motors robot.Motors
	for j, m := range sims {
		motors[j] = m
	}
	return NewDispatcher(motors, cal, 400, zaptest.NewLogger(t).Sugar()), sims
}

func TestDispatcher_SendClamps(t *testing.T) {
	d, sims := newTestDispatcher(t)

	mv, err := d.Send(context.Background(), robot.Joint1, 500, 1000)
	require.NoError(t, err)
	assert.True(t, mv.Clamped)

	speed, target := sims[robot.Joint1].LastCommand()
	assert.Equal(t, 90.0, target)
	assert.InDelta(t, 40, speed, 0.5)
}

func TestDispatcher_SendAll(t *testing.T) {
	d, sims := newTestDispatcher(t)

	moves, err := d.SendAll(context.Background(), robot.JointAngles{450, 17, 200}, 500)
	require.NoError(t, err)

	assert.Equal(t, 450.0, moves[robot.Base].Target)
	assert.Equal(t, 17.0, moves[robot.Joint1].Target)
	assert.Equal(t, 161.0, moves[robot.Joint2].Target)
	assert.True(t, moves[robot.Joint2].Clamped)

	for j, m := range sims {
		_, target := m.LastCommand()
		assert.Equal(t, moves[j].Target, target)
	}

	// The base minimum speed comes from its JointSpec.
	mv, err := d.Send(context.Background(), robot.Base, 271, 5000)
	require.NoError(t, err)
	assert.Equal(t, 15.0, mv.Speed)
}

func TestDispatcher_UnknownJoint(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Send(context.Background(), robot.Joint(3), 0, 100)
	assert.ErrorIs(t, err, robot.ErrUnknownJoint)
}
