package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJointState(t *testing.T) {
	var s JointState
	assert.Equal(t, Uncalibrated, s.State())

	assert.ErrorIs(t, s.Complete(Range{Min: 0, Max: 1}), ErrTransition)

	require.NoError(t, s.Begin())
	assert.Equal(t, Calibrating, s.State())
	assert.ErrorIs(t, s.Begin(), ErrTransition)

	assert.ErrorIs(t, s.Complete(Range{Min: 1, Max: 1}), ErrInvalidRange)
	assert.Equal(t, Calibrating, s.State())

	require.NoError(t, s.Complete(Range{Min: 0, Max: 10}))
	assert.Equal(t, Calibrated, s.State())
	assert.Equal(t, Range{Min: 0, Max: 10}, s.Range())

	// Calibrated is terminal.
	assert.ErrorIs(t, s.Begin(), ErrTransition)
	s.Abort()
	assert.Equal(t, Calibrated, s.State())
}

func TestJointState_Abort(t *testing.T) {
	var s JointState
	require.NoError(t, s.Begin())
	s.Abort()
	assert.Equal(t, Uncalibrated, s.State())
	require.NoError(t, s.Begin())
}

func TestStallDetector(t *testing.T) {
	t0 := time.Unix(0, 0)
	at := func(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

	t.Run("moving", func(t *testing.T) {
		d := NewStallDetector(0.3, 2, 500*time.Millisecond, 10, 0, t0)
		for i := 1; i <= 50; i++ {
			assert.False(t, d.Update(float64(i)*0.1, at(i*10)))
		}
		assert.InDelta(t, 10, d.Speed(), 1e-9)
	})

	t.Run("stalls against stop", func(t *testing.T) {
		d := NewStallDetector(0.3, 2, time.Second, 10, 0, t0)
		stalled := 0
		for i := 1; i <= 20; i++ {
			if d.Update(0, at(i*10)) {
				stalled = i
				break
			}
		}
		// 10 * 0.7^n < 2 first holds at n = 5.
		assert.Equal(t, 5, stalled)
	})

	t.Run("too slow per degree", func(t *testing.T) {
		// Threshold is zero so only the per-degree timeout can fire.
		d := NewStallDetector(0.3, 0, 100*time.Millisecond, 10, 0, t0)
		assert.False(t, d.Update(0.5, at(50)))
		assert.False(t, d.Update(0.9, at(100)))
		assert.True(t, d.Update(0.95, at(101)))
	})

	t.Run("progress resets timeout", func(t *testing.T) {
		d := NewStallDetector(0.3, 0, 100*time.Millisecond, 10, 0, t0)
		assert.False(t, d.Update(1.0, at(90)))
		assert.False(t, d.Update(1.5, at(180)))
		assert.True(t, d.Update(1.6, at(191)))
	})

	t.Run("same timestamp", func(t *testing.T) {
		d := NewStallDetector(0.3, 2, time.Second, 10, 0, t0)
		assert.False(t, d.Update(0, t0))
		assert.Equal(t, 10.0, d.Speed())
	})
}
