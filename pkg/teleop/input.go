package teleop

import (
	"context"

	"github.com/golang/geo/r3"
)

// Buttons with a fixed meaning.
const (
	ButtonSaveWaypoint   = 0
	ButtonCycleMode      = 1
	ButtonReplayWaypoint = 2
	ButtonClearWaypoints = 3
)

const idleThreshold = 0.01

// Input is one sample of the input device. Axes are in [-1, 1].
type Input struct {
	Axes    r3.Vector
	Buttons []int // buttons pressed since the previous sample
}

// InputSource is an input device polled once per control tick. Poll must
// not block.
type InputSource interface {
	Poll(ctx context.Context) (Input, error)
}

// InputFunc adapts a function to an InputSource.
type InputFunc func(ctx context.Context) (Input, error)

// Poll implements InputSource.
func (f InputFunc) Poll(ctx context.Context) (Input, error) {
	return f(ctx)
}

// gain softens small stick deflections while keeping full range.
func gain(x float64) float64 {
	return 0.4*x + 0.6*x*x*x
}

func applyGain(v r3.Vector) r3.Vector {
	return r3.Vector{X: gain(v.X), Y: gain(v.Y), Z: gain(v.Z)}
}

// normalizeThenScale scales v by scale, first normalising it if it is
// longer than 1 so diagonal input is not faster than straight input.
func normalizeThenScale(v r3.Vector, scale float64) r3.Vector {
	if mag := v.Norm(); mag > 1 {
		scale /= mag
	}
	return v.Mul(scale)
}
