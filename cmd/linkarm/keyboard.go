package main

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/gwillem/linkarm/pkg/teleop"
)

// keyHold is how long a key press keeps its axis deflected. Terminals only
// report repeats, not releases, so a held key is a stream of presses.
const keyHold = 150 * time.Millisecond

type axisKey struct {
	axis int // 0 x, 1 y, 2 z
	sign float64
}

var axisKeys = map[string]axisKey{
	"w": {0, 1}, "s": {0, -1},
	"r": {1, 1}, "f": {1, -1},
	"d": {2, 1}, "a": {2, -1},
	"up": {0, 1}, "down": {0, -1},
	"right": {2, 1}, "left": {2, -1},
	"pgup": {1, 1}, "pgdown": {1, -1},
}

var buttonKeys = map[string]int{
	"0": teleop.ButtonSaveWaypoint, " ": teleop.ButtonSaveWaypoint, "space": teleop.ButtonSaveWaypoint,
	"1": teleop.ButtonCycleMode, "m": teleop.ButtonCycleMode,
	"2": teleop.ButtonReplayWaypoint, "p": teleop.ButtonReplayWaypoint,
	"3": teleop.ButtonClearWaypoints, "x": teleop.ButtonClearWaypoints,
}

// keyboard turns terminal key presses into teleop input.
type keyboard struct {
	mu      sync.Mutex
	now     func() time.Time
	pressed [3]time.Time
	sign    [3]float64
	buttons []int
}

func newKeyboard() *keyboard {
	return &keyboard{now: time.Now}
}

// Press records a key. It reports whether the key is bound.
func (k *keyboard) Press(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if a, ok := axisKeys[key]; ok {
		k.pressed[a.axis] = k.now()
		k.sign[a.axis] = a.sign
		return true
	}
	if b, ok := buttonKeys[key]; ok {
		k.buttons = append(k.buttons, b)
		return true
	}
	return false
}

// Poll implements teleop.InputSource.
func (k *keyboard) Poll(ctx context.Context) (teleop.Input, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	var v [3]float64
	for i := range v {
		if now.Sub(k.pressed[i]) < keyHold {
			v[i] = k.sign[i]
		}
	}
	in := teleop.Input{
		Axes:    r3.Vector{X: v[0], Y: v[1], Z: v[2]},
		Buttons: k.buttons,
	}
	k.buttons = nil
	return in, nil
}
