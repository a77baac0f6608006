package calibration

import (
	"math"
	"time"
)

// StallDetector decides when a joint driven into a stop has stopped moving.
// It smooths the measured speed with an exponentially weighted moving
// average seeded with the commanded speed, and also reports a stall when
// the joint takes longer than a set time to advance one degree.
type StallDetector struct {
	alpha     float64
	threshold float64
	perDegree time.Duration

	avg      float64
	lastPos  float64
	lastTime time.Time

	progressPos  float64
	progressTime time.Time
}

// NewStallDetector returns a detector for a joint commanded at speed deg/s
// and currently at pos.
func NewStallDetector(alpha, threshold float64, perDegree time.Duration, speed, pos float64, now time.Time) *StallDetector {
	return &StallDetector{
		alpha:        alpha,
		threshold:    threshold,
		perDegree:    perDegree,
		avg:          math.Abs(speed),
		lastPos:      pos,
		lastTime:     now,
		progressPos:  pos,
		progressTime: now,
	}
}

// Speed returns the smoothed speed in deg/s.
func (d *StallDetector) Speed() float64 {
	return d.avg
}

// Update feeds a new position sample and reports whether the joint has
// stalled.
func (d *StallDetector) Update(pos float64, now time.Time) bool {
	dt := now.Sub(d.lastTime).Seconds()
	if dt > 0 {
		v := math.Abs(pos-d.lastPos) / dt
		d.avg = d.alpha*v + (1-d.alpha)*d.avg
		d.lastPos = pos
		d.lastTime = now
	}

	if math.Abs(pos-d.progressPos) >= 1 {
		d.progressPos = pos
		d.progressTime = now
	} else if d.perDegree > 0 && now.Sub(d.progressTime) > d.perDegree {
		return true
	}
	return d.avg < d.threshold
}
