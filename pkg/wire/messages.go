package wire

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/gwillem/linkarm/pkg/robot"
)

// Channel names.
const (
	ChannelCurrent = "current"
	ChannelTarget  = "target"
	ChannelRange   = "range"
)

// Encoded message sizes. Every field is a big endian int16.
const (
	TelemetrySize    = 2 * robot.NumJoints
	CommandSize      = 2 + 2*robot.NumJoints
	RangeRequestSize = 2
	RangeReportSize  = 4 * robot.NumJoints
)

// ErrShortMessage is returned when a payload is smaller than its message.
var ErrShortMessage = errors.New("short message")

// Telemetry is the arm's current raw joint angles.
type Telemetry struct {
	Raw robot.JointAngles
}

// Command asks the arm to reach raw joint angles within TimeMs.
type Command struct {
	TimeMs int
	Raw    robot.JointAngles
}

// RangeRequest tells the arm the controller is ready for a range report.
type RangeRequest struct {
	Flag int16
}

// RangeReport carries the calibrated raw ranges of all joints.
type RangeReport struct {
	Min robot.JointAngles
	Max robot.JointAngles
}

// toInt16 rounds v to the nearest integer and saturates it to the int16
// range. NaN encodes as zero.
func toInt16(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}

func putInt16(b []byte, v float64) []byte {
	return binary.BigEndian.AppendUint16(b, uint16(toInt16(v)))
}

func getInt16(b []byte, i int) float64 {
	return float64(int16(binary.BigEndian.Uint16(b[2*i:])))
}

func checkSize(b []byte, n int, what string) error {
	if len(b) < n {
		return errors.Wrapf(ErrShortMessage, "%s: %d bytes, need %d", what, len(b), n)
	}
	return nil
}

// MarshalBinary encodes the telemetry sample.
func (t Telemetry) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, TelemetrySize)
	for _, v := range t.Raw {
		b = putInt16(b, v)
	}
	return b, nil
}

// UnmarshalBinary decodes a telemetry sample. Trailing bytes are ignored.
func (t *Telemetry) UnmarshalBinary(b []byte) error {
	if err := checkSize(b, TelemetrySize, "telemetry"); err != nil {
		return err
	}
	for i := range t.Raw {
		t.Raw[i] = getInt16(b, i)
	}
	return nil
}

// MarshalBinary encodes the command.
func (c Command) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, CommandSize)
	b = putInt16(b, float64(c.TimeMs))
	for _, v := range c.Raw {
		b = putInt16(b, v)
	}
	return b, nil
}

// UnmarshalBinary decodes a command. Trailing bytes are ignored.
func (c *Command) UnmarshalBinary(b []byte) error {
	if err := checkSize(b, CommandSize, "command"); err != nil {
		return err
	}
	c.TimeMs = int(getInt16(b, 0))
	for i := range c.Raw {
		c.Raw[i] = getInt16(b, i+1)
	}
	return nil
}

// MarshalBinary encodes the request.
func (r RangeRequest) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint16(nil, uint16(r.Flag)), nil
}

// UnmarshalBinary decodes a request. Trailing bytes are ignored.
func (r *RangeRequest) UnmarshalBinary(b []byte) error {
	if err := checkSize(b, RangeRequestSize, "range request"); err != nil {
		return err
	}
	r.Flag = int16(binary.BigEndian.Uint16(b))
	return nil
}

// MarshalBinary encodes the report as min, max pairs in joint order.
func (r RangeReport) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, RangeReportSize)
	for j := range r.Min {
		b = putInt16(b, r.Min[j])
		b = putInt16(b, r.Max[j])
	}
	return b, nil
}

// UnmarshalBinary decodes a report. Trailing bytes are ignored.
func (r *RangeReport) UnmarshalBinary(b []byte) error {
	if err := checkSize(b, RangeReportSize, "range report"); err != nil {
		return err
	}
	for j := range r.Min {
		r.Min[j] = getInt16(b, 2*j)
		r.Max[j] = getInt16(b, 2*j+1)
	}
	return nil
}
