package robot

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
)

// Feetech STS servos report 4096 ticks per revolution.
const (
	ticksPerRevolution = 4096
	maxTick            = ticksPerRevolution - 1
)

// FeetechBus is an open servo bus with one servo per joint.
type FeetechBus struct {
	bus    *feetech.Bus
	motors Motors
}

// OpenFeetech opens the serial bus on port and binds the servos with the
// given IDs to the base, joint1 and joint2 motors.
func OpenFeetech(ctx context.Context, port string, baudRate int, ids [NumJoints]int) (*FeetechBus, error) {
	if baudRate == 0 {
		baudRate = 1_000_000
	}

	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: baudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open bus")
	}

	lo, hi := ids[0], ids[0]
	for _, id := range ids {
		lo = min(lo, id)
		hi = max(hi, id)
	}
	found, err := bus.Scan(ctx, lo, hi)
	if err != nil {
		bus.Close()
		return nil, errors.Wrap(err, "scan bus")
	}

	b := &FeetechBus{bus: bus}
	for j, id := range ids {
		var servo *feetech.Servo
		for _, s := range found {
			if s.ID == id {
				servo = feetech.NewServo(bus, s.ID, s.Model)
				break
			}
		}
		if servo == nil {
			bus.Close()
			return nil, errors.Errorf("servo %d for %s not found on %s", id, Joint(j), port)
		}
		b.motors[j] = NewFeetechMotor(servo)
	}
	return b, nil
}

// Motors returns the joint motors.
func (b *FeetechBus) Motors() Motors {
	return b.motors
}

// Close closes the bus connection.
func (b *FeetechBus) Close() error {
	return b.bus.Close()
}

// FeetechMotor adapts a feetech servo to Motor. The servo works in ticks; the
// motor converts to degrees and keeps a software zero so ResetAngle does not
// touch the servo's EEPROM.
type FeetechMotor struct {
	servo *feetech.Servo

	mu      sync.Mutex
	offset  float64 // degrees added to the servo reading
	duty    int
	running bool
}

// NewFeetechMotor wraps servo.
func NewFeetechMotor(servo *feetech.Servo) *FeetechMotor {
	return &FeetechMotor{servo: servo, duty: 100}
}

var _ Motor = (*FeetechMotor)(nil)

func ticksToDegrees(ticks int) float64 {
	return float64(ticks) * 360 / ticksPerRevolution
}

func degreesToTicks(deg float64) int {
	t := int(math.Round(deg * ticksPerRevolution / 360))
	return max(0, min(maxTick, t))
}

// Angle implements Motor. While a duty limit is active the servo load is
// checked on every read and the motor holds position once the load exceeds
// the limit, which is how a stall shows up for the calibration routine.
func (m *FeetechMotor) Angle(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticks, err := m.servo.Position(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read position")
	}

	if m.running && m.duty < 100 {
		load, err := m.servo.Load(ctx)
		if err != nil {
			return 0, errors.Wrap(err, "read load")
		}
		// Load is reported in tenths of a percent.
		if abs(load) > m.duty*10 {
			if err := m.servo.SetPosition(ctx, ticks); err != nil {
				return 0, errors.Wrap(err, "hold position")
			}
			m.running = false
		}
	}

	return ticksToDegrees(ticks) + m.offset, nil
}

// ResetAngle implements Motor.
func (m *FeetechMotor) ResetAngle(ctx context.Context, angle float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticks, err := m.servo.Position(ctx)
	if err != nil {
		return errors.Wrap(err, "read position")
	}
	m.offset = angle - ticksToDegrees(ticks)
	return nil
}

// RunTarget implements Motor.
func (m *FeetechMotor) RunTarget(ctx context.Context, speed, target float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goTo(ctx, speed, degreesToTicks(target-m.offset))
}

// Run implements Motor. The servo runs in position mode, so continuous
// rotation is a move toward the end of its travel.
func (m *FeetechMotor) Run(ctx context.Context, speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := maxTick
	if speed < 0 {
		end = 0
	}
	return m.goTo(ctx, speed, end)
}

func (m *FeetechMotor) goTo(ctx context.Context, speed float64, ticks int) error {
	ticksPerSecond := max(1, degreesToTicks(math.Abs(speed)))
	if err := m.servo.SetPositionWithSpeed(ctx, ticks, ticksPerSecond); err != nil {
		return errors.Wrap(err, "set position")
	}
	m.running = true
	return nil
}

// Stop implements Motor.
func (m *FeetechMotor) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticks, err := m.servo.Position(ctx)
	if err != nil {
		return errors.Wrap(err, "read position")
	}
	if err := m.servo.SetPosition(ctx, ticks); err != nil {
		return errors.Wrap(err, "hold position")
	}
	m.running = false
	return nil
}

// SetDutyLimit implements Motor.
func (m *FeetechMotor) SetDutyLimit(ctx context.Context, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duty = max(1, min(100, percent))
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
