package robot

import "context"

// Motor is a single joint actuator. Angles are raw degrees in the motor's own
// reference frame and speeds are degrees per second.
type Motor interface {
	// Angle returns the current raw angle.
	Angle(ctx context.Context) (float64, error)

	// ResetAngle redefines the current position as angle.
	ResetAngle(ctx context.Context, angle float64) error

	// RunTarget starts a move to target at speed and returns without waiting
	// for the move to complete. A newer call preempts the move in flight.
	RunTarget(ctx context.Context, speed, target float64) error

	// Run turns the motor continuously at a signed speed.
	Run(ctx context.Context, speed float64) error

	// Stop halts the motor and holds its position.
	Stop(ctx context.Context) error

	// SetDutyLimit caps motor torque as a percentage. 100 removes the cap.
	SetDutyLimit(ctx context.Context, percent int) error
}

// LimitSwitch is a touch sensor mounted at one end of a joint's travel.
type LimitSwitch interface {
	Pressed(ctx context.Context) (bool, error)
}

// Motors holds one motor per joint in wire order.
type Motors [NumJoints]Motor
