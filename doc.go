// Package linkarm drives a three joint arm, a turntable base with two links,
// from a remote controller.
//
// The arm side calibrates its joints against their stops, then publishes
// joint telemetry and executes timed motion commands received over a serial
// or TCP link. The controller side maps keyboard input to Cartesian targets
// through an inverse kinematics solver and sends the resulting joint targets
// back.
//
// # Installation
//
//	go install github.com/gwillem/linkarm/cmd/linkarm@latest
//
// # Usage
//
// First, run setup to find the servo bus and choose the link:
//
//	linkarm setup
//
// Start the arm side, or a simulated one:
//
//	linkarm arm
//	linkarm arm --sim --speedup 5
//
// Then drive it:
//
//	linkarm control --mode ask
//
// # Packages
//
//   - cmd/linkarm: CLI with setup, arm, control, ranges and info commands
//   - pkg/robot: joints, motors (feetech and simulated) and configuration
//   - pkg/kinematics: forward and inverse kinematics
//   - pkg/calibration: raw/logical conversion and limit finding
//   - pkg/motion: clamped, time-budgeted joint moves
//   - pkg/wire: mailbox link protocol and transports
//   - pkg/arm: arm-side runtime
//   - pkg/teleop: controller session and control modes
package linkarm
