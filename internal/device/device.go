// Package device declares the hardware the motion core consumes. Drivers
// live outside this module; internal/sim provides simulated ones.
package device

import "context"

// Encoder reports accumulated wheel rotation in radians.
type Encoder interface {
	Connected() bool
	Position() float64
	Reset()
}

// IMU reports heading in radians, counter-clockwise positive.
type IMU interface {
	Connected() bool
	Heading() float64
	// Calibrate blocks until calibration finishes or fails.
	Calibrate(ctx context.Context) error
}

// Drive accepts normalized side commands in [-1, 1].
type Drive interface {
	Set(left, right float64) error
}

// Mechanisms runs the non-drive actuators named in routine actions.
type Mechanisms interface {
	Toggle(name string) error
	Spin(name string, power float64) error
	Stop(name string) error
}
