// Package actuator drives the physical barrier with hardware abstraction.
// The real implementation commands two redundant motor drivers through the
// Linux GPIO character device; the fake records commands for tests.
package actuator

import "github.com/sweeney/floodgate/internal/logic"

// Gate accepts a commanded barrier position.
type Gate interface {
	// Set drives the barrier to the commanded position. It is idempotent
	// and safe to call every cycle with an unchanged position.
	Set(cmd logic.GateCommand) error

	// Close releases actuator resources, leaving the barrier open.
	Close() error
}

// MotorPins selects the motor-driver direction lines (BCM numbering). Two
// drivers move the barrier in tandem so a single failed motor cannot leave
// it stuck half-way.
type MotorPins struct {
	MotorA int
	MotorB int
}

// DefaultMotorPins returns the production wiring.
func DefaultMotorPins() MotorPins {
	return MotorPins{MotorA: 17, MotorB: 27}
}
