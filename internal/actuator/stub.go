//go:build !linux

package actuator

import (
	"errors"

	"github.com/sweeney/floodgate/internal/logic"
)

// RealGate requires the Linux GPIO character device. This stub keeps the
// daemon compiling on development machines.
type RealGate struct{}

func NewRealGate(pins MotorPins) (*RealGate, error) {
	return nil, errors.New("hardware actuator requires linux")
}

func (g *RealGate) Set(cmd logic.GateCommand) error {
	return errors.New("hardware actuator requires linux")
}

func (g *RealGate) Close() error { return nil }
