//go:build linux

package actuator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/floodgate/internal/logic"
)

// RealGate drives two redundant motor drivers. Each driver closes the
// barrier while its direction line is high and opens it while low.
type RealGate struct {
	chip   *gpiocdev.Chip
	motorA *gpiocdev.Line
	motorB *gpiocdev.Line
}

// NewRealGate opens the motor direction lines, initially commanding Open.
func NewRealGate(pins MotorPins) (*RealGate, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	motorA, err := chip.RequestLine(pins.MotorA, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request motor A pin %d: %w", pins.MotorA, err)
	}
	motorB, err := chip.RequestLine(pins.MotorB, gpiocdev.AsOutput(0))
	if err != nil {
		motorA.Close()
		chip.Close()
		return nil, fmt.Errorf("request motor B pin %d: %w", pins.MotorB, err)
	}

	return &RealGate{chip: chip, motorA: motorA, motorB: motorB}, nil
}

// Set drives both direction lines to the commanded position. Both drivers
// always receive the same level; re-commanding an unchanged position is a
// no-op at the driver.
func (g *RealGate) Set(cmd logic.GateCommand) error {
	level := 0
	if cmd == logic.GateClosed {
		level = 1
	}
	if err := g.motorA.SetValue(level); err != nil {
		return fmt.Errorf("command motor A: %w", err)
	}
	if err := g.motorB.SetValue(level); err != nil {
		return fmt.Errorf("command motor B: %w", err)
	}
	return nil
}

// Close commands the barrier open, then releases the lines and chip. A
// daemon shutdown must never leave the crossing blocked.
func (g *RealGate) Close() error {
	var errs []error
	if err := g.Set(logic.GateOpen); err != nil {
		errs = append(errs, err)
	}
	for _, line := range []*gpiocdev.Line{g.motorA, g.motorB} {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
