// Package sensors provides the gate's sensor suite behind a hardware
// abstraction. The real implementation reads the ultrasonic rangers and
// presence beams through the Linux GPIO character device and the gyroscope
// over I²C. The fake implementation allows testing without hardware.
package sensors

import (
	"time"

	"github.com/sweeney/floodgate/internal/logic"
)

// Reader polls the full sensor suite once per control cycle.
type Reader interface {
	// Read returns one cycle's snapshot. Ranging timeouts and implausible
	// readings are substituted with logic.FailSafeDistance inside Read;
	// every returned value is usable. An error is returned only for faults
	// that leave the whole snapshot meaningless (e.g. a GPIO line read
	// failure). The Time field is left zero for the caller to stamp.
	Read() (logic.Sample, error)

	// Close releases sensor resources.
	Close() error
}

// Pins selects the GPIO lines used by the real reader (BCM numbering).
type Pins struct {
	WaterTrig int
	WaterEcho int
	ClearTrig int
	ClearEcho int
	EntryBeam int
	ExitBeam  int
}

// DefaultPins returns the production wiring.
func DefaultPins() Pins {
	return Pins{
		WaterTrig: 23,
		WaterEcho: 24,
		ClearTrig: 20,
		ClearEcho: 21,
		EntryBeam: 5,
		ExitBeam:  6,
	}
}

// DefaultI2CBus is the I²C bus the gyroscope hangs off. Empty string lets
// periph pick the first available bus.
const DefaultI2CBus = "1"

// EchoTimeout bounds a single ranging operation so a dead sensor cannot
// stall the control cycle while a flood decision is waiting.
const EchoTimeout = 30 * time.Millisecond

// Plausible ranging bounds for the ultrasonic sensors. Readings outside
// them get the fail-safe substitution.
const (
	minRangeCM = 2.0
	maxRangeCM = 400.0
)
