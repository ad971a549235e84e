//go:build linux

package sensors

import (
	"fmt"
	"log"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/floodgate/internal/logic"
)

// RealReader reads the sensor suite from actual hardware: two HC-SR04
// ultrasonic rangers (water surface below, clearance above), two IR beam
// lines, and an MPU-6050 gyroscope strapped to the flow vane.
type RealReader struct {
	chip      *gpiocdev.Chip
	waterTrig *gpiocdev.Line
	waterEcho *gpiocdev.Line
	clearTrig *gpiocdev.Line
	clearEcho *gpiocdev.Line
	entryBeam *gpiocdev.Line
	exitBeam  *gpiocdev.Line
	gyro      *gyro
}

// NewRealReader opens the GPIO lines and verifies the gyroscope. The
// gyroscope check retries indefinitely: turbulence sensing is
// safety-relevant, so the control loop must never start with an unverified
// sensor. Each failed attempt is logged for the operator.
func NewRealReader(pins Pins, i2cBus string) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: chip}
	cleanup := func() {
		r.Close()
	}

	if r.waterTrig, err = chip.RequestLine(pins.WaterTrig, gpiocdev.AsOutput(0)); err != nil {
		cleanup()
		return nil, fmt.Errorf("request water trigger pin %d: %w", pins.WaterTrig, err)
	}
	if r.waterEcho, err = chip.RequestLine(pins.WaterEcho, gpiocdev.AsInput); err != nil {
		cleanup()
		return nil, fmt.Errorf("request water echo pin %d: %w", pins.WaterEcho, err)
	}
	if r.clearTrig, err = chip.RequestLine(pins.ClearTrig, gpiocdev.AsOutput(0)); err != nil {
		cleanup()
		return nil, fmt.Errorf("request clearance trigger pin %d: %w", pins.ClearTrig, err)
	}
	if r.clearEcho, err = chip.RequestLine(pins.ClearEcho, gpiocdev.AsInput); err != nil {
		cleanup()
		return nil, fmt.Errorf("request clearance echo pin %d: %w", pins.ClearEcho, err)
	}

	// Beams idle low; pull-down matches Pi boot defaults and the IR
	// receiver modules' open-collector outputs.
	if r.entryBeam, err = chip.RequestLine(pins.EntryBeam, gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		cleanup()
		return nil, fmt.Errorf("request entry beam pin %d: %w", pins.EntryBeam, err)
	}
	if r.exitBeam, err = chip.RequestLine(pins.ExitBeam, gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		cleanup()
		return nil, fmt.Errorf("request exit beam pin %d: %w", pins.ExitBeam, err)
	}

	r.gyro = mustOpenGyro(i2cBus)
	return r, nil
}

// Read polls every sensor once. Ranging failures collapse to the fail-safe
// distance; a gyroscope read failure collapses to zero turbulence. Neither
// can indicate flood on its own, so a failed sensor biases the gate open.
func (r *RealReader) Read() (logic.Sample, error) {
	var s logic.Sample
	s.WaterLevel = r.rangeCM(r.waterTrig, r.waterEcho)
	s.Clearance = r.rangeCM(r.clearTrig, r.clearEcho)

	mag, err := r.gyro.magnitude()
	if err != nil {
		log.Printf("turbulence read failed, substituting 0: %v", err)
		mag = 0
	}
	s.Turbulence = mag

	entry, err := r.entryBeam.Value()
	if err != nil {
		return logic.Sample{}, fmt.Errorf("read entry beam: %w", err)
	}
	exit, err := r.exitBeam.Value()
	if err != nil {
		return logic.Sample{}, fmt.Errorf("read exit beam: %w", err)
	}
	s.Entry = entry == 1
	s.Exit = exit == 1

	return s, nil
}

// rangeCM performs one trigger/echo measurement. The echo wait is bounded
// by EchoTimeout; on timeout, line error, or an implausible result the
// fail-safe distance is returned instead.
func (r *RealReader) rangeCM(trig, echo *gpiocdev.Line) float64 {
	if err := trig.SetValue(1); err != nil {
		return logic.FailSafeDistance
	}
	time.Sleep(10 * time.Microsecond)
	if err := trig.SetValue(0); err != nil {
		return logic.FailSafeDistance
	}

	deadline := time.Now().Add(EchoTimeout)

	// Wait for the echo pulse to start.
	for {
		v, err := echo.Value()
		if err != nil || time.Now().After(deadline) {
			return logic.FailSafeDistance
		}
		if v == 1 {
			break
		}
	}
	start := time.Now()

	// Wait for it to end; pulse width is the round-trip time.
	for {
		v, err := echo.Value()
		if err != nil || time.Now().After(deadline) {
			return logic.FailSafeDistance
		}
		if v == 0 {
			break
		}
	}

	// Sound travels there and back: 34300 cm/s halved.
	cm := time.Since(start).Seconds() * 34300 / 2
	if cm < minRangeCM || cm > maxRangeCM {
		return logic.FailSafeDistance
	}
	return cm
}

// Close releases all GPIO lines, the chip, and the I²C bus.
func (r *RealReader) Close() error {
	var errs []error
	for _, line := range []*gpiocdev.Line{
		r.waterTrig, r.waterEcho, r.clearTrig, r.clearEcho, r.entryBeam, r.exitBeam,
	} {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.gyro != nil {
		if err := r.gyro.close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
