package sensors

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// MPU-6050 register map, the subset we use.
const (
	mpuAddr       = 0x68
	regGyroConfig = 0x1B
	regGyroXOut   = 0x43
	regPwrMgmt1   = 0x6B
	regWhoAmI     = 0x75

	// LSB per °/s at the ±250 °/s full-scale range.
	gyroScale = 131.0
)

// gyro reads angular rate from an MPU-6050 over I²C. The magnitude of the
// rate vector is the turbulence proxy: a vane in the current shakes the
// sensor harder the more violent the flow is.
type gyro struct {
	bus i2c.BusCloser
	dev i2c.Dev
}

// mustOpenGyro opens and verifies the gyroscope, retrying indefinitely.
// The loop must not start with an unverified turbulence sensor, and an
// operator watching the log can see why startup is stuck.
func mustOpenGyro(busName string) *gyro {
	var g *gyro
	op := func() error {
		var err error
		g, err = openGyro(busName)
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Printf("turbulence sensor not responding: %v (retrying in %v)", err, next)
	}
	// ConstantBackOff never gives up, so Retry only returns on success.
	_ = backoff.RetryNotify(op, backoff.NewConstantBackOff(2*time.Second), notify)
	return g
}

func openGyro(busName string) (*gyro, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	g := &gyro{bus: bus, dev: i2c.Dev{Bus: bus, Addr: mpuAddr}}

	who := make([]byte, 1)
	if err := g.dev.Tx([]byte{regWhoAmI}, who); err != nil {
		bus.Close()
		return nil, fmt.Errorf("read WHO_AM_I: %w", err)
	}
	if who[0] != mpuAddr {
		bus.Close()
		return nil, fmt.Errorf("unexpected WHO_AM_I 0x%02x", who[0])
	}

	// Wake from sleep and select the ±250 °/s range.
	if err := g.dev.Tx([]byte{regPwrMgmt1, 0x00}, nil); err != nil {
		bus.Close()
		return nil, fmt.Errorf("wake mpu6050: %w", err)
	}
	if err := g.dev.Tx([]byte{regGyroConfig, 0x00}, nil); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set gyro range: %w", err)
	}
	return g, nil
}

// magnitude returns the angular-rate vector norm in °/s.
func (g *gyro) magnitude() (float64, error) {
	raw := make([]byte, 6)
	if err := g.dev.Tx([]byte{regGyroXOut}, raw); err != nil {
		return 0, fmt.Errorf("read gyro registers: %w", err)
	}
	x := float64(int16(uint16(raw[0])<<8|uint16(raw[1]))) / gyroScale
	y := float64(int16(uint16(raw[2])<<8|uint16(raw[3]))) / gyroScale
	z := float64(int16(uint16(raw[4])<<8|uint16(raw[5]))) / gyroScale
	return math.Sqrt(x*x + y*y + z*z), nil
}

func (g *gyro) close() error {
	return g.bus.Close()
}
