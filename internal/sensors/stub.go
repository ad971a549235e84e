//go:build !linux

package sensors

import (
	"errors"

	"github.com/sweeney/floodgate/internal/logic"
)

// RealReader requires the Linux GPIO character device. This stub keeps the
// daemon compiling on development machines.
type RealReader struct{}

func NewRealReader(pins Pins, i2cBus string) (*RealReader, error) {
	return nil, errors.New("hardware sensors require linux")
}

func (r *RealReader) Read() (logic.Sample, error) {
	return logic.Sample{}, errors.New("hardware sensors require linux")
}

func (r *RealReader) Close() error { return nil }
