package sensors

import (
	"errors"

	"github.com/sweeney/floodgate/internal/logic"
)

// FakeReader is a test double that returns scripted sensor samples.
type FakeReader struct {
	// Samples contains scripted snapshots. Each call to Read() consumes
	// the next one; when exhausted, the last sample repeats.
	Samples []logic.Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []logic.Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeReader) Read() (logic.Sample, error) {
	if f.ReadError != nil {
		return logic.Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return logic.Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}
