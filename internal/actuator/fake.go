package actuator

import "github.com/sweeney/floodgate/internal/logic"

// FakeGate records commanded positions for test assertions.
type FakeGate struct {
	// Commands contains every position commanded, in order, including
	// idempotent re-commands.
	Commands []logic.GateCommand

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeGate creates a FakeGate for testing.
func NewFakeGate() *FakeGate {
	return &FakeGate{}
}

// Set records the command.
func (f *FakeGate) Set(cmd logic.GateCommand) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

// Position returns the most recently commanded position, or GateOpen if
// nothing has been commanded yet.
func (f *FakeGate) Position() logic.GateCommand {
	if len(f.Commands) == 0 {
		return logic.GateOpen
	}
	return f.Commands[len(f.Commands)-1]
}

// Close marks the gate as closed down.
func (f *FakeGate) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded commands.
func (f *FakeGate) Reset() {
	f.Commands = nil
	f.SetError = nil
	f.Closed = false
}
