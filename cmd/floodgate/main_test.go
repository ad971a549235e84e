package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/floodgate/internal/actuator"
	"github.com/sweeney/floodgate/internal/config"
	"github.com/sweeney/floodgate/internal/logic"
	"github.com/sweeney/floodgate/internal/mqtt"
	"github.com/sweeney/floodgate/internal/sensors"
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of sample.
func repeat(sample logic.Sample, n int) []logic.Sample {
	out := make([]logic.Sample, n)
	for i := range out {
		out[i] = sample
	}
	return out
}

// testTiming compresses the production windows so scenarios run in a few
// 200ms ticks: confirmation in 3 ticks, debounce in 2.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Timing.PollMs = 200
	cfg.Timing.FloodConfirmMs = 600
	cfg.Timing.EntryDebounceMs = 400
	cfg.Timing.ClearanceDelayMs = 600
	cfg.Timing.HeartbeatMs = 0
	return cfg
}

func safeSample() logic.Sample {
	return logic.Sample{WaterLevel: 20, Clearance: 250, Turbulence: 0}
}

func floodSample() logic.Sample {
	return logic.Sample{WaterLevel: 8, Clearance: 250, Turbulence: 0}
}

// faultReader wraps a FakeReader and returns errors for a range of Read() calls.
// No shared mutable state — the fault range is fixed at construction.
type faultReader struct {
	inner      *sensors.FakeReader
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (r *faultReader) Read() (logic.Sample, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return logic.Sample{}, errors.New("sensor fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

// runRunLoop drives runLoop with the given samples and signal, returning
// the error, with the fake gate and publisher available for assertions.
func runRunLoop(t *testing.T, reader sensors.Reader, gate *actuator.FakeGate, pub *mqtt.FakePublisher, cfg config.Config, heartbeat time.Duration, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	cfg.Timing.HeartbeatMs = int(heartbeat.Milliseconds())

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(reader, gate, pub, pub, nil, nil, cfg, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopNoEventsWhenDry(t *testing.T) {
	samples := repeat(safeSample(), 5)
	reader := sensors.NewFakeReader(samples)
	gate := actuator.NewFakeGate()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 200*time.Millisecond)

	err := runRunLoop(t, reader, gate, pub, testConfig(), 0, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 transition events, got %d", len(pub.Events))
	}

	// The position is re-commanded every cycle, and it is always open.
	if len(gate.Commands) != len(samples) {
		t.Errorf("expected %d gate commands, got %d", len(samples), len(gate.Commands))
	}
	for i, cmd := range gate.Commands {
		if cmd != logic.GateOpen {
			t.Errorf("command %d: expected open, got %s", i, cmd)
		}
	}

	// Should have exactly one system event: SHUTDOWN
	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	if pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %q", pub.SystemEvents[0].Event)
	}
}

func TestRunLoopSustainedFloodClosesGate(t *testing.T) {
	// 3 dry ticks then 6 flooded ticks. The alert starts on the first
	// flooded tick and confirmation needs strictly more than 600ms in
	// alert, so the closure lands on the 5th flooded tick.
	samples := append(repeat(safeSample(), 3), repeat(floodSample(), 6)...)
	reader := sensors.NewFakeReader(samples)
	gate := actuator.NewFakeGate()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 200*time.Millisecond)

	err := runRunLoop(t, reader, gate, pub, testConfig(), 0, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 2 {
		t.Fatalf("expected 2 transition events, got %d", len(pub.Events))
	}
	if pub.Events[0].Transition != logic.TransitionAlert {
		t.Errorf("event 0: expected %s, got %s", logic.TransitionAlert, pub.Events[0].Transition)
	}
	if pub.Events[1].Transition != logic.TransitionClosed {
		t.Errorf("event 1: expected %s, got %s", logic.TransitionClosed, pub.Events[1].Transition)
	}
	if pub.Events[1].State != logic.StateFloodActive {
		t.Errorf("event 1: expected state %s, got %s", logic.StateFloodActive, pub.Events[1].State)
	}
	if pub.Events[1].Gate != logic.GateClosed {
		t.Errorf("event 1: expected gate %s, got %s", logic.GateClosed, pub.Events[1].Gate)
	}

	if gate.Position() != logic.GateClosed {
		t.Errorf("expected final gate position closed, got %s", gate.Position())
	}
}

func TestRunLoopHumanForcesEmergencyOpen(t *testing.T) {
	// A person crosses the entry beam during the alert window. When the
	// confirmation lands, the gate must stay open.
	flooded := floodSample()
	floodedWithEntry := floodSample()
	floodedWithEntry.Entry = true

	samples := append(repeat(safeSample(), 2),
		append([]logic.Sample{floodedWithEntry}, repeat(flooded, 6)...)...)
	reader := sensors.NewFakeReader(samples)
	gate := actuator.NewFakeGate()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 200*time.Millisecond)

	err := runRunLoop(t, reader, gate, pub, testConfig(), 0, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 2 {
		t.Fatalf("expected 2 transition events, got %d", len(pub.Events))
	}
	if pub.Events[0].Transition != logic.TransitionAlert {
		t.Errorf("event 0: expected %s, got %s", logic.TransitionAlert, pub.Events[0].Transition)
	}
	if pub.Events[1].Transition != logic.TransitionEmergency {
		t.Errorf("event 1: expected %s, got %s", logic.TransitionEmergency, pub.Events[1].Transition)
	}
	if !pub.Events[1].Human {
		t.Error("expected Human=true on the emergency event")
	}

	// The gate must never have been commanded closed.
	for i, cmd := range gate.Commands {
		if cmd != logic.GateOpen {
			t.Errorf("command %d: expected open, got %s", i, cmd)
		}
	}
}

func TestRunLoopPublishesReadingEveryCycle(t *testing.T) {
	samples := repeat(safeSample(), 4)
	reader := sensors.NewFakeReader(samples)
	gate := actuator.NewFakeGate()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 200*time.Millisecond)

	err := runRunLoop(t, reader, gate, pub, testConfig(), 0, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Readings) != len(samples) {
		t.Fatalf("expected %d readings, got %d", len(samples), len(pub.Readings))
	}
	for i, r := range pub.Readings {
		if r.WaterLevel != 20 {
			t.Errorf("reading %d: expected water 20, got %.1f", i, r.WaterLevel)
		}
		if r.State != logic.StateNormal {
			t.Errorf("reading %d: expected state %s, got %s", i, logic.StateNormal, r.State)
		}
		if r.Human {
			t.Errorf("reading %d: expected Human=false", i)
		}
	}

	// Reading timestamps follow the injected clock.
	if !pub.Readings[1].Timestamp.After(pub.Readings[0].Timestamp) {
		t.Error("expected strictly increasing reading timestamps")
	}
}

func TestRunLoopSensorReadError(t *testing.T) {
	// 2 valid reads then 2 faults then 2 valid reads. Faulty cycles are
	// skipped entirely but the loop keeps running.
	inner := sensors.NewFakeReader(repeat(safeSample(), 4))
	reader := &faultReader{
		inner:      inner,
		faultStart: 2, // calls 2,3 return error
		faultEnd:   4,
	}
	gate := actuator.NewFakeGate()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 200*time.Millisecond)

	err := runRunLoop(t, reader, gate, pub, testConfig(), 0, clock, 6, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Readings) != 4 {
		t.Errorf("expected 4 readings (2 cycles skipped), got %d", len(pub.Readings))
	}
	if len(gate.Commands) != 4 {
		t.Errorf("expected 4 gate commands (2 cycles skipped), got %d", len(gate.Commands))
	}

	// SHUTDOWN should still be published
	found := false
	for _, se := range pub.SystemEvents {
		if se.Event == "SHUTDOWN" {
			found = true
		}
	}
	if !found {
		t.Error("expected SHUTDOWN system event after sensor errors")
	}
}

func TestRunLoopGateCommandErrorSurvives(t *testing.T) {
	// The actuator rejecting commands must not stop the loop or the
	// telemetry stream.
	samples := repeat(safeSample(), 3)
	reader := sensors.NewFakeReader(samples)
	gate := actuator.NewFakeGate()
	gate.SetError = fmt.Errorf("motor driver offline")
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 200*time.Millisecond)

	err := runRunLoop(t, reader, gate, pub, testConfig(), 0, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Readings) != len(samples) {
		t.Errorf("expected %d readings despite gate errors, got %d", len(samples), len(pub.Readings))
	}
}

func TestRunLoopPublishError(t *testing.T) {
	// A transition occurs but publishing fails — the loop should continue
	// and the gate must still be driven.
	samples := append(repeat(safeSample(), 2), repeat(floodSample(), 6)...)
	reader := sensors.NewFakeReader(samples)
	gate := actuator.NewFakeGate()
	pub := mqtt.NewFakePublisher()
	pub.PublishError = fmt.Errorf("broker unavailable")
	clock := fakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 200*time.Millisecond)

	err := runRunLoop(t, reader, gate, pub, testConfig(), 0, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(pub.Events))
	}
	if gate.Position() != logic.GateClosed {
		t.Errorf("expected gate closed despite publish errors, got %s", gate.Position())
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// 5 ticks at a 5-minute step with a 15-minute interval: exactly one
	// heartbeat fires (at +15m), the next would need +30m.
	samples := repeat(safeSample(), 5)
	reader := sensors.NewFakeReader(samples)
	gate := actuator.NewFakeGate()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)

	err := runRunLoop(t, reader, gate, pub, testConfig(), 15*time.Minute, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats, shutdowns int
	for _, se := range pub.SystemEvents {
		switch se.Event {
		case "HEARTBEAT":
			heartbeats++
		case "SHUTDOWN":
			shutdowns++
		}
	}
	if heartbeats != 1 {
		t.Errorf("expected 1 HEARTBEAT event, got %d", heartbeats)
	}
	if shutdowns != 1 {
		t.Errorf("expected 1 SHUTDOWN event, got %d", shutdowns)
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	samples := repeat(safeSample(), 2)
	reader := sensors.NewFakeReader(samples)
	gate := actuator.NewFakeGate()
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 200*time.Millisecond)

	err := runRunLoop(t, reader, gate, pub, testConfig(), 0, clock, len(samples), syscall.SIGINT)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	se := pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGINT" {
		t.Errorf("expected reason SIGINT, got %q", se.Reason)
	}
	if !se.Retained {
		t.Error("expected shutdown event to be retained")
	}
}
