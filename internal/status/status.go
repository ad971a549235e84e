// Package status provides a thread-safe status tracker for the floodgate
// daemon. It is read by the HTTP monitoring endpoint and snapshotted into
// MQTT system event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/floodgate/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs           int64
	FloodConfirmMs   int64
	EntryDebounceMs  int64
	ClearanceDelayMs int64
	HeartbeatMs      int64
	Broker           string
	HTTPAddr         string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	Gate          logic.GateCommand
	Human         bool
	WaterLevel    float64
	Clearance     float64
	Turbulence    float64
	Counts        logic.TransitionCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateNormal,
			Gate:      logic.GateOpen,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the cycle outcome. Called from runLoop on every tick. The
// gate position is derived from the state, never passed separately.
func (t *Tracker) Update(state logic.State, human bool, sample logic.Sample, counts logic.TransitionCounts) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Gate = logic.GateFor(state)
	t.snap.Human = human
	t.snap.WaterLevel = sample.WaterLevel
	t.snap.Clearance = sample.Clearance
	t.snap.Turbulence = sample.Turbulence
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
