// Package logic contains the decision core for the flood gate: presence
// fusion and the safety state machine. This package has NO external
// dependencies (no GPIO, MQTT, OS, or time.Sleep). Time is always
// injectable via time.Time parameters.
package logic

import "time"

// State identifies the safety state machine's mode.
type State string

const (
	StateNormal        State = "NORMAL"
	StateFloodAlert    State = "FLOOD_ALERT"
	StateFloodActive   State = "FLOOD_ACTIVE"
	StateEmergencyOpen State = "EMERGENCY_OPEN"
)

// GateCommand is the commanded barrier position. It is always derived from
// the current State (see GateFor), never stored on its own.
type GateCommand string

const (
	GateOpen   GateCommand = "OPEN"
	GateClosed GateCommand = "CLOSED"
)

// Distance and turbulence thresholds. Water readings are distances from the
// sensor down to the surface, so a smaller value means higher water.
const (
	// CloseThreshold is the water distance below which the crossing counts
	// as flooded.
	CloseThreshold = 10.0 // cm

	// OpenThreshold is the water distance above which water counts as
	// receded. The 3 cm gap to CloseThreshold is the hysteresis dead band:
	// readings between the two are neither flood nor clear.
	OpenThreshold = 13.0 // cm

	// FlowThreshold is the angular-rate magnitude treated as violent flow.
	FlowThreshold = 15.0 // °/s

	// PresenceHeight is the overhead clearance below which something is
	// standing on the structure.
	PresenceHeight = 100.0 // cm

	// FailSafeDistance substitutes for a timed-out or implausible ranging
	// read. It exceeds OpenThreshold, so a dead sensor can never read as
	// flood and the gate stays open.
	FailSafeDistance = 999.0 // cm
)

// Timing windows.
const (
	// EntryDebounce is the minimum gap between accepted beam events, so one
	// person lingering in a beam's field registers once.
	EntryDebounce = 2 * time.Second

	// ClearanceDelay is the grace period between an accepted exit event and
	// the structure being considered empty.
	ClearanceDelay = 5 * time.Second

	// FloodConfirm is how long a flood condition must hold in FloodAlert
	// before the machine acts on it. Transient splashes resolve within it.
	FloodConfirm = 3 * time.Second
)

// Sample is one control cycle's sensor snapshot. It is created fresh each
// cycle and not retained.
type Sample struct {
	WaterLevel float64 // cm down to the water surface
	Clearance  float64 // cm down to the deck from the overhead sensor
	Turbulence float64 // °/s
	Entry      bool    // entry-side beam broken
	Exit       bool    // exit-side beam broken
	Time       time.Time
}

// Transition labels a state change for telemetry.
type Transition string

const (
	TransitionAlert     Transition = "FLOOD_ALERT"
	TransitionClosed    Transition = "GATE_CLOSED"
	TransitionEmergency Transition = "EMERGENCY_OPEN"
	TransitionAllClear  Transition = "ALL_CLEAR"
)

// Decision is the state machine's output for one cycle.
type Decision struct {
	State State
	Gate  GateCommand
	// Transition is non-empty only on the cycle the state changed.
	Transition Transition
}

// TransitionCounts tracks the number of each transition since startup.
type TransitionCounts struct {
	Alerts      int
	Closures    int
	Emergencies int
	AllClears   int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     State
	Counts    TransitionCounts
}
