package logic

import "time"

// Thresholds holds the flood detection boundaries. Close must be below
// Open; the gap between them is the hysteresis dead band.
type Thresholds struct {
	Close float64 // cm, water distance below this is flood
	Open  float64 // cm, water distance above this is receded
	Flow  float64 // °/s, turbulence above this is violent flow
}

// DefaultThresholds returns the calibrated production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Close: CloseThreshold, Open: OpenThreshold, Flow: FlowThreshold}
}

// Flood reports whether the inputs indicate a flood: water high OR flow
// violent. A fail-safe distance substitution can never satisfy it.
func (th Thresholds) Flood(water, turbulence float64) bool {
	return water < th.Close || turbulence > th.Flow
}

// Clear reports whether the inputs indicate receded, calm water. Both
// halves must hold, and the turbulence bar is half the flood bar so flow
// must genuinely settle before the machine relaxes.
func (th Thresholds) Clear(water, turbulence float64) bool {
	return water > th.Open && turbulence < th.Flow/2
}

// Machine is the sole authority over gate position. It consumes water
// level, turbulence, and the fused human-present fact once per cycle and
// owns nothing but its state and the time the state was entered.
//
// Human presence overrides flood response unconditionally: no reachable
// path closes the gate while a person is on the structure.
type Machine struct {
	th      Thresholds
	confirm time.Duration

	state      State
	stateEntry time.Time

	startTime     time.Time
	counts        TransitionCounts
	lastHeartbeat time.Time
}

// NewMachine creates a state machine in StateNormal. The startTime is used
// for uptime in heartbeat events.
func NewMachine(th Thresholds, confirm time.Duration, startTime time.Time) *Machine {
	return &Machine{
		th:            th,
		confirm:       confirm,
		state:         StateNormal,
		stateEntry:    startTime,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Evaluate runs one cycle of the transition table and returns the resulting
// state and gate command. Within FloodAlert the confirmation branches are
// checked before the clear branch; at most one branch fires per cycle.
func (m *Machine) Evaluate(water, turbulence float64, humanPresent bool, now time.Time) Decision {
	flood := m.th.Flood(water, turbulence)
	clear := m.th.Clear(water, turbulence)

	prev := m.state
	switch m.state {
	case StateNormal:
		if flood {
			m.enter(StateFloodAlert, now)
		}

	case StateFloodAlert:
		confirmed := now.Sub(m.stateEntry) > m.confirm
		switch {
		case confirmed && humanPresent:
			m.enter(StateEmergencyOpen, now)
		case confirmed:
			m.enter(StateFloodActive, now)
		case clear:
			m.enter(StateNormal, now)
		}

	case StateFloodActive:
		switch {
		case humanPresent:
			m.enter(StateEmergencyOpen, now)
		case clear:
			m.enter(StateNormal, now)
		}

	case StateEmergencyOpen:
		if clear && !humanPresent {
			m.enter(StateNormal, now)
		}
	}

	d := Decision{State: m.state, Gate: GateFor(m.state)}
	if m.state != prev {
		d.Transition = transitionFor(m.state)
		m.count(d.Transition)
	}
	return d
}

func (m *Machine) enter(s State, now time.Time) {
	m.state = s
	m.stateEntry = now
}

func (m *Machine) count(tr Transition) {
	switch tr {
	case TransitionAlert:
		m.counts.Alerts++
	case TransitionClosed:
		m.counts.Closures++
	case TransitionEmergency:
		m.counts.Emergencies++
	case TransitionAllClear:
		m.counts.AllClears++
	}
}

// transitionFor labels arrival in a state. Every state has exactly one
// label regardless of where the machine came from.
func transitionFor(to State) Transition {
	switch to {
	case StateFloodAlert:
		return TransitionAlert
	case StateFloodActive:
		return TransitionClosed
	case StateEmergencyOpen:
		return TransitionEmergency
	default:
		return TransitionAllClear
	}
}

// GateFor derives the commanded position from a state: the gate is closed
// exactly when the machine is in FloodActive. Keeping this the single
// source of truth means the actuator command and the reported state can
// never disagree.
func GateFor(s State) GateCommand {
	if s == StateFloodActive {
		return GateClosed
	}
	return GateOpen
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Gate returns the gate command implied by the current state.
func (m *Machine) Gate() GateCommand {
	return GateFor(m.state)
}

// Counts returns a snapshot of the transition counters.
func (m *Machine) Counts() TransitionCounts {
	return m.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since
// the last heartbeat (or startup). Returns nil if the interval has not
// elapsed or if interval is <= 0 (disabled).
func (m *Machine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}
	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		State:     m.state,
		Counts:    m.counts,
	}
}
