// Package mqtt provides telemetry publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/floodgate/internal/logic"
)

// TopicTelemetry carries one reading per control cycle.
const TopicTelemetry = "bridge/gate/telemetry"

// TopicEvents carries state transitions.
const TopicEvents = "bridge/gate/events"

// TopicSystem carries system lifecycle events.
const TopicSystem = "bridge/gate/system"

// Publisher publishes gate telemetry to MQTT.
type Publisher interface {
	// PublishReading sends one cycle's telemetry line. Returns error if
	// publishing fails (must not crash the control loop).
	PublishReading(r Reading) error

	// PublishEvent sends a state transition.
	PublishEvent(e Event) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(e SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Reading is one control cycle's telemetry snapshot.
type Reading struct {
	Timestamp  time.Time
	WaterLevel float64 // cm
	Clearance  float64 // cm
	Turbulence float64 // °/s
	Human      bool
	State      logic.State
}

// Event represents a state transition to be published.
type Event struct {
	Timestamp  time.Time
	Transition logic.Transition
	State      logic.State
	Gate       logic.GateCommand
	Human      bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ReadingPayload is the MQTT message payload for a telemetry reading.
type ReadingPayload struct {
	Gate ReadingInner `json:"gate"`
}

// ReadingInner contains the reading details. Human is 0/1 for downstream
// dashboards that graph it.
type ReadingInner struct {
	Timestamp     string  `json:"timestamp"`
	WaterCM       float64 `json:"water_cm"`
	ClearanceCM   float64 `json:"clearance_cm"`
	TurbulenceDPS float64 `json:"turbulence_dps"`
	Human         int     `json:"human"`
	State         string  `json:"state"`
}

// FormatReading creates the JSON payload for a telemetry reading.
func FormatReading(r Reading) ([]byte, error) {
	payload := ReadingPayload{
		Gate: ReadingInner{
			Timestamp:     r.Timestamp.UTC().Format(time.RFC3339),
			WaterCM:       r.WaterLevel,
			ClearanceCM:   r.Clearance,
			TurbulenceDPS: r.Turbulence,
			Human:         boolToFlag(r.Human),
			State:         string(r.State),
		},
	}
	return json.Marshal(payload)
}

// EventPayload is the MQTT message payload for a state transition.
type EventPayload struct {
	Gate EventInner `json:"gate"`
}

// EventInner contains the transition details.
type EventInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	State     string `json:"state"`
	Gate      string `json:"gate"`
	Human     int    `json:"human"`
}

// FormatEvent creates the JSON payload for a state transition.
func FormatEvent(e Event) ([]byte, error) {
	payload := EventPayload{
		Gate: EventInner{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(e.Transition),
			State:     string(e.State),
			Gate:      string(e.Gate),
			Human:     boolToFlag(e.Human),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message payload for simple system events that
// don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

func boolToFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
