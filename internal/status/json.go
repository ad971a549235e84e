package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	State         string     `json:"state"`
	Gate          string     `json:"gate"`
	Human         int        `json:"human"`
	WaterCM       float64    `json:"water_cm"`
	ClearanceCM   float64    `json:"clearance_cm"`
	TurbulenceDPS float64    `json:"turbulence_dps"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"transition_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	Alerts      int `json:"alerts"`
	Closures    int `json:"closures"`
	Emergencies int `json:"emergencies"`
	AllClears   int `json:"all_clears"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs           int64  `json:"poll_ms"`
	FloodConfirmMs   int64  `json:"flood_confirm_ms"`
	EntryDebounceMs  int64  `json:"entry_debounce_ms"`
	ClearanceDelayMs int64  `json:"clearance_delay_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	human := 0
	if snap.Human {
		human = 1
	}

	return StatusInner{
		State:         string(snap.State),
		Gate:          string(snap.Gate),
		Human:         human,
		WaterCM:       snap.WaterLevel,
		ClearanceCM:   snap.Clearance,
		TurbulenceDPS: snap.Turbulence,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Alerts:      snap.Counts.Alerts,
			Closures:    snap.Counts.Closures,
			Emergencies: snap.Counts.Emergencies,
			AllClears:   snap.Counts.AllClears,
		},
		Config: ConfigJSON{
			PollMs:           snap.Config.PollMs,
			FloodConfirmMs:   snap.Config.FloodConfirmMs,
			EntryDebounceMs:  snap.Config.EntryDebounceMs,
			ClearanceDelayMs: snap.Config.ClearanceDelayMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
}

// FormatStatus renders a snapshot as JSON for the HTTP endpoint.
func FormatStatus(snap Snapshot) []byte {
	out, err := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	if err != nil {
		// The snapshot is plain data; marshaling cannot realistically fail.
		return []byte(`{"status":{}}`)
	}
	return out
}

// FormatStatusEvent renders a snapshot as the payload for an MQTT system
// event (STARTUP, SHUTDOWN, HEARTBEAT), tagging it with the event name and
// optional reason.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	out, err := json.Marshal(StatusJSON{Status: inner})
	if err != nil {
		return []byte(`{"status":{}}`)
	}
	return out
}
