// Package config loads daemon configuration from an optional YAML file
// layered over built-in defaults. Command-line flags override the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/floodgate/internal/actuator"
	"github.com/sweeney/floodgate/internal/logic"
	"github.com/sweeney/floodgate/internal/sensors"
)

// Config is the full daemon configuration.
type Config struct {
	Broker     string     `yaml:"broker"`
	HTTPAddr   string     `yaml:"http_addr"`
	I2CBus     string     `yaml:"i2c_bus"`
	Timing     Timing     `yaml:"timing"`
	Thresholds Thresholds `yaml:"thresholds"`
	Pins       Pins       `yaml:"pins"`
}

// Timing holds the loop cadence and decision windows, in milliseconds.
type Timing struct {
	PollMs           int `yaml:"poll_ms"`
	FloodConfirmMs   int `yaml:"flood_confirm_ms"`
	EntryDebounceMs  int `yaml:"entry_debounce_ms"`
	ClearanceDelayMs int `yaml:"clearance_delay_ms"`
	HeartbeatMs      int `yaml:"heartbeat_ms"`
}

func (t Timing) Poll() time.Duration           { return time.Duration(t.PollMs) * time.Millisecond }
func (t Timing) FloodConfirm() time.Duration   { return time.Duration(t.FloodConfirmMs) * time.Millisecond }
func (t Timing) EntryDebounce() time.Duration  { return time.Duration(t.EntryDebounceMs) * time.Millisecond }
func (t Timing) ClearanceDelay() time.Duration { return time.Duration(t.ClearanceDelayMs) * time.Millisecond }
func (t Timing) Heartbeat() time.Duration      { return time.Duration(t.HeartbeatMs) * time.Millisecond }

// Thresholds holds the flood and presence boundaries.
type Thresholds struct {
	CloseCM          float64 `yaml:"close_cm"`
	OpenCM           float64 `yaml:"open_cm"`
	FlowDPS          float64 `yaml:"flow_dps"`
	PresenceHeightCM float64 `yaml:"presence_height_cm"`
}

// Logic converts to the core package's threshold type.
func (t Thresholds) Logic() logic.Thresholds {
	return logic.Thresholds{Close: t.CloseCM, Open: t.OpenCM, Flow: t.FlowDPS}
}

// Pins holds the GPIO wiring (BCM numbering).
type Pins struct {
	WaterTrig int `yaml:"water_trig"`
	WaterEcho int `yaml:"water_echo"`
	ClearTrig int `yaml:"clear_trig"`
	ClearEcho int `yaml:"clear_echo"`
	EntryBeam int `yaml:"entry_beam"`
	ExitBeam  int `yaml:"exit_beam"`
	MotorA    int `yaml:"motor_a"`
	MotorB    int `yaml:"motor_b"`
}

// Sensor converts to the sensor package's pin type.
func (p Pins) Sensor() sensors.Pins {
	return sensors.Pins{
		WaterTrig: p.WaterTrig,
		WaterEcho: p.WaterEcho,
		ClearTrig: p.ClearTrig,
		ClearEcho: p.ClearEcho,
		EntryBeam: p.EntryBeam,
		ExitBeam:  p.ExitBeam,
	}
}

// Motor converts to the actuator package's pin type.
func (p Pins) Motor() actuator.MotorPins {
	return actuator.MotorPins{MotorA: p.MotorA, MotorB: p.MotorB}
}

// Default returns the production configuration: the calibrated thresholds
// and windows from the logic package and the default wiring.
func Default() Config {
	sp := sensors.DefaultPins()
	mp := actuator.DefaultMotorPins()
	return Config{
		Broker:   "tcp://192.168.1.200:1883",
		HTTPAddr: ":8080",
		I2CBus:   sensors.DefaultI2CBus,
		Timing: Timing{
			PollMs:           200,
			FloodConfirmMs:   int(logic.FloodConfirm / time.Millisecond),
			EntryDebounceMs:  int(logic.EntryDebounce / time.Millisecond),
			ClearanceDelayMs: int(logic.ClearanceDelay / time.Millisecond),
			HeartbeatMs:      int(15 * time.Minute / time.Millisecond),
		},
		Thresholds: Thresholds{
			CloseCM:          logic.CloseThreshold,
			OpenCM:           logic.OpenThreshold,
			FlowDPS:          logic.FlowThreshold,
			PresenceHeightCM: logic.PresenceHeight,
		},
		Pins: Pins{
			WaterTrig: sp.WaterTrig,
			WaterEcho: sp.WaterEcho,
			ClearTrig: sp.ClearTrig,
			ClearEcho: sp.ClearEcho,
			EntryBeam: sp.EntryBeam,
			ExitBeam:  sp.ExitBeam,
			MotorA:    mp.MotorA,
			MotorB:    mp.MotorB,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path, if any.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the control loop cannot run safely with.
func (c Config) Validate() error {
	if c.Timing.PollMs <= 0 {
		return fmt.Errorf("poll_ms must be positive, got %d", c.Timing.PollMs)
	}
	if c.Timing.FloodConfirmMs <= 0 {
		return fmt.Errorf("flood_confirm_ms must be positive, got %d", c.Timing.FloodConfirmMs)
	}
	if c.Timing.EntryDebounceMs <= 0 {
		return fmt.Errorf("entry_debounce_ms must be positive, got %d", c.Timing.EntryDebounceMs)
	}
	if c.Timing.ClearanceDelayMs <= 0 {
		return fmt.Errorf("clearance_delay_ms must be positive, got %d", c.Timing.ClearanceDelayMs)
	}
	if c.Thresholds.OpenCM <= c.Thresholds.CloseCM {
		// Without the hysteresis gap the gate chatters at the boundary.
		return fmt.Errorf("open_cm (%v) must exceed close_cm (%v)", c.Thresholds.OpenCM, c.Thresholds.CloseCM)
	}
	if c.Thresholds.FlowDPS <= 0 {
		return fmt.Errorf("flow_dps must be positive, got %v", c.Thresholds.FlowDPS)
	}
	if c.Thresholds.PresenceHeightCM <= 0 {
		return fmt.Errorf("presence_height_cm must be positive, got %v", c.Thresholds.PresenceHeightCM)
	}
	if c.Broker == "" {
		return fmt.Errorf("broker must be set")
	}
	return nil
}
