// Command floodgate runs the flood-responsive bridge gate controller:
// it polls the sensor suite at a fixed cadence, fuses presence signals,
// evaluates the safety state machine, drives the barrier, and publishes
// telemetry to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/floodgate/internal/actuator"
	"github.com/sweeney/floodgate/internal/config"
	"github.com/sweeney/floodgate/internal/logic"
	"github.com/sweeney/floodgate/internal/metrics"
	"github.com/sweeney/floodgate/internal/mqtt"
	"github.com/sweeney/floodgate/internal/sensors"
	"github.com/sweeney/floodgate/internal/status"
	"github.com/sweeney/floodgate/internal/web"
)

func main() {
	defaults := config.Default()

	configPath := flag.String("config", "", "YAML config file (flags override it)")
	poll := flag.Duration("poll", defaults.Timing.Poll(), "Sensor polling interval")
	broker := flag.String("broker", defaults.Broker, "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", defaults.Timing.Heartbeat(), "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", defaults.HTTPAddr, "HTTP monitoring address (empty to disable)")
	i2cBus := flag.String("i2c-bus", defaults.I2CBus, "I2C bus for the turbulence sensor")
	printSample := flag.Bool("print-sample", false, "Read one sensor sample, print it, and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	// Explicitly set flags win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.Timing.PollMs = int(poll.Milliseconds())
		case "broker":
			cfg.Broker = *broker
		case "heartbeat":
			cfg.Timing.HeartbeatMs = int(heartbeat.Milliseconds())
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "i2c-bus":
			cfg.I2CBus = *i2cBus
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := run(cfg, *printSample); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printSample bool) error {
	// Print-sample mode reads the sensor suite once and exits without
	// touching the actuator or the broker.
	if printSample {
		reader, err := sensors.NewRealReader(cfg.Pins.Sensor(), cfg.I2CBus)
		if err != nil {
			return fmt.Errorf("init sensors: %w", err)
		}
		defer reader.Close()
		s, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read sensors: %w", err)
		}
		fmt.Printf("water: %.1fcm, clearance: %.1fcm, turbulence: %.1f°/s, entry: %v, exit: %v\n",
			s.WaterLevel, s.Clearance, s.Turbulence, s.Entry, s.Exit)
		return nil
	}

	// The barrier opens before anything else: if startup dies half-way the
	// crossing must not be blocked.
	gate, err := actuator.NewRealGate(cfg.Pins.Motor())
	if err != nil {
		return fmt.Errorf("init actuator: %w", err)
	}
	defer gate.Close()
	if err := gate.Set(logic.GateOpen); err != nil {
		return fmt.Errorf("open gate at startup: %w", err)
	}
	log.Printf("gate commanded open for startup")

	reader, err := sensors.NewRealReader(cfg.Pins.Sensor(), cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("init sensors: %w", err)
	}
	defer reader.Close()

	publisher, err := mqtt.NewRealPublisher(cfg.Broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:           int64(cfg.Timing.PollMs),
		FloodConfirmMs:   int64(cfg.Timing.FloodConfirmMs),
		EntryDebounceMs:  int64(cfg.Timing.EntryDebounceMs),
		ClearanceDelayMs: int64(cfg.Timing.ClearanceDelayMs),
		HeartbeatMs:      int64(cfg.Timing.HeartbeatMs),
		Broker:           cfg.Broker,
		HTTPAddr:         cfg.HTTPAddr,
	})
	mtr := metrics.New()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP monitoring server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, mtr.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http monitoring server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: poll=%v confirm=%v broker=%s heartbeat=%v",
		cfg.Timing.Poll(), cfg.Timing.FloodConfirm(), cfg.Broker, cfg.Timing.Heartbeat())

	ticker := time.NewTicker(cfg.Timing.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(reader, gate, publisher, publisher, tracker, mtr, cfg, time.Now, ticker.C, sigCh)
}

func runLoop(reader sensors.Reader, gate actuator.Gate, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, mtr *metrics.Metrics, cfg config.Config, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	presence := logic.NewTracker(cfg.Timing.EntryDebounce(), cfg.Timing.ClearanceDelay(), cfg.Thresholds.PresenceHeightCM)
	machine := logic.NewMachine(cfg.Thresholds.Logic(), cfg.Timing.FloodConfirm(), startTime)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			sample, err := reader.Read()
			if err != nil {
				log.Printf("sensor read error: %v", err)
				continue
			}
			sample.Time = t

			human := presence.Update(sample.Entry, sample.Exit, sample.Clearance, t)
			d := machine.Evaluate(sample.WaterLevel, sample.Turbulence, human, t)

			// Re-command the position every cycle so a missed command or a
			// manually moved barrier is corrected within one cadence.
			if err := gate.Set(d.Gate); err != nil {
				log.Printf("gate command error: %v", err)
			}

			if d.Transition != "" {
				log.Printf("event: %s (state=%s gate=%s human=%v water=%.1fcm turbulence=%.1f°/s)",
					d.Transition, d.State, d.Gate, human, sample.WaterLevel, sample.Turbulence)
				event := mqtt.Event{
					Timestamp:  t,
					Transition: d.Transition,
					State:      d.State,
					Gate:       d.Gate,
					Human:      human,
				}
				if err := publisher.PublishEvent(event); err != nil {
					log.Printf("event publish error: %v", err)
					// Don't crash on publish failure
				}
				if mtr != nil {
					mtr.ObserveTransition(d.Transition)
				}
			}

			reading := mqtt.Reading{
				Timestamp:  t,
				WaterLevel: sample.WaterLevel,
				Clearance:  sample.Clearance,
				Turbulence: sample.Turbulence,
				Human:      human,
				State:      d.State,
			}
			if err := publisher.PublishReading(reading); err != nil {
				log.Printf("telemetry publish error: %v", err)
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				tracker.Update(d.State, human, sample, machine.Counts())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
			if mtr != nil {
				mtr.ObserveCycle(sample, human, d)
			}

			// Check for heartbeat
			if hbData := machine.CheckHeartbeat(t, cfg.Timing.Heartbeat()); hbData != nil {
				log.Printf("heartbeat: uptime=%v state=%s alerts=%d closures=%d emergencies=%d all_clears=%d",
					hbData.Uptime, hbData.State, hbData.Counts.Alerts, hbData.Counts.Closures,
					hbData.Counts.Emergencies, hbData.Counts.AllClears)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}
