// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/breathalyzer/internal/logic"
)

// Topic is the MQTT topic for measurement results.
const Topic = "breathalyzer/measurements"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "breathalyzer/system"

// Publisher publishes session results to MQTT.
type Publisher interface {
	// Publish sends a measurement result to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(result logic.Result) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "FAULT"
	Reason     string // e.g., "SIGTERM", or the fault message
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a measurement.
type Payload struct {
	Measurement MeasurementPayload `json:"measurement"`
}

// MeasurementPayload contains the session result.
type MeasurementPayload struct {
	SessionID   string  `json:"session_id"`
	Timestamp   string  `json:"timestamp"`
	BaselineRS  float64 `json:"baseline_rs_air"`
	MaxPPM      float64 `json:"max_ppm"`
	BAC         float64 `json:"bac"`
	Samples     int     `json:"samples"`
	Termination string  `json:"termination"`
}

// FormatPayload creates the JSON payload for a measurement result.
func FormatPayload(result logic.Result) ([]byte, error) {
	payload := Payload{
		Measurement: MeasurementPayload{
			SessionID:   result.SessionID,
			Timestamp:   result.Timestamp.UTC().Format(time.RFC3339),
			BaselineRS:  result.Baseline,
			MaxPPM:      result.MaxPPM,
			BAC:         result.BAC,
			Samples:     result.Samples,
			Termination: string(result.Termination),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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

// Discard is a Publisher that drops everything. It is used when no broker
// is configured.
var Discard = discard{}

type discard struct{}

func (discard) Publish(logic.Result) error      { return nil }
func (discard) PublishSystem(SystemEvent) error { return nil }
func (discard) Close() error                    { return nil }
func (discard) IsConnected() bool               { return false }
