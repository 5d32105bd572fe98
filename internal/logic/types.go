// Package logic contains pure business logic for the breathalyzer.
// This package has NO external dependencies (no GPIO, ADC, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State is a phase of the measurement session state machine.
type State string

const (
	StateIdle            State = "IDLE"
	StateHeating         State = "HEATING"
	StateBaselineCapture State = "BASELINE_CAPTURE"
	StateSampling        State = "SAMPLING"
	StateFinalizing      State = "FINALIZING"
)

// Termination records what ended the sampling window.
type Termination string

const (
	// TerminationWindow means the sampling window timer fired.
	TerminationWindow Termination = "WINDOW"
	// TerminationCap means the sample cap was reached before the window closed.
	TerminationCap Termination = "CAP"
)

// Result is the outcome of one completed measurement session.
type Result struct {
	SessionID   string
	Timestamp   time.Time
	Baseline    float64 // RS_air
	MaxPPM      float64
	BAC         float64
	Samples     int
	Termination Termination
}

// ButtonLevel is the debounced level of the trigger button.
type ButtonLevel string

const (
	LevelPressed  ButtonLevel = "PRESSED"
	LevelReleased ButtonLevel = "RELEASED"
)

// Input represents a single sample of the trigger button.
type Input struct {
	Pressed bool
	Time    time.Time
}

// ButtonState tracks debounce state for the trigger button.
type ButtonState struct {
	// Current stable (debounced) level
	Stable ButtonLevel
	// Pending level during debounce
	Pending ButtonLevel
	// Time when pending level was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}
