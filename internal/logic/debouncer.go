package logic

import "time"

// Debouncer debounces the trigger button and reports presses.
// A press is a stable RELEASED -> PRESSED transition seen after the
// baseline level is established, so a button held down at startup never
// starts a session.
type Debouncer struct {
	debounceDuration time.Duration
	button           ButtonState
	presses          int
}

// NewDebouncer creates a debouncer with the given debounce duration.
func NewDebouncer(debounceDuration time.Duration) *Debouncer {
	return &Debouncer{debounceDuration: debounceDuration}
}

// Process takes a new input sample and reports whether it completes a press.
func (d *Debouncer) Process(input Input) bool {
	level := boolToLevel(input.Pressed)
	b := &d.button

	// First time seeing the button
	if !b.Baselined {
		if b.Pending != level {
			// Start observing, or level changed during baseline: restart
			b.Pending = level
			b.PendingSince = input.Time
		}
		if input.Time.Sub(b.PendingSince) >= d.debounceDuration {
			b.Stable = level
			b.Baselined = true
			b.Pending = ""
		}
		return false
	}

	if level == b.Stable {
		b.Pending = ""
		return false
	}

	if b.Pending != level {
		b.Pending = level
		b.PendingSince = input.Time
	}

	if input.Time.Sub(b.PendingSince) < d.debounceDuration {
		return false
	}

	b.Stable = level
	b.Pending = ""
	if level != LevelPressed {
		return false
	}
	d.presses++
	return true
}

// IsBaselined returns whether the debouncer has established a baseline.
func (d *Debouncer) IsBaselined() bool {
	return d.button.Baselined
}

// Level returns the current stable level.
func (d *Debouncer) Level() ButtonLevel {
	return d.button.Stable
}

// Presses returns the number of presses reported since startup.
func (d *Debouncer) Presses() int {
	return d.presses
}

func boolToLevel(pressed bool) ButtonLevel {
	if pressed {
		return LevelPressed
	}
	return LevelReleased
}
