package gpio

import (
	"errors"
	"sync"
)

// FakeButton is a test double that returns scripted button levels.
type FakeButton struct {
	mu sync.Mutex

	// Levels contains scripted button levels.
	// Each call to Pressed() consumes the next level.
	Levels []bool

	// index tracks current position in Levels
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Pressed()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given levels.
func NewFakeButton(levels ...bool) *FakeButton {
	return &FakeButton{Levels: levels}
}

// Pressed returns the next scripted level.
// If levels are exhausted, returns the last level repeatedly.
func (f *FakeButton) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Levels) == 0 {
		return false, errors.New("no levels configured")
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}

	return level, nil
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset rewinds the button to the first level.
func (f *FakeButton) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Closed = false
}

// FakeOutput records every level it is driven to.
type FakeOutput struct {
	mu sync.Mutex

	// History holds every value passed to Set, in order.
	History []bool

	// SetError, if set, will be returned by Set()
	SetError error

	Closed bool
}

// Set records the level.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.History = append(f.History, on)
	return nil
}

// On reports the current level.
func (f *FakeOutput) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.History) > 0 && f.History[len(f.History)-1]
}

// Transitions returns a copy of History.
func (f *FakeOutput) Transitions() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.History))
	copy(out, f.History)
	return out
}

// Close drives the output low and marks it closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.History = append(f.History, false)
	f.Closed = true
	return nil
}
