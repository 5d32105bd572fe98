package sensor

import (
	"errors"
	"sync"
)

// FakeADC is a test double that returns scripted readings.
type FakeADC struct {
	mu sync.Mutex

	// Readings contains scripted readings. Each call to Read consumes the
	// next one; once exhausted the last reading repeats.
	Readings []Reading

	// FailAt, if >= 0, makes the read with that index return ReadError.
	FailAt int

	// ReadError is returned by Read when set and FailAt is negative, or at FailAt.
	ReadError error

	index  int
	Reads  int
	Closed bool
}

// NewFakeADC creates a FakeADC returning calibrated readings of the given voltages.
func NewFakeADC(voltagesMV ...int) *FakeADC {
	readings := make([]Reading, len(voltagesMV))
	for i, mv := range voltagesMV {
		readings[i] = Reading{Raw: mv, VoltageMV: mv, Calibrated: true}
	}
	return &FakeADC{Readings: readings, FailAt: -1}
}

// Read returns the next scripted reading.
func (f *FakeADC) Read() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.Reads
	f.Reads++

	if f.ReadError != nil && (f.FailAt < 0 || f.FailAt == n) {
		return Reading{}, f.ReadError
	}
	if len(f.Readings) == 0 {
		return Reading{}, errors.New("no readings configured")
	}

	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}

// Close marks the ADC as closed.
func (f *FakeADC) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
