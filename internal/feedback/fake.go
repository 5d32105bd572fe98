package feedback

import "sync"

// ToneEvent records one call on a FakeTone. Hz is 0 for Off.
type ToneEvent struct {
	Hz int
}

// FakeTone records buzzer calls.
type FakeTone struct {
	mu     sync.Mutex
	Events []ToneEvent
	OnErr  error
	active bool
}

// On records a tone start.
func (f *FakeTone) On(hz int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OnErr != nil {
		return f.OnErr
	}
	f.Events = append(f.Events, ToneEvent{Hz: hz})
	f.active = true
	return nil
}

// Off records a tone stop.
func (f *FakeTone) Off() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, ToneEvent{})
	f.active = false
	return nil
}

// Active reports whether a tone is sounding.
func (f *FakeTone) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Played returns the frequencies passed to On, in order.
func (f *FakeTone) Played() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hz []int
	for _, e := range f.Events {
		if e.Hz > 0 {
			hz = append(hz, e.Hz)
		}
	}
	return hz
}

// FakeIndicator records LED levels.
type FakeIndicator struct {
	mu     sync.Mutex
	Levels []bool
}

// Set records a level.
func (f *FakeIndicator) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Levels = append(f.Levels, on)
	return nil
}

// On reports the last level set.
func (f *FakeIndicator) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Levels) == 0 {
		return false
	}
	return f.Levels[len(f.Levels)-1]
}
