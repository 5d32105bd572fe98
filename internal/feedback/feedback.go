// Package feedback plays the start-of-session melody on a buzzer while
// blinking the indicator LED in step with each note.
package feedback

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Tone drives a buzzer.
type Tone interface {
	On(hz int) error
	Off() error
}

// Indicator drives a single on/off light.
type Indicator interface {
	Set(on bool) error
}

// Note is one melody step. Fraction is the note value: 4 is a quarter note,
// lasting 1000/4 ms. Hz 0 is a rest.
type Note struct {
	Hz       int
	Fraction int
}

// Duration returns how long the note sounds.
func (n Note) Duration() time.Duration {
	if n.Fraction <= 0 {
		return 0
	}
	return time.Duration(1000/n.Fraction) * time.Millisecond
}

// Gap returns the silence that follows the note.
func (n Note) Gap() time.Duration {
	return n.Duration() * 130 / 100
}

// DefaultMelody is played at the start of every session.
var DefaultMelody = []Note{
	{Hz: 262, Fraction: 4},
	{Hz: 330, Fraction: 8},
	{Hz: 392, Fraction: 8},
	{Hz: 523, Fraction: 4},
	{Hz: 0, Fraction: 8},
	{Hz: 392, Fraction: 8},
	{Hz: 523, Fraction: 2},
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sequencer plays a melody on a Tone and Indicator.
type Sequencer struct {
	tone      Tone
	indicator Indicator
	melody    []Note
	sleep     SleepFunc
}

// NewSequencer creates a Sequencer. A nil sleep uses wall-clock time.
func NewSequencer(tone Tone, indicator Indicator, melody []Note, sleep SleepFunc) *Sequencer {
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Sequencer{tone: tone, indicator: indicator, melody: melody, sleep: sleep}
}

// Length returns the total time Play takes when not cancelled.
func (s *Sequencer) Length() time.Duration {
	var total time.Duration
	for _, n := range s.melody {
		total += n.Duration() + n.Gap()
	}
	return total
}

// Play runs the melody once. When ctx is cancelled the tone and indicator
// are switched off and ctx.Err() is returned.
func (s *Sequencer) Play(ctx context.Context) error {
	for i, n := range s.melody {
		if err := s.step(ctx, n); err != nil {
			s.silence()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("note %d: %w", i, err)
		}
	}
	return nil
}

func (s *Sequencer) step(ctx context.Context, n Note) error {
	if err := s.indicator.Set(true); err != nil {
		return err
	}
	if n.Hz > 0 {
		if err := s.tone.On(n.Hz); err != nil {
			return err
		}
	}
	if err := s.sleep(ctx, n.Duration()); err != nil {
		return err
	}
	if err := s.tone.Off(); err != nil {
		return err
	}
	if err := s.indicator.Set(false); err != nil {
		return err
	}
	return s.sleep(ctx, n.Gap())
}

func (s *Sequencer) silence() {
	if err := s.tone.Off(); err != nil {
		log.Printf("feedback: tone off: %v", err)
	}
	if err := s.indicator.Set(false); err != nil {
		log.Printf("feedback: indicator off: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
