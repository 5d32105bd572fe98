//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealButton reads the trigger button from the GPIO character device.
type RealButton struct {
	line *gpiocdev.Line
}

// NewRealButton requests the button line as an input. With activeLow the
// line is pulled up and a low level reads as pressed.
func NewRealButton(chip string, offset int, activeLow bool) (*RealButton, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer("breathalyzer")}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}
	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request button pin %d: %w", offset, err)
	}
	return &RealButton{line: line}, nil
}

// Pressed returns true while the button is held.
func (b *RealButton) Pressed() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == 1, nil
}

// Close releases the button line.
func (b *RealButton) Close() error {
	if b.line == nil {
		return nil
	}
	if err := b.line.Close(); err != nil {
		return fmt.Errorf("close button pin: %w", err)
	}
	return nil
}

// RealOutput drives one output line.
type RealOutput struct {
	mu     sync.Mutex
	name   string
	offset int
	line   *gpiocdev.Line
}

// NewRealOutput requests the line as an output, initially low.
func NewRealOutput(chip string, offset int, name string) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("breathalyzer"))
	if err != nil {
		return nil, fmt.Errorf("request %s pin %d: %w", name, offset, err)
	}
	return &RealOutput{name: name, offset: offset, line: line}, nil
}

// Set drives the line high when on.
func (o *RealOutput) Set(on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set %s pin %d: %w", o.name, o.offset, err)
	}
	return nil
}

// Close drives the line low, then reconfigures it as an input with pull-down
// (matching Pi boot defaults) so the heater cannot stay powered after exit.
func (o *RealOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	if o.line != nil {
		if err := o.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive %s low: %w", o.name, err))
		}
		if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", o.name, err))
		}
		if err := o.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", o.name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
