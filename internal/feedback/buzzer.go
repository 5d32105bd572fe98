package feedback

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PWMBuzzer drives a passive buzzer with a 50% duty PWM signal.
type PWMBuzzer struct {
	mu  sync.Mutex
	pin gpio.PinIO
}

// NewPWMBuzzer opens the named pin (for example "GPIO12") and drives it low.
func NewPWMBuzzer(name string) (*PWMBuzzer, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("buzzer pin %q not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("buzzer pin %q: %w", name, err)
	}
	return &PWMBuzzer{pin: pin}, nil
}

// On starts a square wave at hz. hz 0 silences the buzzer.
func (b *PWMBuzzer) On(hz int) error {
	if hz <= 0 {
		return b.Off()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.pin.PWM(gpio.DutyHalf, physic.Frequency(hz)*physic.Hertz); err != nil {
		return fmt.Errorf("buzzer pwm %d Hz: %w", hz, err)
	}
	return nil
}

// Off stops the square wave.
func (b *PWMBuzzer) Off() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("buzzer off: %w", err)
	}
	return nil
}

// Close silences the buzzer and releases the pin.
func (b *PWMBuzzer) Close() error {
	if err := b.Off(); err != nil {
		return err
	}
	return b.pin.Halt()
}
