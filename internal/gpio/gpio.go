// Package gpio provides the trigger button input and the heater and LED
// outputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Button reads the session trigger.
type Button interface {
	// Pressed returns the logical button level.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Output drives a single digital line, such as the heater or the LED.
type Output interface {
	Set(on bool) error
	Close() error
}

// Pin definitions (line offsets on the default chip)
const (
	PinButton = 10
	PinHeater = 3
	PinLED    = 7
)
