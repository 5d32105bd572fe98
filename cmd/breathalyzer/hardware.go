package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/sweeney/breathalyzer/internal/config"
	"github.com/sweeney/breathalyzer/internal/feedback"
	"github.com/sweeney/breathalyzer/internal/gpio"
	"github.com/sweeney/breathalyzer/internal/sensor"
)

// Simulated clean-air level and noise, in mV at the ADC input.
const (
	simAirMV   = 1000
	simNoiseMV = 20
)

// hardware bundles the peripherals a session needs.
type hardware struct {
	button gpio.Button
	heater gpio.Output
	led    gpio.Output
	tone   feedback.Tone
	adc    sensor.ADC
	sim    *sensor.Simulation // nil unless sensor.type is simulation

	closers []io.Closer
}

// Close releases every opened peripheral, last opened first.
func (h *hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

func (h *hardware) track(c io.Closer) {
	h.closers = append(h.closers, c)
}

// openHardware opens the GPIO lines, the buzzer and the ADC, or simulated
// stand-ins when the sensor type is simulation.
func openHardware(cfg *config.Config) (*hardware, error) {
	if cfg.Sensor.Type == config.SensorSimulation {
		sim := sensor.NewSimulation(simAirMV, simNoiseMV, time.Now().UnixNano())
		log.Printf("hardware: simulation mode, trigger sessions with SIGUSR1")
		return &hardware{
			button: simButton{},
			heater: &simOutput{name: "heater"},
			led:    &simOutput{name: "led"},
			tone:   simTone{},
			adc:    sim,
			sim:    sim,
		}, nil
	}

	h := &hardware{}
	fail := func(err error) (*hardware, error) {
		if cerr := h.Close(); cerr != nil {
			log.Printf("hardware: cleanup: %v", cerr)
		}
		return nil, err
	}

	button, err := gpio.NewRealButton(cfg.GPIO.Chip, cfg.GPIO.Button, cfg.GPIO.ButtonActiveLow)
	if err != nil {
		return fail(fmt.Errorf("init button: %w", err))
	}
	h.button = button
	h.track(button)

	heater, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.Heater, "breathalyzer-heater")
	if err != nil {
		return fail(fmt.Errorf("init heater: %w", err))
	}
	h.heater = heater
	h.track(heater)

	led, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.LED, "breathalyzer-led")
	if err != nil {
		return fail(fmt.Errorf("init led: %w", err))
	}
	h.led = led
	h.track(led)

	buzzer, err := feedback.NewPWMBuzzer(cfg.Buzzer.Pin)
	if err != nil {
		return fail(fmt.Errorf("init buzzer: %w", err))
	}
	h.tone = buzzer
	h.track(buzzer)

	adc, err := sensor.NewADS1115(cfg.Sensor)
	if err != nil {
		return fail(fmt.Errorf("init adc: %w", err))
	}
	h.adc = adc
	h.track(adc)

	return h, nil
}

// simButton is never pressed.
type simButton struct{}

func (simButton) Pressed() (bool, error) { return false, nil }
func (simButton) Close() error           { return nil }

// simOutput logs level changes instead of driving a line.
type simOutput struct {
	name string

	mu sync.Mutex
	on bool
}

func (o *simOutput) Set(on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if on != o.on {
		log.Printf("hardware: %s %s", o.name, onOff(on))
	}
	o.on = on
	return nil
}

func (o *simOutput) Close() error { return nil }

type simTone struct{}

func (simTone) On(int) error { return nil }
func (simTone) Off() error   { return nil }

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
