// Package sensor reads the MQ-303A alcohol sensor through an ADC and converts
// voltages into sensor resistance.
package sensor

import (
	"context"
	"errors"
	"fmt"
)

// Reading is one ADC acquisition.
type Reading struct {
	Raw        int  `json:"raw"`
	VoltageMV  int  `json:"voltage_mv"`
	Calibrated bool `json:"calibrated"` // VoltageMV is meaningless when false
}

// ADC acquires readings from the sensor's analog channel.
type ADC interface {
	Read() (Reading, error)
	Close() error
}

// Electrical front end: the sensor output (0-5 V) is halved by a divider so
// that the ADC sees at most 2.5 V.
const (
	SupplyVolts   = 5.0
	ADCRangeVolts = 2.5
)

var (
	// ErrSaturated means the sensor output reached the supply rail and
	// Rs/RL diverges.
	ErrSaturated = errors.New("sensor saturated")
	// ErrNegativeVoltage means the ADC reported a voltage below ground.
	ErrNegativeVoltage = errors.New("negative sensor voltage")
	// ErrUncalibrated means the ADC could not convert raw counts to mV.
	ErrUncalibrated = errors.New("reading not calibrated")
	// ErrZeroBaseline means the clean-air resistance came out as zero.
	ErrZeroBaseline = errors.New("baseline resistance is zero")
)

// Baseline is the clean-air resistance proxy RS_air.
type Baseline struct {
	RSAir     float64
	VoltageMV int // averaged voltage the baseline was derived from
	Samples   int
}

// GasSample is one breath resistance proxy RS_gas.
type GasSample struct {
	RSGas     float64
	VoltageMV int
}

// Resistance converts an ADC voltage to the resistance proxy Rs/RL.
func Resistance(voltageMV int) (float64, error) {
	realVolt := (float64(voltageMV) / 1000.0) * (SupplyVolts / ADCRangeVolts)
	if realVolt < 0 {
		return 0, fmt.Errorf("%w: %d mV", ErrNegativeVoltage, voltageMV)
	}
	if realVolt >= SupplyVolts {
		return 0, fmt.Errorf("%w: %d mV", ErrSaturated, voltageMV)
	}
	return realVolt / (SupplyVolts - realVolt), nil
}

// Reader owns calibrated sampling of the sensor.
type Reader struct {
	adc ADC
}

// NewReader creates a Reader on top of an ADC.
func NewReader(adc ADC) *Reader {
	return &Reader{adc: adc}
}

// CaptureBaseline averages sampleCount acquisitions and returns RS_air.
// The first failing acquisition fails the whole capture.
func (r *Reader) CaptureBaseline(ctx context.Context, sampleCount int) (Baseline, error) {
	if sampleCount <= 0 {
		return Baseline{}, fmt.Errorf("baseline sample count must be positive, got %d", sampleCount)
	}

	total := 0
	for i := 0; i < sampleCount; i++ {
		if err := ctx.Err(); err != nil {
			return Baseline{}, err
		}
		mv, err := r.acquire()
		if err != nil {
			return Baseline{}, fmt.Errorf("baseline sample %d: %w", i, err)
		}
		total += mv
	}

	// Integer mean, as the ADC reports whole millivolts.
	avg := total / sampleCount
	rs, err := Resistance(avg)
	if err != nil {
		return Baseline{}, fmt.Errorf("baseline: %w", err)
	}
	if rs <= 0 {
		return Baseline{}, fmt.Errorf("baseline at %d mV: %w", avg, ErrZeroBaseline)
	}
	return Baseline{RSAir: rs, VoltageMV: avg, Samples: sampleCount}, nil
}

// CaptureGasSample takes a single acquisition and returns RS_gas.
func (r *Reader) CaptureGasSample(ctx context.Context) (GasSample, error) {
	if err := ctx.Err(); err != nil {
		return GasSample{}, err
	}
	mv, err := r.acquire()
	if err != nil {
		return GasSample{}, fmt.Errorf("gas sample: %w", err)
	}
	rs, err := Resistance(mv)
	if err != nil {
		return GasSample{}, fmt.Errorf("gas sample: %w", err)
	}
	return GasSample{RSGas: rs, VoltageMV: mv}, nil
}

func (r *Reader) acquire() (int, error) {
	reading, err := r.adc.Read()
	if err != nil {
		return 0, fmt.Errorf("adc read: %w", err)
	}
	if !reading.Calibrated {
		return 0, fmt.Errorf("adc raw %d: %w", reading.Raw, ErrUncalibrated)
	}
	return reading.VoltageMV, nil
}
