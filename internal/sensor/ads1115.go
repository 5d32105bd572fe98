package sensor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/breathalyzer/internal/config"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01

	// PGA full scale for the ±4.096 V range.
	ads1115FullScale = 4.096
)

// ADS1115 reads one single-ended channel of an ADS1115 over I2C.
type ADS1115 struct {
	mu         sync.Mutex
	dev        *i2c.Dev
	bus        i2c.BusCloser
	channel    int
	sampleRate int
	scale      float64
	offset     float64
	msb, lsb   byte
}

// NewADS1115 opens the I2C bus and prepares single-shot conversions.
func NewADS1115(cfg config.SensorConfig) (*ADS1115, error) {
	msb, lsb, err := configForChannel(cfg.Channel, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	return &ADS1115{
		dev:        &i2c.Dev{Addr: uint16(cfg.I2CAddress), Bus: bus},
		bus:        bus,
		channel:    cfg.Channel,
		sampleRate: cfg.SampleRate,
		scale:      cfg.CalibrationScale,
		offset:     cfg.CalibrationOffset,
		msb:        msb,
		lsb:        lsb,
	}, nil
}

// Read starts a conversion, waits for it and returns the calibrated voltage.
func (s *ADS1115) Read() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dev.Tx([]byte{pointerConfig, s.msb, s.lsb}, nil); err != nil {
		return Reading{}, fmt.Errorf("write config: %w", err)
	}
	time.Sleep(conversionDelay(s.sampleRate))

	buf := make([]byte, 2)
	if err := s.dev.Tx([]byte{pointerConv}, buf); err != nil {
		return Reading{}, fmt.Errorf("read conv: %w", err)
	}
	raw := int16(buf[0])<<8 | int16(buf[1])
	return Reading{
		Raw:        int(raw),
		VoltageMV:  countsToMillivolts(raw, s.scale, s.offset),
		Calibrated: true,
	}, nil
}

// Close releases the I2C bus.
func (s *ADS1115) Close() error {
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

// countsToMillivolts applies the PGA range and the linear calibration.
// offset is in volts.
func countsToMillivolts(raw int16, scale, offset float64) int {
	volts := float64(raw)*ads1115FullScale/32768.0*scale + offset
	return int(math.Round(volts * 1000))
}

// conversionDelay is one conversion period plus margin.
func conversionDelay(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		sampleRate = 128
	}
	return time.Duration(1000/sampleRate+2) * time.Millisecond
}

// configForChannel builds the config register for a single-shot,
// single-ended conversion at ±4.096 V.
func configForChannel(channel, sampleRate int) (byte, byte, error) {
	var mux byte
	switch channel {
	case 0:
		mux = 0x4
	case 1:
		mux = 0x5
	case 2:
		mux = 0x6
	case 3:
		mux = 0x7
	default:
		return 0, 0, fmt.Errorf("invalid channel %d", channel)
	}
	pga := byte(0x1)
	var dr byte
	switch sampleRate {
	case 8:
		dr = 0x0
	case 16:
		dr = 0x1
	case 32:
		dr = 0x2
	case 64:
		dr = 0x3
	case 128:
		dr = 0x4
	case 250:
		dr = 0x5
	case 475:
		dr = 0x6
	case 860:
		dr = 0x7
	default:
		dr = 0x4
	}
	var reg uint16 = 0x8000 // OS: start a single conversion
	reg |= uint16(mux) << 12
	reg |= uint16(pga) << 9
	reg |= 1 << 8 // single-shot mode
	reg |= uint16(dr) << 5
	reg |= 0x3 // comparator disabled
	return byte(reg >> 8), byte(reg & 0xFF), nil
}
