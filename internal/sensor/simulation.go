package sensor

import (
	"math/rand"
	"sync"
)

// Simulation produces plausible voltages without hardware: a noisy clean-air
// level, and a breath bump on every Breathe call.
type Simulation struct {
	mu       sync.Mutex
	rng      *rand.Rand
	airMV    int
	noiseMV  int
	breathMV int
	boost    int // remaining readings that carry the breath bump
}

// NewSimulation creates a simulated ADC around airMV.
func NewSimulation(airMV, noiseMV int, seed int64) *Simulation {
	return &Simulation{
		rng:      rand.New(rand.NewSource(seed)),
		airMV:    airMV,
		noiseMV:  noiseMV,
		breathMV: airMV / 2,
	}
}

// Breathe makes the next n readings show alcohol.
func (s *Simulation) Breathe(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boost = n
}

// Read returns a simulated calibrated reading.
func (s *Simulation) Read() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mv := s.airMV
	if s.noiseMV > 0 {
		mv += s.rng.Intn(2*s.noiseMV+1) - s.noiseMV
	}
	// Alcohol lowers Rs, and with it the divider voltage.
	if s.boost > 0 {
		mv -= s.breathMV
		s.boost--
	}
	if mv < 0 {
		mv = 0
	}
	if max := int(ADCRangeVolts*1000) - 1; mv > max {
		mv = max
	}
	return Reading{Raw: mv, VoltageMV: mv, Calibrated: true}, nil
}

// Close is a no-op.
func (s *Simulation) Close() error { return nil }
