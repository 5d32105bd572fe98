package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/breathalyzer/internal/clock"
	"github.com/sweeney/breathalyzer/internal/config"
	"github.com/sweeney/breathalyzer/internal/gpio"
	"github.com/sweeney/breathalyzer/internal/highscore"
	"github.com/sweeney/breathalyzer/internal/logic"
	"github.com/sweeney/breathalyzer/internal/logstore"
	"github.com/sweeney/breathalyzer/internal/sensor"
)

var start = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// blockingMelody plays until cancelled. It records the heater levels seen
// when it starts.
type blockingMelody struct {
	heater *gpio.FakeOutput

	mu          sync.Mutex
	calls       int
	cancelled   bool
	heaterAtRun []bool
}

func (m *blockingMelody) Play(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	if m.heater != nil {
		m.heaterAtRun = m.heater.Transitions()
	}
	m.mu.Unlock()
	<-ctx.Done()
	m.mu.Lock()
	m.cancelled = true
	m.mu.Unlock()
	return ctx.Err()
}

type harness struct {
	ctrl    *Controller
	clock   *clock.Fake
	adc     *sensor.FakeADC
	heater  *gpio.FakeOutput
	melody  *blockingMelody
	scores  *highscore.Store
	log     *logstore.Store
	dir     string
	states  []logic.State
	scoreFn string
}

func newHarness(t *testing.T, adc *sensor.FakeADC, tweak func(*config.SessionConfig)) *harness {
	t.Helper()
	cfg := config.Default().Session
	cfg.BaselineSamples = 3
	if tweak != nil {
		tweak(&cfg)
	}

	dir := t.TempDir()
	h := &harness{
		clock:   clock.NewFake(start),
		adc:     adc,
		heater:  &gpio.FakeOutput{},
		scores:  highscore.New(highscore.DefaultCapacity),
		log:     logstore.New(filepath.Join(dir, "log.txt"), logstore.DefaultCapacity),
		dir:     dir,
		scoreFn: filepath.Join(dir, "scores.txt"),
	}
	h.melody = &blockingMelody{heater: h.heater}
	h.ctrl = New(cfg, Deps{
		Heater:        h.heater,
		Melody:        h.melody,
		Reader:        sensor.NewReader(adc),
		Highscores:    h.scores,
		HighscorePath: h.scoreFn,
		Log:           h.log,
		Clock:         h.clock,
		OnStateChange: func(s logic.State) { h.states = append(h.states, s) },
	})
	return h
}

// gasADC returns a baseline of three 1000 mV readings followed by gas.
func gasADC(gasMV ...int) *sensor.FakeADC {
	return sensor.NewFakeADC(append([]int{1000, 1000, 1000}, gasMV...)...)
}

func TestRunFullSession(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)

	res, err := h.ctrl.Run(context.Background())
	require.NoError(t, err)

	_, err = uuid.Parse(res.SessionID)
	assert.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, res.Baseline, 1e-12)
	assert.InDelta(t, 23.48833543990906, res.MaxPPM, 1e-9)
	assert.InDelta(t, 0.009033975169195792, res.BAC, 1e-12)
	assert.Equal(t, 50, res.Samples)
	assert.Equal(t, logic.TerminationWindow, res.Termination)
	assert.Equal(t, start.Add(15*time.Second), res.Timestamp)

	assert.Equal(t, []logic.State{
		logic.StateHeating,
		logic.StateBaselineCapture,
		logic.StateSampling,
		logic.StateFinalizing,
		logic.StateIdle,
	}, h.states)
	assert.Equal(t, logic.StateIdle, h.ctrl.State())

	// On at start, off from the warm-up timer, off again on exit.
	assert.Equal(t, []bool{true, false, false}, h.heater.Transitions())
	assert.Equal(t, 3+50, h.adc.Reads)

	entries := h.scores.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, highscore.Date{Day: 2, Month: 1, Year: 2024}, entries[0].Date)
	assert.InDelta(t, res.BAC, entries[0].Score, 1e-12)

	data, err := os.ReadFile(h.scoreFn)
	require.NoError(t, err)
	assert.Equal(t, "02/01/2024 0.01\n", string(data))

	data, err = os.ReadFile(filepath.Join(h.dir, "log.txt"))
	require.NoError(t, err)
	assert.Equal(t, "02/01/2024 15:04:20 - PPM: 23.49, BAC: 0.009\n", string(data))
	assert.Equal(t, 0, h.log.Len())

	assert.Equal(t, 1, h.melody.calls)
	assert.True(t, h.melody.cancelled)
	assert.Zero(t, h.clock.Pending())
}

func TestRunHeaterOnBeforeMelody(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)

	_, err := h.ctrl.Run(context.Background())
	require.NoError(t, err)

	h.melody.mu.Lock()
	defer h.melody.mu.Unlock()
	require.Equal(t, 1, h.melody.calls)
	require.NotEmpty(t, h.melody.heaterAtRun, "melody started before the heater was switched")
	assert.True(t, h.melody.heaterAtRun[0], "heater must be on when the melody starts")
}

func TestRunHeatingWaitsForTimer(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)

	_, err := h.ctrl.Run(context.Background())
	require.NoError(t, err)

	// 100 polls of 100ms cover the 10s warm-up; then 50 sample intervals.
	require.Len(t, h.clock.Slept, 150)
	for i, d := range h.clock.Slept {
		if i < 100 {
			assert.Equal(t, 100*time.Millisecond, d, "poll %d", i)
		}
	}
}

func TestRunMonotonicPPM(t *testing.T) {
	var gas []int
	for i := 1; i <= 50; i++ {
		gas = append(gas, 1000-10*i) // falling voltage, rising alcohol
	}
	h := newHarness(t, gasADC(gas...), nil)

	res, err := h.ctrl.Run(context.Background())
	require.NoError(t, err)

	rsLast, err := sensor.Resistance(500)
	require.NoError(t, err)
	want := logic.PPM(rsLast / (2.0 / 3.0))
	assert.InDelta(t, want, res.MaxPPM, 1e-9)
	assert.InDelta(t, want/2600, res.BAC, 1e-12)
}

func TestRunMaxIsNotLast(t *testing.T) {
	h := newHarness(t, gasADC(900, 400, 800), func(c *config.SessionConfig) {
		c.MaxSamples = 3
	})

	res, err := h.ctrl.Run(context.Background())
	require.NoError(t, err)

	rs, _ := sensor.Resistance(400)
	assert.InDelta(t, logic.PPM(rs/(2.0/3.0)), res.MaxPPM, 1e-9)
	assert.Equal(t, 3, res.Samples)
	assert.Equal(t, logic.TerminationCap, res.Termination)
}

func TestRunWindowEndsSampling(t *testing.T) {
	h := newHarness(t, gasADC(500), func(c *config.SessionConfig) {
		c.SampleWindow = time.Second
	})

	res, err := h.ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.Samples)
	assert.Equal(t, logic.TerminationWindow, res.Termination)
}

func TestRunBaselineFault(t *testing.T) {
	adc := gasADC(500)
	adc.ReadError = errors.New("i2c timeout")
	adc.FailAt = 1
	h := newHarness(t, adc, nil)

	_, err := h.ctrl.Run(context.Background())
	var fault *logic.SensorFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, logic.StateBaselineCapture, fault.Phase)
	assert.ErrorIs(t, err, adc.ReadError)

	assert.Equal(t, 2, adc.Reads, "no retry")
	assert.False(t, h.heater.On())
	assert.Equal(t, logic.StateIdle, h.ctrl.State())
	assert.Empty(t, h.scores.Entries())
	assert.Equal(t, 0, h.log.Len())
	_, statErr := os.Stat(h.scoreFn)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunSamplingFault(t *testing.T) {
	h := newHarness(t, gasADC(500, 500, 2500), nil)

	_, err := h.ctrl.Run(context.Background())
	var fault *logic.SensorFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, logic.StateSampling, fault.Phase)
	assert.ErrorIs(t, err, sensor.ErrSaturated)

	assert.False(t, h.heater.On())
	assert.Equal(t, logic.StateIdle, h.ctrl.State())
	assert.Empty(t, h.scores.Entries())
	_, statErr := os.Stat(filepath.Join(h.dir, "log.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunHeaterFault(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)
	h.heater.SetError = errors.New("line busy")

	_, err := h.ctrl.Run(context.Background())
	var fault *logic.SensorFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, logic.StateHeating, fault.Phase)
	assert.Equal(t, 0, h.adc.Reads)
	assert.Equal(t, logic.StateIdle, h.ctrl.State())
}

func TestRunHighscoreStorageFault(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)
	h.ctrl.deps.HighscorePath = filepath.Join(h.dir, "missing", "scores.txt")

	res, err := h.ctrl.Run(context.Background())
	var fault *logic.StorageFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "highscore", fault.Op)

	assert.InDelta(t, 0.009033975169195792, res.BAC, 1e-12, "result still reported")
	assert.Empty(t, h.scores.Entries(), "insert rolled back")
	assert.Equal(t, 0, h.log.Len())
	assert.Equal(t, logic.StateIdle, h.ctrl.State())
	assert.False(t, h.heater.On())
}

func TestRunLogStorageFault(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)
	h.ctrl.deps.Log = logstore.New(filepath.Join(h.dir, "missing", "log.txt"), 10)

	_, err := h.ctrl.Run(context.Background())
	var fault *logic.StorageFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "log", fault.Op)

	// The line stays buffered for the next flush.
	assert.Equal(t, 1, h.ctrl.deps.Log.Len())
	assert.Len(t, h.scores.Entries(), 1)
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.ctrl.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	var fault *logic.SensorFault
	assert.False(t, errors.As(err, &fault))
	assert.False(t, h.heater.On())
	assert.Equal(t, logic.StateIdle, h.ctrl.State())
	assert.Equal(t, 0, h.adc.Reads)
}

func TestRunRejectsConcurrentSession(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)
	var nested error
	h.ctrl.deps.OnStateChange = func(s logic.State) {
		if s == logic.StateHeating {
			_, nested = h.ctrl.Run(context.Background())
		}
	}

	_, err := h.ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrBusy)
}

func TestPollStartsSessionOnPress(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)
	ctx := context.Background()
	now := start

	levels := []bool{false, false, true}
	for _, pressed := range levels {
		ran, _, err := h.ctrl.Poll(ctx, pressed, now)
		require.NoError(t, err)
		assert.False(t, ran)
		now = now.Add(100 * time.Millisecond)
	}

	ran, res, err := h.ctrl.Poll(ctx, true, now)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 50, res.Samples)
	assert.Equal(t, 1, h.ctrl.Presses())

	// Holding the button does not start another session.
	ran, _, err = h.ctrl.Poll(ctx, true, now.Add(100*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestPollIgnoresButtonHeldAtStartup(t *testing.T) {
	h := newHarness(t, gasADC(500), nil)
	now := start
	for i := 0; i < 10; i++ {
		ran, _, err := h.ctrl.Poll(context.Background(), true, now)
		require.NoError(t, err)
		assert.False(t, ran)
		now = now.Add(100 * time.Millisecond)
	}
	assert.Equal(t, 0, h.adc.Reads)
}
