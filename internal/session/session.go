// Package session runs the measurement cycle: heat the sensor, capture the
// clean-air baseline, sample the breath, then record the result.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/breathalyzer/internal/clock"
	"github.com/sweeney/breathalyzer/internal/config"
	"github.com/sweeney/breathalyzer/internal/highscore"
	"github.com/sweeney/breathalyzer/internal/logic"
	"github.com/sweeney/breathalyzer/internal/logstore"
	"github.com/sweeney/breathalyzer/internal/sensor"
)

// ErrBusy is returned by Run when a session is already in progress.
var ErrBusy = errors.New("session already in progress")

// Switch drives an on/off actuator such as the sensor heater.
type Switch interface {
	Set(on bool) error
}

// Melody is played while the sensor heats up.
type Melody interface {
	Play(ctx context.Context) error
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Heater        Switch
	Melody        Melody // optional
	Reader        *sensor.Reader
	Highscores    *highscore.Store
	HighscorePath string
	Log           *logstore.Store
	Clock         clock.Clock // defaults to the wall clock

	// OnStateChange, if set, is called after every state transition.
	OnStateChange func(logic.State)
}

// Controller owns the session state machine. Only one session runs at a time.
type Controller struct {
	cfg  config.SessionConfig
	deps Deps

	running  atomic.Bool
	mu       sync.RWMutex
	state    logic.State
	debounce *logic.Debouncer
}

// New creates a Controller in the Idle state.
func New(cfg config.SessionConfig, deps Deps) *Controller {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	return &Controller{
		cfg:      cfg,
		deps:     deps,
		state:    logic.StateIdle,
		debounce: logic.NewDebouncer(cfg.Debounce),
	}
}

// State returns the current state. Safe for concurrent use.
func (c *Controller) State() logic.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Presses returns the number of debounced button presses seen by Poll.
func (c *Controller) Presses() int {
	return c.debounce.Presses()
}

// Ready reports whether the button debouncer has established its baseline.
func (c *Controller) Ready() bool {
	return c.debounce.IsBaselined()
}

func (c *Controller) setState(s logic.State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev != s {
		log.Printf("session: %s -> %s", prev, s)
	}
	if c.deps.OnStateChange != nil {
		c.deps.OnStateChange(s)
	}
}

// Poll feeds one button sample through the debouncer and runs a session
// when it completes a press while Idle. It reports whether a session ran.
// Poll must be called from a single goroutine.
func (c *Controller) Poll(ctx context.Context, pressed bool, now time.Time) (bool, logic.Result, error) {
	if !c.debounce.Process(logic.Input{Pressed: pressed, Time: now}) {
		return false, logic.Result{}, nil
	}
	if c.State() != logic.StateIdle {
		return false, logic.Result{}, nil
	}
	res, err := c.Run(ctx)
	return true, res, err
}

// Run executes one full session and always leaves the controller Idle with
// the heater off. A sensor failure returns a *logic.SensorFault and leaves
// the stores untouched. A persistence failure returns a *logic.StorageFault
// together with the computed result.
func (c *Controller) Run(ctx context.Context) (logic.Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return logic.Result{}, ErrBusy
	}
	defer c.running.Store(false)

	res := logic.Result{SessionID: uuid.NewString()}
	log.Printf("session: %s started", res.SessionID)

	melodyCtx, stopMelody := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stopMelody()
		wg.Wait()
		c.heaterOff()
		c.setState(logic.StateIdle)
	}()

	if err := c.heat(ctx, melodyCtx, &wg); err != nil {
		return res, err
	}

	c.setState(logic.StateBaselineCapture)
	baseline, err := c.deps.Reader.CaptureBaseline(ctx, c.cfg.BaselineSamples)
	if err != nil {
		return res, c.fault(ctx, logic.StateBaselineCapture, err)
	}
	res.Baseline = baseline.RSAir
	log.Printf("session: baseline RS_air=%.4f from %d mV", baseline.RSAir, baseline.VoltageMV)

	c.setState(logic.StateSampling)
	if err := c.sample(ctx, baseline, &res); err != nil {
		return res, c.fault(ctx, logic.StateSampling, err)
	}

	c.setState(logic.StateFinalizing)
	res.Timestamp = c.deps.Clock.Now()
	log.Printf("session: %s max_ppm=%.2f bac=%.3f samples=%d (%s)",
		res.SessionID, res.MaxPPM, res.BAC, res.Samples, res.Termination)
	if err := c.finalize(res); err != nil {
		log.Printf("session: %v", err)
		return res, err
	}
	return res, nil
}

// heat switches the heater on, starts the melody and waits for the warm-up
// timer. The timer callback switches the heater off itself.
func (c *Controller) heat(ctx, melodyCtx context.Context, wg *sync.WaitGroup) error {
	c.setState(logic.StateHeating)
	if err := c.deps.Heater.Set(true); err != nil {
		return c.fault(ctx, logic.StateHeating, fmt.Errorf("heater on: %w", err))
	}

	warm := make(chan struct{}, 1)
	timer := c.deps.Clock.AfterFunc(c.cfg.Heatup, func() {
		c.heaterOff()
		warm <- struct{}{}
	})
	defer timer.Stop()

	if c.deps.Melody != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.deps.Melody.Play(melodyCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("session: melody: %v", err)
			}
		}()
	}

	for {
		select {
		case <-warm:
			return nil
		default:
		}
		if err := c.deps.Clock.Sleep(ctx, c.cfg.Poll); err != nil {
			return err
		}
	}
}

// sample reads gas samples until the window timer fires, bounded by
// MaxSamples.
func (c *Controller) sample(ctx context.Context, baseline sensor.Baseline, res *logic.Result) error {
	closed := make(chan struct{})
	window := c.deps.Clock.AfterFunc(c.cfg.SampleWindow, func() { close(closed) })
	defer window.Stop()

	maxPPM := 0.0
	for {
		select {
		case <-closed:
			res.Termination = logic.TerminationWindow
			finish(res, maxPPM)
			return nil
		default:
		}
		if res.Samples >= c.cfg.MaxSamples {
			res.Termination = logic.TerminationCap
			finish(res, maxPPM)
			return nil
		}

		g, err := c.deps.Reader.CaptureGasSample(ctx)
		if err != nil {
			return err
		}
		ratio, err := logic.Ratio(g.RSGas, baseline.RSAir)
		if err != nil {
			return err
		}
		if ppm := logic.PPM(ratio); ppm > maxPPM {
			maxPPM = ppm
		}
		res.Samples++

		if err := c.deps.Clock.Sleep(ctx, c.cfg.SampleInterval); err != nil {
			return err
		}
	}
}

func finish(res *logic.Result, maxPPM float64) {
	res.MaxPPM = maxPPM
	res.BAC = logic.BAC(maxPPM)
}

// finalize records the result. A failed highscore save rolls the insert
// back so memory matches the file.
func (c *Controller) finalize(res logic.Result) error {
	scores := c.deps.Highscores
	snap := scores.Snapshot()
	if scores.Insert(highscore.DateOf(res.Timestamp), res.BAC) {
		if err := scores.Save(c.deps.HighscorePath); err != nil {
			scores.Restore(snap)
			return &logic.StorageFault{Op: "highscore", Err: err}
		}
	}

	if err := c.deps.Log.Append(res.Timestamp, res.MaxPPM, res.BAC); err != nil {
		return &logic.StorageFault{Op: "log", Err: err}
	}
	if err := c.deps.Log.Flush(); err != nil {
		return &logic.StorageFault{Op: "log", Err: err}
	}
	return nil
}

// fault classifies an abort. Cancellation is passed through untouched.
func (c *Controller) fault(ctx context.Context, phase logic.State, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Printf("session: cancelled during %s", phase)
		return err
	}
	f := &logic.SensorFault{Phase: phase, Err: err}
	log.Printf("session: %v", f)
	return f
}

func (c *Controller) heaterOff() {
	if err := c.deps.Heater.Set(false); err != nil {
		log.Printf("session: heater off: %v", err)
	}
}
