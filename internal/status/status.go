// Package status provides a thread-safe status tracker for the breathalyzer daemon.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"errors"
	"sync"
	"time"

	"github.com/sweeney/breathalyzer/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	HeatupMs    int64
	WindowMs    int64
	Sensor      string
	StorageDir  string
	Broker      string
	HTTPPort    string
}

// Counts are session outcome counters since startup.
type Counts struct {
	Presses       int
	Completed     int
	SensorFaults  int
	StorageFaults int
	Cancelled     int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	Ready         bool // button baseline established
	LastResult    *logic.Result
	LastError     string
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateIdle,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetState records the session state. Used as the controller's
// state-change hook.
func (t *Tracker) SetState(s logic.State) {
	t.mu.Lock()
	t.snap.State = s
	t.mu.Unlock()
}

// UpdateButton sets the button readiness and press count.
// Called from runLoop on every tick.
func (t *Tracker) UpdateButton(ready bool, presses int) {
	t.mu.Lock()
	t.snap.Ready = ready
	t.snap.Counts.Presses = presses
	t.mu.Unlock()
}

// RecordSession classifies the outcome of one session. A storage fault still
// carries a valid result.
func (t *Tracker) RecordSession(res logic.Result, err error) {
	var (
		sensorFault  *logic.SensorFault
		storageFault *logic.StorageFault
	)

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case err == nil:
		t.snap.Counts.Completed++
		t.snap.LastError = ""
	case errors.As(err, &storageFault):
		t.snap.Counts.StorageFaults++
		t.snap.LastError = err.Error()
	case errors.As(err, &sensorFault):
		t.snap.Counts.SensorFaults++
		t.snap.LastError = err.Error()
		return
	default:
		t.snap.Counts.Cancelled++
		t.snap.LastError = err.Error()
		return
	}
	r := res
	t.snap.LastResult = &r
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastResult != nil {
		r := *s.LastResult
		s.LastResult = &r
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
