package status

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/breathalyzer/internal/logic"
)

var testResult = logic.Result{
	SessionID:   "abc",
	Timestamp:   time.Date(2026, 1, 1, 12, 0, 15, 0, time.UTC),
	Baseline:    0.66,
	MaxPPM:      23.49,
	BAC:         0.009,
	Samples:     50,
	Termination: logic.TerminationWindow,
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PollMs: 100, DebounceMs: 50, Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.State != logic.StateIdle {
		t.Errorf("State: got %q, want IDLE", snap.State)
	}
	if snap.Config.PollMs != 100 {
		t.Errorf("Config.PollMs: got %d, want 100", snap.Config.PollMs)
	}
	if snap.Ready {
		t.Error("expected Ready=false initially")
	}
	if snap.LastResult != nil {
		t.Error("expected no LastResult initially")
	}
}

func TestSetStateAndButton(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetState(logic.StateSampling)
	tr.UpdateButton(true, 4)

	snap := tr.Snapshot()
	if snap.State != logic.StateSampling {
		t.Errorf("State: got %q, want SAMPLING", snap.State)
	}
	if !snap.Ready {
		t.Error("expected Ready=true")
	}
	if snap.Counts.Presses != 4 {
		t.Errorf("Counts.Presses: got %d, want 4", snap.Counts.Presses)
	}
}

func TestRecordSessionOutcomes(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordSession(testResult, nil)
	tr.RecordSession(logic.Result{}, &logic.SensorFault{Phase: logic.StateSampling, Err: errors.New("saturated")})
	storage := &logic.StorageFault{Op: "highscore", Err: errors.New("read-only file system")}
	second := testResult
	second.SessionID = "def"
	tr.RecordSession(second, storage)
	tr.RecordSession(logic.Result{}, context.Canceled)

	snap := tr.Snapshot()
	if snap.Counts.Completed != 1 {
		t.Errorf("Completed: got %d, want 1", snap.Counts.Completed)
	}
	if snap.Counts.SensorFaults != 1 {
		t.Errorf("SensorFaults: got %d, want 1", snap.Counts.SensorFaults)
	}
	if snap.Counts.StorageFaults != 1 {
		t.Errorf("StorageFaults: got %d, want 1", snap.Counts.StorageFaults)
	}
	if snap.Counts.Cancelled != 1 {
		t.Errorf("Cancelled: got %d, want 1", snap.Counts.Cancelled)
	}
	if snap.LastResult == nil || snap.LastResult.SessionID != "def" {
		t.Errorf("LastResult: got %+v, want session def", snap.LastResult)
	}
	if snap.LastError != "context canceled" {
		t.Errorf("LastError: got %q", snap.LastError)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.RecordSession(testResult, nil)

	snap := tr.Snapshot()
	snap.LastResult.BAC = 99

	if got := tr.Snapshot().LastResult.BAC; got != testResult.BAC {
		t.Errorf("snapshot mutation leaked into tracker: BAC %v", got)
	}
}

func TestSetMQTTConnectedAndNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)
	if got := tr.Snapshot().Network; got == nil || got.IP != "192.168.1.42" {
		t.Errorf("Network: got %+v", got)
	}
}

func TestUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Second)}
	if snap.Uptime() != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", snap.Uptime())
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.SetState(logic.StateHeating)
				tr.RecordSession(testResult, nil)
				tr.SetMQTTConnected(j%2 == 0)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Counts.Completed; got != 1000 {
		t.Errorf("Completed: got %d, want 1000", got)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:         logic.StateIdle,
		Ready:         true,
		LastResult:    &testResult,
		Counts:        Counts{Presses: 2, Completed: 1},
		StartTime:     start,
		Now:           start.Add(65 * time.Second),
		MQTTConnected: true,
		Config:        Config{PollMs: 100, Broker: "tcp://b:1883", Sensor: "ads1115"},
	}

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s := sj.Status
	if s.State != "IDLE" || !s.Ready {
		t.Errorf("state/ready: got %q/%v", s.State, s.Ready)
	}
	if s.UptimeSeconds != 65 {
		t.Errorf("UptimeSeconds: got %d, want 65", s.UptimeSeconds)
	}
	if s.Counts.Presses != 2 || s.Counts.Completed != 1 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.LastResult == nil || s.LastResult.BAC != 0.009 || s.LastResult.Timestamp != "2026-01-01T12:00:15Z" {
		t.Errorf("LastResult: got %+v", s.LastResult)
	}
	if s.Config == nil || s.Config.Sensor != "ads1115" {
		t.Errorf("Config: got %+v", s.Config)
	}
	if s.Event != "" {
		t.Errorf("web JSON should have no event, got %q", s.Event)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://b:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	data := FormatJSON(Snapshot{})
	if !strings.Contains(string(data), `"state": "UNKNOWN"`) {
		t.Errorf("expected UNKNOWN state, got %s", data)
	}
	if strings.Contains(string(data), "last_result") {
		t.Errorf("last_result should be omitted, got %s", data)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start, State: logic.StateIdle, Config: Config{Sensor: "simulation"}}

	var sj StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sj.Status.Event != "STARTUP" {
		t.Errorf("Event: got %q", sj.Status.Event)
	}
	if sj.Status.Config == nil {
		t.Error("STARTUP should include config")
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")
	if strings.Contains(string(data), `"config"`) {
		t.Errorf("SHUTDOWN should omit config, got %s", data)
	}
	if !strings.Contains(string(data), `"reason":"SIGTERM"`) {
		t.Errorf("missing reason in %s", data)
	}
}
