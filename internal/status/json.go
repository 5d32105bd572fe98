package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"session_counts"`
	LastResult    *ResultJSON  `json:"last_result,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        *ConfigJSON  `json:"config,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of session counts.
type CountsJSON struct {
	Presses       int `json:"presses"`
	Completed     int `json:"completed"`
	SensorFaults  int `json:"sensor_faults"`
	StorageFaults int `json:"storage_faults"`
	Cancelled     int `json:"cancelled"`
}

// ResultJSON is the JSON representation of the last measurement.
type ResultJSON struct {
	SessionID   string  `json:"session_id"`
	Timestamp   string  `json:"timestamp"`
	MaxPPM      float64 `json:"max_ppm"`
	BAC         float64 `json:"bac"`
	Samples     int     `json:"samples"`
	Termination string  `json:"termination"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	HeatupMs    int64  `json:"heatup_ms"`
	WindowMs    int64  `json:"window_ms"`
	Sensor      string `json:"sensor"`
	StorageDir  string `json:"storage_dir"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:         state,
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Presses:       snap.Counts.Presses,
			Completed:     snap.Counts.Completed,
			SensorFaults:  snap.Counts.SensorFaults,
			StorageFaults: snap.Counts.StorageFaults,
			Cancelled:     snap.Counts.Cancelled,
		},
		LastError: snap.LastError,
	}
	if r := snap.LastResult; r != nil {
		inner.LastResult = &ResultJSON{
			SessionID:   r.SessionID,
			Timestamp:   r.Timestamp.UTC().Format(time.RFC3339),
			MaxPPM:      r.MaxPPM,
			BAC:         r.BAC,
			Samples:     r.Samples,
			Termination: string(r.Termination),
		}
	}
	return inner
}

func buildConfig(snap Snapshot) *ConfigJSON {
	return &ConfigJSON{
		PollMs:      snap.Config.PollMs,
		DebounceMs:  snap.Config.DebounceMs,
		HeartbeatMs: snap.Config.HeartbeatMs,
		HeatupMs:    snap.Config.HeatupMs,
		WindowMs:    snap.Config.WindowMs,
		Sensor:      snap.Config.Sensor,
		StorageDir:  snap.Config.StorageDir,
		Broker:      snap.Config.Broker,
		HTTPPort:    snap.Config.HTTPPort,
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	inner.Config = buildConfig(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Config is only included in STARTUP events.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		inner.Config = buildConfig(snap)
	}
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
