// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor types.
const (
	SensorADS1115    = "ads1115"
	SensorSimulation = "simulation"
)

// Config represents the daemon configuration.
type Config struct {
	Session SessionConfig `yaml:"session"`
	Storage StorageConfig `yaml:"storage"`
	Sensor  SensorConfig  `yaml:"sensor"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Buzzer  BuzzerConfig  `yaml:"buzzer"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// SessionConfig contains the measurement cycle timings.
type SessionConfig struct {
	Heatup          time.Duration `yaml:"heatup"`
	BaselineSamples int           `yaml:"baseline_samples"`
	SampleInterval  time.Duration `yaml:"sample_interval"`
	SampleWindow    time.Duration `yaml:"sample_window"`
	MaxSamples      int           `yaml:"max_samples"` // safety cap; the window timer ends sampling
	Poll            time.Duration `yaml:"poll"`
	Debounce        time.Duration `yaml:"debounce"`
}

// StorageConfig describes where results are persisted.
type StorageConfig struct {
	Dir               string `yaml:"dir"`
	HighscoreFile     string `yaml:"highscore_file"`
	LogFile           string `yaml:"log_file"`
	HighscoreCapacity int    `yaml:"highscore_capacity"`
	LogCapacity       int    `yaml:"log_capacity"`
}

// SensorConfig configures the MQ-303A front end (ADS1115 over I2C).
type SensorConfig struct {
	Type              string  `yaml:"type"`
	I2CBus            string  `yaml:"i2c_bus"`
	I2CAddress        int     `yaml:"i2c_address"`
	Channel           int     `yaml:"channel"`
	SampleRate        int     `yaml:"sample_rate"`
	CalibrationScale  float64 `yaml:"calibration_scale"`
	CalibrationOffset float64 `yaml:"calibration_offset"`
}

// GPIOConfig contains line offsets on the GPIO character device.
type GPIOConfig struct {
	Chip            string `yaml:"chip"`
	Button          int    `yaml:"button"`
	ButtonActiveLow bool   `yaml:"button_active_low"`
	Heater          int    `yaml:"heater"`
	LED             int    `yaml:"led"`
}

// BuzzerConfig configures the PWM buzzer pin (periph.io pin name).
type BuzzerConfig struct {
	Pin string `yaml:"pin"`
}

// MQTTConfig configures result publishing. An empty broker disables it.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`   // 0 disables heartbeats
	Buffer    int           `yaml:"buffer_size"` // messages kept while offline
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr    string `yaml:"addr"`
	WebRoot string `yaml:"web_root"`
}

// Default returns the configuration matching the reference hardware.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Heatup:          10 * time.Second,
			BaselineSamples: 100,
			SampleInterval:  100 * time.Millisecond,
			SampleWindow:    5 * time.Second,
			MaxSamples:      50,
			Poll:            100 * time.Millisecond,
			Debounce:        50 * time.Millisecond,
		},
		Storage: StorageConfig{
			Dir:               "/sdcard",
			HighscoreFile:     "scores.txt",
			LogFile:           "log.txt",
			HighscoreCapacity: 10,
			LogCapacity:       100,
		},
		Sensor: SensorConfig{
			Type:             SensorADS1115,
			I2CBus:           "1",
			I2CAddress:       0x48,
			Channel:          0,
			SampleRate:       128,
			CalibrationScale: 1.0,
		},
		GPIO: GPIOConfig{
			Chip:   "gpiochip0",
			Button: 10,
			Heater: 3,
			LED:    7,
		},
		Buzzer: BuzzerConfig{
			Pin: "GPIO12",
		},
		MQTT: MQTTConfig{
			ClientID:  "breathalyzer",
			Heartbeat: 15 * time.Minute,
			Buffer:    100,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; zero fields in an existing file are filled from the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects values the session cannot run with.
func (c *Config) Validate() error {
	switch c.Sensor.Type {
	case SensorADS1115, SensorSimulation:
	default:
		return fmt.Errorf("unknown sensor type %q", c.Sensor.Type)
	}
	if c.Session.BaselineSamples <= 0 {
		return fmt.Errorf("session.baseline_samples must be > 0")
	}
	if c.Session.MaxSamples <= 0 {
		return fmt.Errorf("session.max_samples must be > 0")
	}
	if c.Storage.HighscoreCapacity <= 0 {
		return fmt.Errorf("storage.highscore_capacity must be > 0")
	}
	if c.Storage.LogCapacity <= 0 {
		return fmt.Errorf("storage.log_capacity must be > 0")
	}
	return nil
}

// HighscorePath returns the absolute path of the highscore file.
func (c *Config) HighscorePath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.HighscoreFile)
}

// LogPath returns the absolute path of the measurement log.
func (c *Config) LogPath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.LogFile)
}

// ensureDefaults fills zero-valued fields from Default.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Session.Heatup == 0 {
		c.Session.Heatup = def.Session.Heatup
	}
	if c.Session.BaselineSamples == 0 {
		c.Session.BaselineSamples = def.Session.BaselineSamples
	}
	if c.Session.SampleInterval == 0 {
		c.Session.SampleInterval = def.Session.SampleInterval
	}
	if c.Session.SampleWindow == 0 {
		c.Session.SampleWindow = def.Session.SampleWindow
	}
	if c.Session.MaxSamples == 0 {
		c.Session.MaxSamples = def.Session.MaxSamples
	}
	if c.Session.Poll == 0 {
		c.Session.Poll = def.Session.Poll
	}
	if c.Session.Debounce == 0 {
		c.Session.Debounce = def.Session.Debounce
	}

	if c.Storage.Dir == "" {
		c.Storage.Dir = def.Storage.Dir
	}
	if c.Storage.HighscoreFile == "" {
		c.Storage.HighscoreFile = def.Storage.HighscoreFile
	}
	if c.Storage.LogFile == "" {
		c.Storage.LogFile = def.Storage.LogFile
	}
	if c.Storage.HighscoreCapacity == 0 {
		c.Storage.HighscoreCapacity = def.Storage.HighscoreCapacity
	}
	if c.Storage.LogCapacity == 0 {
		c.Storage.LogCapacity = def.Storage.LogCapacity
	}

	if c.Sensor.Type == "" {
		c.Sensor.Type = def.Sensor.Type
	}
	if c.Sensor.I2CBus == "" {
		c.Sensor.I2CBus = def.Sensor.I2CBus
	}
	if c.Sensor.I2CAddress == 0 {
		c.Sensor.I2CAddress = def.Sensor.I2CAddress
	}
	if c.Sensor.SampleRate == 0 {
		c.Sensor.SampleRate = def.Sensor.SampleRate
	}
	if c.Sensor.CalibrationScale == 0 {
		c.Sensor.CalibrationScale = def.Sensor.CalibrationScale
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}
	if c.Buzzer.Pin == "" {
		c.Buzzer.Pin = def.Buzzer.Pin
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Buffer == 0 {
		c.MQTT.Buffer = def.MQTT.Buffer
	}
}
