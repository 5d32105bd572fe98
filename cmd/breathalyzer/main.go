// Command breathalyzer runs the MQ-303A breath alcohol tester: it waits for a
// button press, measures, keeps a highscore table and publishes results to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/breathalyzer/internal/config"
	"github.com/sweeney/breathalyzer/internal/feedback"
	"github.com/sweeney/breathalyzer/internal/gpio"
	"github.com/sweeney/breathalyzer/internal/highscore"
	"github.com/sweeney/breathalyzer/internal/logic"
	"github.com/sweeney/breathalyzer/internal/logstore"
	"github.com/sweeney/breathalyzer/internal/mqtt"
	"github.com/sweeney/breathalyzer/internal/sensor"
	"github.com/sweeney/breathalyzer/internal/session"
	"github.com/sweeney/breathalyzer/internal/status"
	"github.com/sweeney/breathalyzer/internal/web"
)

const defaultConfigPath = "/etc/breathalyzer/config.yaml"

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("fatal: %v", err)
	}
	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// options are the command-line overrides of the YAML configuration.
type options struct {
	configPath      string
	httpAddr        string
	broker          string
	poll            time.Duration
	debounce        time.Duration
	sensor          string
	storage         string
	printHighscores bool

	set map[string]bool // flags given explicitly
}

func parseFlags(args []string) (*options, error) {
	o := &options{set: make(map[string]bool)}
	def := config.Default()

	fs := flag.NewFlagSet("breathalyzer", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", defaultConfigPath, "YAML configuration file")
	fs.StringVar(&o.httpAddr, "http", def.HTTP.Addr, "HTTP status address (empty to disable)")
	fs.StringVar(&o.broker, "broker", def.MQTT.Broker, "MQTT broker address (empty to disable)")
	fs.DurationVar(&o.poll, "poll", def.Session.Poll, "Button polling interval")
	fs.DurationVar(&o.debounce, "debounce", def.Session.Debounce, "Button debounce duration")
	fs.StringVar(&o.sensor, "sensor", def.Sensor.Type, `Sensor type ("ads1115" or "simulation")`)
	fs.StringVar(&o.storage, "storage", def.Storage.Dir, "Directory holding the highscore table and log")
	fs.BoolVar(&o.printHighscores, "print-highscores", false, "Print the highscore table and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overrides cfg with the flags that were given explicitly.
func (o *options) apply(cfg *config.Config) error {
	if o.set["http"] {
		cfg.HTTP.Addr = o.httpAddr
	}
	if o.set["broker"] {
		cfg.MQTT.Broker = o.broker
	}
	if o.set["poll"] {
		cfg.Session.Poll = o.poll
	}
	if o.set["debounce"] {
		cfg.Session.Debounce = o.debounce
	}
	if o.set["sensor"] {
		cfg.Sensor.Type = o.sensor
	}
	if o.set["storage"] {
		cfg.Storage.Dir = o.storage
	}
	if cfg.Session.Poll <= 0 {
		return fmt.Errorf("poll interval must be > 0")
	}
	return cfg.Validate()
}

// checkStorage verifies the storage directory exists and is writable.
func checkStorage(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

func run(opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := opts.apply(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := checkStorage(cfg.Storage.Dir); err != nil {
		return fmt.Errorf("storage mount failure: %w", err)
	}

	scores := highscore.New(cfg.Storage.HighscoreCapacity)
	if err := scores.Load(cfg.HighscorePath()); err != nil {
		return fmt.Errorf("load highscores: %w", err)
	}

	// Print highscores mode
	if opts.printHighscores {
		if table := scores.Format(); table != "" {
			fmt.Print(table)
		} else {
			fmt.Println("no highscores")
		}
		return nil
	}
	scores.Display()

	logs := logstore.New(cfg.LogPath(), cfg.Storage.LogCapacity)

	hw, err := openHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	melody := feedback.NewSequencer(hw.tone, hw.led, feedback.DefaultMelody, nil)

	// Initialize MQTT
	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.Discard
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	} else {
		log.Printf("mqtt: no broker configured, publishing disabled")
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Session.Poll.Milliseconds(),
		DebounceMs:  cfg.Session.Debounce.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		HeatupMs:    cfg.Session.Heatup.Milliseconds(),
		WindowMs:    cfg.Session.SampleWindow.Milliseconds(),
		Sensor:      cfg.Sensor.Type,
		StorageDir:  cfg.Storage.Dir,
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	ctrl := session.New(cfg.Session, session.Deps{
		Heater:        hw.heater,
		Melody:        melody,
		Reader:        sensor.NewReader(hw.adc),
		Highscores:    scores,
		HighscorePath: cfg.HighscorePath(),
		Log:           logs,
		OnStateChange: func(s logic.State) {
			tracker.SetState(s)
			if s == logic.StateSampling && hw.sim != nil {
				hw.sim.Breathe(cfg.Session.MaxSamples)
			}
		},
	})

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, scores, cfg.HTTP.WebRoot)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: sensor=%s poll=%v debounce=%v heatup=%v window=%v broker=%q",
		cfg.Sensor.Type, cfg.Session.Poll, cfg.Session.Debounce, cfg.Session.Heatup, cfg.Session.SampleWindow, cfg.MQTT.Broker)

	// A termination signal cancels a running session; the loop sees the same
	// signal on sigCh once the session has unwound.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, append([]os.Signal{syscall.SIGINT, syscall.SIGTERM}, triggerSignals...)...)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(cfg.Session.Poll)
	defer ticker.Stop()

	l := &loop{
		button:     hw.button,
		ctrl:       ctrl,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		logs:       logs,
		heartbeat:  cfg.MQTT.Heartbeat,
		now:        time.Now,
	}
	return l.run(ctx, ticker.C, sigCh)
}

// loop is the daemon's main loop. Everything it touches is injected so
// tests can drive it with fakes.
type loop struct {
	button     gpio.Button
	ctrl       *session.Controller
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // optional
	tracker    *status.Tracker       // optional
	logs       *logstore.Store
	heartbeat  time.Duration // 0 disables
	now        func() time.Time
}

// run polls the button on every tick and runs sessions until a termination
// signal arrives. Sessions run synchronously; ticks that arrive meanwhile are
// dropped by the ticker.
func (l *loop) run(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := l.now()

	for {
		select {
		case s := <-sig:
			if isTrigger(s) {
				log.Printf("received %v, starting session", s)
				res, err := l.ctrl.Run(ctx)
				l.handleSession(res, err)
				continue
			}
			l.shutdown(s)
			return nil

		case <-tick:
			t := l.now()
			pressed, err := l.button.Pressed()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				continue
			}

			ran, res, err := l.ctrl.Poll(ctx, pressed, t)
			if ran {
				l.handleSession(res, err)
			}

			if l.heartbeat > 0 && t.Sub(lastHeartbeat) >= l.heartbeat {
				lastHeartbeat = t
				l.publishHeartbeat(t)
			}

			// Update status tracker for HTTP consumers
			if l.tracker != nil {
				l.tracker.UpdateButton(l.ctrl.Ready(), l.ctrl.Presses())
				l.refreshMQTT()
			}
		}
	}
}

// handleSession records and publishes the outcome of one session.
func (l *loop) handleSession(res logic.Result, err error) {
	if l.tracker != nil {
		l.tracker.RecordSession(res, err)
	}

	var sensorFault *logic.SensorFault
	var storageFault *logic.StorageFault
	switch {
	case err == nil:
	case errors.As(err, &storageFault):
		// The measurement itself is valid; only persistence failed.
		log.Printf("session %s: %v", res.SessionID, err)
	case errors.As(err, &sensorFault):
		log.Printf("session %s aborted: %v", res.SessionID, err)
		event := mqtt.SystemEvent{
			Timestamp: l.now(),
			Event:     "FAULT",
			Reason:    err.Error(),
		}
		if perr := l.publisher.PublishSystem(event); perr != nil {
			log.Printf("fault publish error: %v", perr)
		}
		return
	default:
		log.Printf("session %s not completed: %v", res.SessionID, err)
		return
	}

	if perr := l.publisher.Publish(res); perr != nil {
		log.Printf("publish error: %v", perr)
		// Don't crash on publish failure
	}
}

func (l *loop) publishHeartbeat(t time.Time) {
	hbEvent := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "HEARTBEAT",
	}
	if l.tracker != nil {
		l.refreshMQTT()
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		l.tracker.UpdateButton(l.ctrl.Ready(), l.ctrl.Presses())
		snap := l.tracker.Snapshot()
		hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
		log.Printf("heartbeat: uptime=%v presses=%d completed=%d",
			snap.Uptime().Truncate(time.Second), snap.Counts.Presses, snap.Counts.Completed)
	}
	if err := l.publisher.PublishSystem(hbEvent); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (l *loop) shutdown(s os.Signal) {
	log.Printf("received %v, shutting down", s)
	if err := l.logs.Flush(); err != nil {
		log.Printf("flush log: %v", err)
	}

	name := signalName(s)
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    name,
		Retained:  true,
	}
	if l.tracker != nil {
		l.refreshMQTT()
		snap := l.tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", name)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func (l *loop) refreshMQTT() {
	if l.tracker != nil && l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func isTrigger(s os.Signal) bool {
	for _, t := range triggerSignals {
		if s == t {
			return true
		}
	}
	return false
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
