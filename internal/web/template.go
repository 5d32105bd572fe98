package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/breathalyzer/internal/highscore"
	"github.com/sweeney/breathalyzer/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Breathalyzer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.idle { color: #888; }
.busy { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
</style>
</head>
<body>
<h1>Breathalyzer</h1>

<h2>Session</h2>
<table>
<tr><th>State</th><td id="state" class="{{if eq (stateOrUnknown (printf "%s" .State)) "IDLE"}}idle{{else}}busy{{end}}">{{stateOrUnknown (printf "%s" .State)}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
{{with .LastResult}}<tr><th>Last BAC</th><td>{{printf "%.3f" .BAC}}</td></tr>
<tr><th>Last PPM</th><td>{{printf "%.2f" .MaxPPM}}</td></tr>
<tr><th>Measured</th><td>{{.Timestamp.Format "02/01/2006 15:04:05"}} ({{.Samples}} samples)</td></tr>{{end}}
{{if .LastError}}<tr><th>Last error</th><td class="error">{{.LastError}}</td></tr>{{end}}
</table>

<h2>Highscores</h2>
{{if .Highscores}}<table>
{{range $i, $e := .Highscores}}<tr><th>#{{inc $i}} {{$e.Date}}</th><td>{{printf "%.2f" $e.Score}}</td></tr>
{{end}}</table>{{else}}<p>No results yet.</p>{{end}}

<h2>Sessions</h2>
<table>
<tr><th>Presses</th><td>{{.Counts.Presses}}</td></tr>
<tr><th>Completed</th><td>{{.Counts.Completed}}</td></tr>
<tr><th>Sensor faults</th><td>{{.Counts.SensorFaults}}</td></tr>
<tr><th>Storage faults</th><td>{{.Counts.StorageFaults}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sensor</th><td>{{.Config.Sensor}}</td></tr>
<tr><th>Warm-up</th><td>{{.Config.HeatupMs}}ms</td></tr>
<tr><th>Window</th><td>{{.Config.WindowMs}}ms</td></tr>
<tr><th>Storage</th><td>{{.Config.StorageDir}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/api/v1/highscores">Highscores JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, scores []highscore.JSONEntry) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		Highscores []highscore.JSONEntry
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Highscores: scores,
	}
	indexTmpl.Execute(w, data)
}
