package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/occupancy-sensor/internal/logic"
	"github.com/sweeney/occupancy-sensor/internal/status"
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
	"stateClass": func(s logic.PowerState) string {
		switch s {
		case logic.StateIdle:
			return "idle"
		case logic.StateSleeping:
			return "sleeping"
		case logic.StateError, logic.StateLowBattery:
			return "alert"
		}
		return "unknown"
	},
	"rfc3339": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Occupancy Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.idle { color: green; font-weight: bold; }
.sleeping { color: #888; }
.alert { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Occupancy Sensor <span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Power</th><td id="power-state" class="{{stateClass .Power.State}}">{{.Power.State}}</td></tr>
<tr><th>Occupied</th><td>{{if .Power.Period.Active}}yes, since {{rfc3339 .Power.Period.Start}}{{else}}no{{end}}</td></tr>
<tr><th>Net seconds</th><td id="net-seconds">{{.Power.Accumulator.NetSeconds}}</td></tr>
<tr><th>Gross seconds</th><td id="gross-seconds">{{.Power.Accumulator.GrossSeconds}}</td></tr>
{{if .LastTransition}}<tr><th>Last transition</th><td id="last-transition">{{.LastTransition.From}} &rarr; {{.LastTransition.To}} at {{rfc3339 .LastTransition.Time}}</td></tr>{{end}}
</table>

<h2>Wakes</h2>
<table>
<tr><th>Last wake</th><td>{{.Power.LastWake}}</td></tr>
{{range .Wakes}}<tr><th>{{.Reason}}</th><td>{{.Count}}</td></tr>
{{end}}<tr><th>Sleep cycles</th><td>{{.Power.SleepCycles}}</td></tr>
<tr><th>Wake timeouts</th><td>{{.Power.WakeTimeouts}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Node</th><td>{{.Config.NodeID}}</td></tr>
<tr><th>Session</th><td>{{.Config.SessionID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{rfc3339 .StartTime}}</td></tr>
<tr><th>Debounce</th><td>{{.Power.DebounceMin}}min</td></tr>
<tr><th>Sensitivity</th><td>{{.Config.Sensitivity}}</td></tr>
<tr><th>Sleep</th><td>{{.Config.SleepSeconds}}s</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/history.json">History</a> &middot; <a href="/metrics">Metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var stateEl = document.getElementById("power-state");
  var netEl = document.getElementById("net-seconds");
  var grossEl = document.getElementById("gross-seconds");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function stateClass(s) {
    if (s === "IDLE") return "idle";
    if (s === "SLEEPING") return "sleeping";
    if (s === "ERROR" || s === "LOW_BATTERY") return "alert";
    return "unknown";
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        if (msg.type === "transition" && msg.transition) {
          stateEl.textContent = msg.transition.to;
          stateEl.className = stateClass(msg.transition.to);
        } else if (msg.type === "period_closed" && msg.period) {
          netEl.textContent = msg.period.net_seconds;
          grossEl.textContent = msg.period.gross_seconds;
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

type wakeRow struct {
	Reason string
	Count  int
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Wakes  []wakeRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for _, r := range logic.WakeReasons {
		data.Wakes = append(data.Wakes, wakeRow{Reason: r.String(), Count: snap.Power.WakeCounts[r]})
	}
	indexTmpl.Execute(w, data)
}
