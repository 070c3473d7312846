package scene

import (
	"fmt"
	"sync/atomic"
	"time"
)

// DebugScene shows host diagnostics and bus connectivity.
type DebugScene struct {
	base
	res       Resources
	connected atomic.Bool
}

func NewDebug(res Resources) *DebugScene {
	return &DebugScene{base: base{name: Debug}, res: res}
}

func (d *DebugScene) SetConnectivity(connected bool) {
	d.connected.Store(connected)
}

func (d *DebugScene) Connected() bool {
	return d.connected.Load()
}

// Lines returns the frame content. Unavailable probes render as such rather
// than failing the frame.
func (d *DebugScene) Lines() []string {
	ip := "unavailable"
	uptime := "unavailable"
	if d.res.Probe != nil {
		if v, err := d.res.Probe.LocalIP(); err == nil {
			ip = v
		}
		if v, err := d.res.Probe.Uptime(); err == nil {
			uptime = formatUptime(v)
		}
	}
	status := "Disconnected"
	if d.Connected() {
		status = "Connected"
	}
	return []string{
		d.res.Text.Render("Hostname: " + d.res.Hostname),
		d.res.Text.Render("IP Address: " + ip),
		d.res.Text.Render("Uptime: " + uptime),
		d.res.Accent.Render("Bus Status: " + status),
	}
}

func (d *DebugScene) Render() error {
	return d.present(d.Lines())
}

func formatUptime(v time.Duration) string {
	secs := int64(v / time.Second)
	return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
}
