package scene

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SystemProbe reports host facts shown by the debug scene.
type SystemProbe interface {
	LocalIP() (string, error)
	Uptime() (time.Duration, error)
}

// Resources is built once at startup and shared read-only by scenes.
type Resources struct {
	Hostname string
	Probe    SystemProbe
	Now      func() time.Time
	Text     lipgloss.Style
	Accent   lipgloss.Style
}

func NewResources() Resources {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "unknown"
	}
	return Resources{
		Hostname: host,
		Probe:    HostProbe{},
		Now:      time.Now,
		Text:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Accent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
	}
}

func (r Resources) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// HostProbe reads the local host.
type HostProbe struct{}

// LocalIP returns the first non-loopback IPv4 address.
func (HostProbe) LocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", errors.New("scene: no non-loopback ipv4 address")
}

func (HostProbe) Uptime() (time.Duration, error) {
	raw, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, err
	}
	return parseProcUptime(string(raw))
}

func parseProcUptime(raw string) (time.Duration, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, fmt.Errorf("scene: empty uptime")
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("scene: parse uptime: %w", err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
