package display

import (
	"strconv"
	"strings"
)

const (
	handlePIDPrefix  = "pid:"
	handleTermPrefix = "term:"
)

// Surface is a drawable area owned by a built-in scene window.
type Surface interface {
	Present(lines []string) error
	Size() (width, height int)
}

// Window identifies a running scene for focus operations. Handle is
// "pid:<n>" for launched processes and "term:<name>" for built-in windows.
type Window struct {
	Name    string
	Handle  string
	PID     int
	Surface Surface
}

func (w Window) Builtin() bool {
	return w.Surface != nil
}

func pidHandle(pid int) string {
	return handlePIDPrefix + strconv.Itoa(pid)
}

func termHandle(name string) string {
	return handleTermPrefix + name
}

// ParsePIDHandle returns the process id encoded in a "pid:<n>" handle.
func ParsePIDHandle(handle string) (int, bool) {
	raw, ok := strings.CutPrefix(handle, handlePIDPrefix)
	if !ok {
		return 0, false
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func IsTermHandle(handle string) bool {
	return strings.HasPrefix(handle, handleTermPrefix)
}
