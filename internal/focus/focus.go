// Package focus raises and minimizes scene windows through a swappable
// platform delegate.
package focus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/danmuck/headctl/internal/display"
	"github.com/danmuck/headctl/internal/tools"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownBackend = errors.New("focus: unknown backend")
	ErrUnavailable    = errors.New("focus: backend unavailable")
)

const (
	BackendAuto    = "auto"
	BackendXDoTool = "xdotool"
	BackendNone    = "none"
)

// Delegate performs platform focus operations for a scene window.
type Delegate interface {
	Focus(ctx context.Context, w display.Window) error
	Minimize(ctx context.Context, w display.Window) error
	Name() string
}

// Select picks the delegate for backend. "auto" uses xdotool when an X
// display and the binary are both present, and no-op focus otherwise.
func Select(backend string, runner tools.CommandRunner) (Delegate, error) {
	return selectBackend(backend, runner, exec.LookPath, os.Getenv)
}

func selectBackend(
	backend string,
	runner tools.CommandRunner,
	lookPath func(string) (string, error),
	getenv func(string) string,
) (Delegate, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = BackendAuto
	}
	xdoAvailable := func() (string, bool) {
		if getenv("DISPLAY") == "" {
			return "", false
		}
		path, err := lookPath("xdotool")
		return path, err == nil
	}

	switch backend {
	case BackendNone:
		return Noop{}, nil
	case BackendXDoTool, "x11":
		path, ok := xdoAvailable()
		if !ok {
			return nil, fmt.Errorf("%w: xdotool needs DISPLAY and the xdotool binary", ErrUnavailable)
		}
		return NewXDoTool(path, runner), nil
	case BackendAuto:
		if path, ok := xdoAvailable(); ok {
			return NewXDoTool(path, runner), nil
		}
		log.Info().Msg("focus.Select auto fell back to noop")
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Noop accepts every request. Used headless and for terminal-only heads.
type Noop struct{}

func (Noop) Focus(_ context.Context, w display.Window) error {
	log.Debug().Str("scene", w.Name).Msg("focus.Noop.Focus")
	return nil
}

func (Noop) Minimize(_ context.Context, w display.Window) error {
	log.Debug().Str("scene", w.Name).Msg("focus.Noop.Minimize")
	return nil
}

func (Noop) Name() string { return BackendNone }
