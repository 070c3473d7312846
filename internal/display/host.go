package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/headctl/internal/command"
	"github.com/danmuck/headctl/internal/observability"
	"github.com/rs/zerolog/log"
)

const DefaultTerminateGrace = 2 * time.Second

type HostConfig struct {
	// TerminateGrace is how long a process gets after SIGTERM before SIGKILL.
	TerminateGrace time.Duration
}

func DefaultHostConfig() HostConfig {
	return HostConfig{TerminateGrace: DefaultTerminateGrace}
}

// Host launches and terminates scenes and keeps the running registry.
type Host struct {
	cfg      HostConfig
	spawner  Spawner
	windows  WindowSystem
	registry *Registry

	// launchMu serializes check-then-spawn so a name is never spawned twice.
	launchMu sync.Mutex
}

func NewHost(cfg HostConfig, spawner Spawner, windows WindowSystem) *Host {
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = DefaultTerminateGrace
	}
	return &Host{
		cfg:      cfg,
		spawner:  spawner,
		windows:  windows,
		registry: NewRegistry(),
	}
}

// Launch starts a scene. The sentinel command "true" opens a built-in window
// instead of spawning a process.
func (h *Host) Launch(ctx context.Context, name, cmd string, args []string) (Window, error) {
	if name == "" {
		return Window{}, fmt.Errorf("%w: empty scene name", ErrLaunchFailure)
	}
	h.launchMu.Lock()
	defer h.launchMu.Unlock()

	if h.registry.Contains(name) {
		log.Warn().Str("scene", name).Msg("display.Host.Launch rejected reason=already_running")
		return Window{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}

	var entry Entry
	if cmd == command.BuiltinCommand {
		if h.windows == nil {
			return Window{}, fmt.Errorf("%w: no window system for %s", ErrDisplayHost, name)
		}
		surface, err := h.windows.Open(name)
		if err != nil {
			return Window{}, fmt.Errorf("%w: open %s: %v", ErrDisplayHost, name, err)
		}
		entry.Window = Window{Name: name, Handle: termHandle(name), Surface: surface}
	} else {
		if h.spawner == nil {
			return Window{}, fmt.Errorf("%w: no spawner for %s", ErrDisplayHost, name)
		}
		proc, err := h.spawner.Spawn(ctx, cmd, args)
		if err != nil {
			log.Error().Err(err).Str("scene", name).Str("command", cmd).Msg("display.Host.Launch spawn failed")
			return Window{}, fmt.Errorf("%w: %s: %w", ErrLaunchFailure, name, err)
		}
		entry.Process = proc
		entry.Window = Window{Name: name, Handle: pidHandle(proc.PID()), PID: proc.PID()}
	}

	if err := h.registry.Insert(name, entry); err != nil {
		return Window{}, err
	}
	observability.SetRunningScenes(h.registry.Len())
	log.Info().
		Str("scene", name).
		Str("handle", entry.Window.Handle).
		Int("running", h.registry.Len()).
		Msg("display.Host.Launch started")
	return entry.Window, nil
}

// Terminate removes name from the registry and ends it: built-in windows are
// closed, processes get SIGTERM, then SIGKILL after the grace period, and are
// always reaped.
func (h *Host) Terminate(name string) error {
	entry, ok := h.registry.Take(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	observability.SetRunningScenes(h.registry.Len())

	var err error
	if entry.Process != nil {
		err = h.stopProcess(name, entry.Process)
	} else if entry.Window.Surface != nil && h.windows != nil {
		if cerr := h.windows.Close(name); cerr != nil {
			err = cerr
		}
	}
	log.Info().
		Str("scene", name).
		Int("running", h.registry.Len()).
		AnErr("error", err).
		Msg("display.Host.Terminate stopped")
	return err
}

func (h *Host) stopProcess(name string, proc Process) error {
	select {
	case <-proc.Done():
		return nil
	default:
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		log.Debug().Err(err).Str("scene", name).Msg("display.Host.stopProcess sigterm failed")
	}
	timer := time.NewTimer(h.cfg.TerminateGrace)
	defer timer.Stop()
	select {
	case <-proc.Done():
		return nil
	case <-timer.C:
	}

	log.Warn().Str("scene", name).Dur("grace", h.cfg.TerminateGrace).Msg("display.Host.stopProcess escalating to kill")
	var errs []error
	if err := proc.Kill(); err != nil {
		errs = append(errs, fmt.Errorf("%w: kill %s: %w", ErrDisplayHost, name, err))
	}
	reap := time.NewTimer(h.cfg.TerminateGrace)
	defer reap.Stop()
	select {
	case <-proc.Done():
	case <-reap.C:
		errs = append(errs, fmt.Errorf("%w: %s not reaped", ErrDisplayHost, name))
	}
	return errors.Join(errs...)
}

func (h *Host) Window(name string) (Window, bool) {
	entry, ok := h.registry.Get(name)
	return entry.Window, ok
}

func (h *Host) Running() []string {
	return h.registry.Names()
}
