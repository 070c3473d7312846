package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/headctl/internal/command"
	"github.com/danmuck/headctl/internal/display"
	"github.com/danmuck/headctl/internal/focus"
	"github.com/danmuck/headctl/internal/observability"
	"github.com/danmuck/headctl/internal/scene"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilHost      = errors.New("orchestrator: nil display host")
	ErrNilCatalog   = errors.New("orchestrator: nil scene catalog")
	ErrStopped      = errors.New("orchestrator: stopped")
	ErrUnknownInput = errors.New("orchestrator: unsupported command")
)

const (
	StatusRunning   = "running"
	StatusStopped   = "stopped"
	StatusActive    = "active"
	StatusMinimized = "minimized"
)

// Host is the display host surface the orchestrator drives.
type Host interface {
	Launch(ctx context.Context, name, cmd string, args []string) (display.Window, error)
	Terminate(name string) error
	Window(name string) (display.Window, bool)
	Running() []string
}

type Catalog interface {
	Known(name string) bool
	New(name string) (scene.Scene, error)
}

// CommandSource produces commands and connectivity until ctx is cancelled.
type CommandSource interface {
	Run(ctx context.Context, commands chan<- command.Envelope, status chan<- bool) error
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, name, status string) error
}

type Config struct {
	DefaultScene    string
	Tick            time.Duration
	QueueSize       int
	FailFast        bool
	PublishStatus   bool
	StatusTimeout   time.Duration
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultScene:    scene.Idle,
		Tick:            time.Second,
		QueueSize:       32,
		PublishStatus:   true,
		StatusTimeout:   time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

type Deps struct {
	Host      Host
	Focus     focus.Delegate
	Catalog   Catalog
	Source    CommandSource
	Publisher StatusPublisher
}

// Orchestrator keeps exactly one scene focused. Dispatch, Tick,
// OnConnectivity and Shutdown must be called from one goroutine; Run is
// that goroutine in production.
type Orchestrator struct {
	cfg       Config
	host      Host
	focus     focus.Delegate
	catalog   Catalog
	source    CommandSource
	publisher StatusPublisher

	commands chan command.Envelope
	status   chan bool

	active    ActiveScene
	builtins  map[string]scene.Scene
	connected bool

	busCancel context.CancelFunc
	busDone   chan error

	snapshot atomic.Pointer[Snapshot]
	stopped  chan struct{}
	stopOnce sync.Once
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Host == nil {
		return nil, ErrNilHost
	}
	if deps.Catalog == nil {
		return nil, ErrNilCatalog
	}
	if deps.Focus == nil {
		deps.Focus = focus.Noop{}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	o := &Orchestrator{
		cfg:       cfg,
		host:      deps.Host,
		focus:     deps.Focus,
		catalog:   deps.Catalog,
		source:    deps.Source,
		publisher: deps.Publisher,
		commands:  make(chan command.Envelope, cfg.QueueSize),
		status:    make(chan bool, cfg.QueueSize),
		builtins:  make(map[string]scene.Scene),
		stopped:   make(chan struct{}),
	}
	o.publishSnapshot()
	return o, nil
}

// Active returns the current active scene.
func (o *Orchestrator) Active() ActiveScene {
	return o.active
}

// Dispatch applies one command. Errors are scoped to that command.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd command.AppCommand) error {
	var err error
	switch c := cmd.(type) {
	case command.Start:
		err = o.start(ctx, c)
	case command.Stop:
		err = o.stop(ctx, c.Name)
	case command.Switch:
		err = o.switchTo(ctx, c.Name)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownInput, cmd)
	}
	o.publishSnapshot()

	kind := "unknown"
	if cmd != nil {
		kind = string(cmd.Kind())
	}
	observability.RecordCommand(kind, outcome(err))
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, display.ErrAlreadyRunning):
		return "already_running"
	case errors.Is(err, display.ErrNotFound):
		return "not_found"
	case errors.Is(err, display.ErrLaunchFailure):
		return "launch_failure"
	default:
		return "error"
	}
}

func (o *Orchestrator) start(ctx context.Context, c command.Start) error {
	win, err := o.host.Launch(ctx, c.Name, c.Command, c.Args)
	if err != nil {
		return err
	}
	if c.Builtin() {
		if o.catalog.Known(c.Name) {
			inst, err := o.builtin(c.Name)
			if err != nil {
				return err
			}
			inst.Attach(win.Surface)
		} else {
			log.Warn().Str("scene", c.Name).Msg("orchestrator.start builtin launch for unknown scene")
		}
	}
	o.publish(ctx, c.Name, StatusRunning)

	if o.active.IsNone() {
		o.active = Named(c.Name)
		o.applyFocus(ctx, win, true)
		o.publish(ctx, c.Name, StatusActive)
	} else {
		o.applyFocus(ctx, win, false)
		o.publish(ctx, c.Name, StatusMinimized)
	}
	log.Info().
		Str("scene", c.Name).
		Str("command", c.Command).
		Str("active", o.active.String()).
		Msg("orchestrator.start launched")
	return nil
}

func (o *Orchestrator) stop(ctx context.Context, name string) error {
	err := o.host.Terminate(name)
	if errors.Is(err, display.ErrNotFound) {
		return err
	}
	if inst, ok := o.builtins[name]; ok {
		inst.Detach()
	}
	if o.active.Is(name) {
		o.active = None()
	}
	o.publish(ctx, name, StatusStopped)
	log.Info().
		Str("scene", name).
		Str("active", o.active.String()).
		AnErr("error", err).
		Msg("orchestrator.stop terminated")
	return err
}

func (o *Orchestrator) switchTo(ctx context.Context, name string) error {
	// A running name is switched to as-is, even when it shadows a built-in.
	win, running := o.host.Window(name)
	switch {
	case running:
	case o.catalog.Known(name):
		inst, err := o.builtin(name)
		if err != nil {
			return err
		}
		win, err = o.host.Launch(ctx, name, command.BuiltinCommand, nil)
		if err != nil {
			return err
		}
		inst.Attach(win.Surface)
		o.publish(ctx, name, StatusRunning)
	default:
		log.Info().Str("scene", name).Msg("orchestrator.switch ignored unknown scene")
		return nil
	}

	if prev, ok := o.active.Name(); ok && prev != name {
		if win, ok := o.host.Window(prev); ok {
			o.applyFocus(ctx, win, false)
		}
		o.publish(ctx, prev, StatusMinimized)
	}
	o.applyFocus(ctx, win, true)
	o.active = Named(name)
	o.publish(ctx, name, StatusActive)
	log.Info().Str("scene", name).Msg("orchestrator.switch focused")
	return nil
}

// builtin returns the cached instance for name, creating it on first use.
func (o *Orchestrator) builtin(name string) (scene.Scene, error) {
	if inst, ok := o.builtins[name]; ok {
		return inst, nil
	}
	inst, err := o.catalog.New(name)
	if err != nil {
		return nil, err
	}
	if aware, ok := inst.(scene.ConnectivityAware); ok {
		aware.SetConnectivity(o.connected)
	}
	o.builtins[name] = inst
	log.Debug().Str("scene", name).Msg("orchestrator.builtin created")
	return inst, nil
}

func (o *Orchestrator) applyFocus(ctx context.Context, win display.Window, raise bool) {
	var err error
	action := "minimize"
	if raise {
		action = "focus"
		err = o.focus.Focus(ctx, win)
	} else {
		err = o.focus.Minimize(ctx, win)
	}
	if err != nil {
		log.Warn().Err(err).Str("scene", win.Name).Str("action", action).Msg("orchestrator.applyFocus failed")
	}
}

func (o *Orchestrator) publish(ctx context.Context, name, status string) {
	if !o.cfg.PublishStatus || o.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StatusTimeout)
	defer cancel()
	if err := o.publisher.PublishStatus(ctx, name, status); err != nil {
		log.Debug().Err(err).Str("scene", name).Str("status", status).Msg("orchestrator.publish failed")
	}
}

// Tick renders the active built-in scene, if any. A built-in name held by
// a plain process has no surface and is skipped. Render failures are logged
// and counted only.
func (o *Orchestrator) Tick() {
	name, ok := o.active.Name()
	if !ok {
		return
	}
	inst, ok := o.builtins[name]
	if !ok {
		return
	}
	if win, ok := o.host.Window(name); !ok || win.Surface == nil {
		return
	}
	if err := inst.Render(); err != nil {
		observability.RecordRenderFailure(name)
		log.Warn().Err(err).Str("scene", name).Msg("orchestrator.Tick render failed")
	}
}

// OnConnectivity records the latest bus connectivity and forwards it to
// every cached scene that displays it.
func (o *Orchestrator) OnConnectivity(connected bool) {
	if o.connected != connected {
		log.Info().Bool("connected", connected).Msg("orchestrator.OnConnectivity changed")
	}
	o.connected = connected
	for _, inst := range o.builtins {
		if aware, ok := inst.(scene.ConnectivityAware); ok {
			aware.SetConnectivity(connected)
		}
	}
}
