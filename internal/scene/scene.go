package scene

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/danmuck/headctl/internal/display"
)

var (
	ErrDetached     = errors.New("scene: no surface attached")
	ErrUnknownScene = errors.New("scene: unknown built-in")
)

const (
	Debug = "debug"
	Idle  = "idle"
)

// Scene is a built-in display. Attach and Detach bracket the lifetime of one
// window; the scene value itself outlives them.
type Scene interface {
	Name() string
	Attach(s display.Surface)
	Detach()
	Render() error
}

// Builtins lists the built-in scene names.
func Builtins() []string {
	return []string{Debug, Idle}
}

// ConnectivityAware scenes show bus connectivity.
type ConnectivityAware interface {
	SetConnectivity(connected bool)
}

// Catalog lists the built-in scenes and builds instances on demand.
type Catalog struct {
	res   Resources
	build map[string]func(Resources) Scene
}

func NewCatalog(res Resources) *Catalog {
	return &Catalog{
		res: res,
		build: map[string]func(Resources) Scene{
			Debug: func(r Resources) Scene { return NewDebug(r) },
			Idle:  func(r Resources) Scene { return NewIdle(r) },
		},
	}
}

func (c *Catalog) Known(name string) bool {
	_, ok := c.build[name]
	return ok
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.build))
	for name := range c.build {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) New(name string) (Scene, error) {
	build, ok := c.build[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScene, name)
	}
	return build(c.res), nil
}

// base holds the attached surface shared by every built-in.
type base struct {
	name string
	mu   sync.Mutex
	surf display.Surface
}

func (b *base) Name() string { return b.name }

func (b *base) Attach(s display.Surface) {
	b.mu.Lock()
	b.surf = s
	b.mu.Unlock()
}

func (b *base) Detach() {
	b.mu.Lock()
	b.surf = nil
	b.mu.Unlock()
}

func (b *base) present(lines []string) error {
	b.mu.Lock()
	s := b.surf
	b.mu.Unlock()
	if s == nil {
		return fmt.Errorf("%w: %s", ErrDetached, b.name)
	}
	width, _ := s.Size()
	centered := make([]string, len(lines))
	for i, line := range lines {
		centered[i] = lipgloss.PlaceHorizontal(width, lipgloss.Center, line)
	}
	return s.Present(centered)
}
