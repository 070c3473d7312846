package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/danmuck/headctl/internal/command"
	"github.com/danmuck/headctl/internal/display"
	"github.com/danmuck/headctl/internal/scene"
	"github.com/prometheus/client_golang/prometheus"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) index(event string) int {
	for i, e := range l.snapshot() {
		if e == event {
			return i
		}
	}
	return -1
}

type fakeSurface struct {
	mu     sync.Mutex
	frames []string
	err    error
}

func (s *fakeSurface) Present(lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, strings.Join(lines, "\n"))
	return nil
}

func (s *fakeSurface) Size() (int, int) { return 40, 10 }

func (s *fakeSurface) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return ""
	}
	return s.frames[len(s.frames)-1]
}

type fakeHost struct {
	mu         sync.Mutex
	log        *eventLog
	running    map[string]display.Window
	surfaces   map[string]*fakeSurface
	presentErr error
	nextPID    int
	// stopErr fails Terminate for a name after it has been removed, as a
	// process that cannot be reaped does.
	stopErr  map[string]error
	attempts map[string]int
}

func newFakeHost(log *eventLog) *fakeHost {
	return &fakeHost{
		log:      log,
		running:  make(map[string]display.Window),
		surfaces: make(map[string]*fakeSurface),
		stopErr:  make(map[string]error),
		attempts: make(map[string]int),
	}
}

func (h *fakeHost) Launch(_ context.Context, name, cmd string, _ []string) (display.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.running[name]; ok {
		return display.Window{}, fmt.Errorf("%w: %s", display.ErrAlreadyRunning, name)
	}
	w := display.Window{Name: name}
	if cmd == command.BuiltinCommand {
		surf := &fakeSurface{err: h.presentErr}
		h.surfaces[name] = surf
		w.Handle = "term:" + name
		w.Surface = surf
	} else {
		h.nextPID++
		w.PID = 100 + h.nextPID
		w.Handle = fmt.Sprintf("pid:%d", w.PID)
	}
	h.running[name] = w
	h.log.add("launch:%s", name)
	return w, nil
}

func (h *fakeHost) Terminate(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[name]++
	if _, ok := h.running[name]; !ok {
		return fmt.Errorf("%w: %s", display.ErrNotFound, name)
	}
	delete(h.running, name)
	h.log.add("terminate:%s", name)
	return h.stopErr[name]
}

func (h *fakeHost) Window(name string) (display.Window, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.running[name]
	return w, ok
}

func (h *fakeHost) Running() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.running))
	for name := range h.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *fakeHost) surface(name string) *fakeSurface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.surfaces[name]
}

type fakeFocus struct {
	log *eventLog
}

func (f fakeFocus) Focus(_ context.Context, w display.Window) error {
	f.log.add("focus:%s", w.Name)
	return nil
}

func (f fakeFocus) Minimize(_ context.Context, w display.Window) error {
	f.log.add("minimize:%s", w.Name)
	return nil
}

func (fakeFocus) Name() string { return "fake" }

type fakePublisher struct {
	log *eventLog
}

func (p fakePublisher) PublishStatus(_ context.Context, name, status string) error {
	p.log.add("status:%s=%s", name, status)
	return nil
}

// fakeSource replays scripted items and then waits for cancellation.
type fakeSource struct {
	log     *eventLog
	status  []bool
	cmds    []command.AppCommand
	late    []command.AppCommand
	exitErr error
	exitNow bool
}

func (s *fakeSource) Run(ctx context.Context, commands chan<- command.Envelope, status chan<- bool) error {
	for _, v := range s.status {
		status <- v
	}
	for _, c := range s.cmds {
		commands <- command.Wrap("app/"+string(c.Kind()), c)
	}
	if s.exitNow {
		s.log.add("source-exit")
		return s.exitErr
	}
	<-ctx.Done()
	for _, c := range s.late {
		commands <- command.Wrap("app/"+string(c.Kind()), c)
	}
	status <- false
	s.log.add("source-exit")
	return nil
}

func testCatalog() *scene.Catalog {
	return scene.NewCatalog(scene.Resources{
		Hostname: "head-01",
		Now:      func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.Local) },
		Text:     lipgloss.NewStyle(),
		Accent:   lipgloss.NewStyle(),
	})
}

type harness struct {
	o     *Orchestrator
	host  *fakeHost
	log   *eventLog
	ctx   context.Context
	check func()
}

func newHarness(t *testing.T, cfg Config, source CommandSource) *harness {
	t.Helper()
	log := &eventLog{}
	host := newFakeHost(log)
	o, err := New(cfg, Deps{
		Host:      host,
		Focus:     fakeFocus{log: log},
		Catalog:   testCatalog(),
		Source:    source,
		Publisher: fakePublisher{log: log},
	})
	if err != nil {
		t.Fatalf("unexpected new error: %v", err)
	}
	h := &harness{o: o, host: host, log: log, ctx: context.Background()}
	h.check = func() {
		t.Helper()
		if name, ok := o.Active().Name(); ok {
			if _, running := host.Window(name); !running {
				t.Fatalf("active scene %q is not running", name)
			}
		}
	}
	return h
}

func (h *harness) dispatch(t *testing.T, cmd command.AppCommand) error {
	t.Helper()
	err := h.o.Dispatch(h.ctx, cmd)
	h.check()
	return err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DefaultScene = ""
	cfg.Tick = 10 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errBoom = errors.New("boom")

// renderFailures reads the render failure counter for name from the default
// registry.
func renderFailures(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "headctl_orchestrator_render_failures_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "scene" && l.GetValue() == name {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
