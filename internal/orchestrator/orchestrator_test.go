package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/danmuck/headctl/internal/command"
	"github.com/danmuck/headctl/internal/display"
	"github.com/danmuck/headctl/internal/testutil/testlog"
)

func TestActiveScene(t *testing.T) {
	testlog.Start(t)
	if !None().IsNone() || None().String() != "none" {
		t.Fatalf("unexpected none")
	}
	a := Named("cam")
	if name, ok := a.Name(); !ok || name != "cam" || !a.Is("cam") || a.Is("idle") {
		t.Fatalf("unexpected named: %+v", a)
	}
}

func TestStartStartSwitchStopScenario(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)

	if err := h.dispatch(t, command.Start{Name: "cam", Command: "mpv", Args: []string{}}); err != nil {
		t.Fatalf("start cam: %v", err)
	}
	if !h.o.Active().Is("cam") {
		t.Fatalf("first start should become active, got %s", h.o.Active())
	}

	if err := h.dispatch(t, command.Start{Name: "map", Command: "navit", Args: []string{}}); err != nil {
		t.Fatalf("start map: %v", err)
	}
	if !h.o.Active().Is("cam") {
		t.Fatalf("second start must not steal focus, got %s", h.o.Active())
	}

	if err := h.dispatch(t, command.Switch{Name: "map"}); err != nil {
		t.Fatalf("switch map: %v", err)
	}
	if !h.o.Active().Is("map") {
		t.Fatalf("switch should activate map, got %s", h.o.Active())
	}

	if err := h.dispatch(t, command.Stop{Name: "map"}); err != nil {
		t.Fatalf("stop map: %v", err)
	}
	if !h.o.Active().IsNone() {
		t.Fatalf("stopping the active scene should clear it, got %s", h.o.Active())
	}
	if got := h.host.Running(); len(got) != 1 || got[0] != "cam" {
		t.Fatalf("unexpected running set: %v", got)
	}

	want := []string{
		"launch:cam", "focus:cam",
		"launch:map", "minimize:map",
		"minimize:cam", "focus:map",
		"terminate:map",
	}
	var got []string
	for _, e := range h.log.snapshot() {
		if !strings.HasPrefix(e, "status:") {
			got = append(got, e)
		}
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected event order:\n got %v\nwant %v", got, want)
	}
}

func TestStartDuplicateLeavesExisting(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	if err := h.dispatch(t, command.Start{Name: "cam", Command: "mpv"}); err != nil {
		t.Fatalf("start cam: %v", err)
	}
	before, _ := h.host.Window("cam")

	err := h.dispatch(t, command.Start{Name: "cam", Command: "vlc"})
	if !errors.Is(err, display.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	after, _ := h.host.Window("cam")
	if before.Handle != after.Handle || len(h.host.Running()) != 1 {
		t.Fatalf("duplicate start changed the registry")
	}
	if !h.o.Active().Is("cam") {
		t.Fatalf("duplicate start changed active scene")
	}
}

func TestStopUnknownIsNotFound(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	if err := h.dispatch(t, command.Stop{Name: "ghost"}); !errors.Is(err, display.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStopInactiveKeepsActive(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	h.dispatch(t, command.Start{Name: "cam", Command: "mpv"})
	h.dispatch(t, command.Start{Name: "map", Command: "navit"})
	if err := h.dispatch(t, command.Stop{Name: "map"}); err != nil {
		t.Fatalf("stop map: %v", err)
	}
	if !h.o.Active().Is("cam") {
		t.Fatalf("unexpected active: %s", h.o.Active())
	}
}

func TestSwitchUnknownIsNoop(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	h.dispatch(t, command.Start{Name: "cam", Command: "mpv"})
	events := len(h.log.snapshot())

	if err := h.dispatch(t, command.Switch{Name: "nowhere"}); err != nil {
		t.Fatalf("unexpected switch error: %v", err)
	}
	if !h.o.Active().Is("cam") || len(h.log.snapshot()) != events {
		t.Fatalf("unknown switch had side effects: %v", h.log.snapshot())
	}
}

func TestSwitchBuiltinLaunchesAndRenders(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	h.dispatch(t, command.Start{Name: "cam", Command: "mpv"})

	if err := h.dispatch(t, command.Switch{Name: "debug"}); err != nil {
		t.Fatalf("switch debug: %v", err)
	}
	if !h.o.Active().Is("debug") {
		t.Fatalf("unexpected active: %s", h.o.Active())
	}
	if h.log.index("minimize:cam") < 0 || h.log.index("focus:debug") < 0 {
		t.Fatalf("expected cam minimized and debug focused: %v", h.log.snapshot())
	}

	h.o.OnConnectivity(true)
	h.o.Tick()
	frame := h.host.surface("debug").last()
	if !strings.Contains(frame, "Hostname: head-01") || !strings.Contains(frame, "Bus Status: Connected") {
		t.Fatalf("unexpected frame: %q", frame)
	}
}

func TestBuiltinInstanceSurvivesRestart(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	h.dispatch(t, command.Switch{Name: "debug"})
	h.o.OnConnectivity(true)

	if err := h.dispatch(t, command.Stop{Name: "debug"}); err != nil {
		t.Fatalf("stop debug: %v", err)
	}
	if err := h.dispatch(t, command.Start{Name: "debug", Command: command.BuiltinCommand}); err != nil {
		t.Fatalf("restart debug: %v", err)
	}
	if !h.o.Active().Is("debug") {
		t.Fatalf("restarted builtin should become active, got %s", h.o.Active())
	}
	h.o.Tick()
	if frame := h.host.surface("debug").last(); !strings.Contains(frame, "Bus Status: Connected") {
		t.Fatalf("connectivity lost across restart: %q", frame)
	}
	if snap := h.o.Snapshot(); len(snap.Builtins) != 1 || snap.Builtins[0] != "debug" {
		t.Fatalf("unexpected builtins: %v", snap.Builtins)
	}
}

func TestBuiltinCreatedAfterConnectivityChange(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	h.o.OnConnectivity(true)
	h.dispatch(t, command.Switch{Name: "debug"})
	h.o.Tick()
	if frame := h.host.surface("debug").last(); !strings.Contains(frame, "Bus Status: Connected") {
		t.Fatalf("new builtin missed current connectivity: %q", frame)
	}
}

func TestSwitchToRunningApp(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	h.dispatch(t, command.Switch{Name: "idle"})
	h.dispatch(t, command.Start{Name: "cam", Command: "mpv"})
	if !h.o.Active().Is("idle") {
		t.Fatalf("unexpected active: %s", h.o.Active())
	}
	if err := h.dispatch(t, command.Switch{Name: "cam"}); err != nil {
		t.Fatalf("switch cam: %v", err)
	}
	if !h.o.Active().Is("cam") {
		t.Fatalf("unexpected active: %s", h.o.Active())
	}
}

func TestTickRenderFailureIsNotFatal(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	h.host.presentErr = errBoom
	h.dispatch(t, command.Switch{Name: "idle"})
	h.o.Tick()
	h.o.Tick()
	if !h.o.Active().Is("idle") {
		t.Fatalf("render failure changed active scene")
	}
}

func TestTickWithoutBuiltinActive(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	h.o.Tick()
	h.dispatch(t, command.Start{Name: "cam", Command: "mpv"})
	h.o.Tick()
}

func TestStatusPublishedAfterDispatch(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	h.dispatch(t, command.Start{Name: "cam", Command: "mpv"})
	h.dispatch(t, command.Stop{Name: "cam"})
	for _, want := range []string{"status:cam=running", "status:cam=active", "status:cam=stopped"} {
		if h.log.index(want) < 0 {
			t.Fatalf("missing %s in %v", want, h.log.snapshot())
		}
	}
}

func TestStatusPublishDisabled(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.PublishStatus = false
	h := newHarness(t, cfg, nil)
	h.dispatch(t, command.Start{Name: "cam", Command: "mpv"})
	for _, e := range h.log.snapshot() {
		if strings.HasPrefix(e, "status:") {
			t.Fatalf("unexpected status publish: %s", e)
		}
	}
}

func TestSingleFocusInvariantAcrossSequence(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	seq := []command.AppCommand{
		command.Start{Name: "a", Command: "x"},
		command.Start{Name: "b", Command: "x"},
		command.Switch{Name: "debug"},
		command.Switch{Name: "b"},
		command.Stop{Name: "a"},
		command.Start{Name: "a", Command: "x"},
		command.Stop{Name: "b"},
		command.Switch{Name: "idle"},
		command.Stop{Name: "idle"},
		command.Switch{Name: "a"},
		command.Stop{Name: "debug"},
	}
	for _, cmd := range seq {
		_ = h.dispatch(t, cmd)
	}
	if !h.o.Active().Is("a") {
		t.Fatalf("unexpected final active: %s", h.o.Active())
	}
}

func TestNewRequiresHostAndCatalog(t *testing.T) {
	testlog.Start(t)
	if _, err := New(testConfig(), Deps{Catalog: testCatalog()}); !errors.Is(err, ErrNilHost) {
		t.Fatalf("expected ErrNilHost, got %v", err)
	}
	if _, err := New(testConfig(), Deps{Host: newFakeHost(&eventLog{})}); !errors.Is(err, ErrNilCatalog) {
		t.Fatalf("expected ErrNilCatalog, got %v", err)
	}
}

func TestDispatchNilCommand(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	if err := h.o.Dispatch(context.Background(), nil); !errors.Is(err, ErrUnknownInput) {
		t.Fatalf("expected ErrUnknownInput, got %v", err)
	}
}

func TestDecodedPaddedNamesResolveToOneScene(t *testing.T) {
	testlog.Start(t)
	host := display.NewHost(display.DefaultHostConfig(), nil, display.NewTermWindows(io.Discard))
	o, err := New(testConfig(), Deps{Host: host, Catalog: testCatalog()})
	if err != nil {
		t.Fatalf("unexpected new error: %v", err)
	}
	ctx := context.Background()
	decode := func(kind command.Kind, body string) command.AppCommand {
		t.Helper()
		cmd, err := command.Decode(kind, []byte(body))
		if err != nil {
			t.Fatalf("decode %s: %v", kind, err)
		}
		return cmd
	}

	if err := o.Dispatch(ctx, decode(command.KindStart, `{"name":" cam ","command":"true"}`)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !o.Active().Is("cam") {
		t.Fatalf("unexpected active: %q", o.Active().String())
	}
	if got := host.Running(); len(got) != 1 || got[0] != "cam" {
		t.Fatalf("unexpected running set: %v", got)
	}

	if err := o.Dispatch(ctx, decode(command.KindStop, `{"name":" cam "}`)); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !o.Active().IsNone() || len(host.Running()) != 0 {
		t.Fatalf("stop left state behind: active=%s running=%v", o.Active(), host.Running())
	}

	if err := o.Dispatch(ctx, decode(command.KindStart, `{"name":"map ","command":"true"}`)); err != nil {
		t.Fatalf("start map: %v", err)
	}
	if !o.Active().Is("map") {
		t.Fatalf("next start should become active, got %s", o.Active())
	}
}

func TestSwitchToBuiltinNameHeldByProcess(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	before := renderFailures(t, "idle")

	h.dispatch(t, command.Start{Name: "cam", Command: "mpv"})
	if err := h.dispatch(t, command.Start{Name: "idle", Command: "xclock"}); err != nil {
		t.Fatalf("start idle process: %v", err)
	}
	if err := h.dispatch(t, command.Switch{Name: "idle"}); err != nil {
		t.Fatalf("switch idle: %v", err)
	}
	if !h.o.Active().Is("idle") {
		t.Fatalf("unexpected active: %s", h.o.Active())
	}
	if _, ok := h.o.builtins["idle"]; ok {
		t.Fatalf("builtin instance created for a process-held name")
	}
	h.o.Tick()
	if got := renderFailures(t, "idle") - before; got != 0 {
		t.Fatalf("unexpected render failures: %v", got)
	}
}

func TestTickSkipsDetachedBuiltin(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, testConfig(), nil)
	before := renderFailures(t, "debug")

	h.dispatch(t, command.Switch{Name: "debug"})
	h.dispatch(t, command.Stop{Name: "debug"})
	if err := h.dispatch(t, command.Start{Name: "debug", Command: "xterm"}); err != nil {
		t.Fatalf("start debug process: %v", err)
	}
	if !h.o.Active().Is("debug") {
		t.Fatalf("unexpected active: %s", h.o.Active())
	}
	h.o.Tick()
	if got := renderFailures(t, "debug") - before; got != 0 {
		t.Fatalf("unexpected render failures: %v", got)
	}
}
