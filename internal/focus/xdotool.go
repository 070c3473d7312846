package focus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/danmuck/headctl/internal/display"
	"github.com/danmuck/headctl/internal/tools"
	"github.com/rs/zerolog/log"
)

// XDoTool drives X11 windows with the xdotool binary. Windows are looked up
// by the owning process id; terminal-hosted built-ins have no X window.
type XDoTool struct {
	bin    string
	runner tools.CommandRunner
}

func NewXDoTool(bin string, runner tools.CommandRunner) *XDoTool {
	if bin == "" {
		bin = "xdotool"
	}
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &XDoTool{bin: bin, runner: runner}
}

func (x *XDoTool) Name() string { return BackendXDoTool }

func (x *XDoTool) Focus(ctx context.Context, w display.Window) error {
	return x.each(ctx, w, "windowactivate")
}

func (x *XDoTool) Minimize(ctx context.Context, w display.Window) error {
	return x.each(ctx, w, "windowminimize")
}

func (x *XDoTool) each(ctx context.Context, w display.Window, action string) error {
	if display.IsTermHandle(w.Handle) {
		return nil
	}
	pid, ok := display.ParsePIDHandle(w.Handle)
	if !ok {
		return fmt.Errorf("%w: unsupported handle %q", ErrUnavailable, w.Handle)
	}

	// A search with no match exits 1; the app may not have mapped a window yet.
	res, err := x.runner.Run(ctx, x.bin, "search", "--pid", strconv.Itoa(pid))
	ids := res.Lines()
	if len(ids) == 0 {
		log.Debug().Err(err).Str("scene", w.Name).Int("pid", pid).Msg("focus.XDoTool no window")
		return nil
	}
	for _, id := range ids {
		if _, err := x.runner.Run(ctx, x.bin, action, id); err != nil {
			return fmt.Errorf("focus: xdotool %s %s: %w", action, id, err)
		}
	}
	log.Debug().Str("scene", w.Name).Str("action", action).Int("windows", len(ids)).Msg("focus.XDoTool applied")
	return nil
}
