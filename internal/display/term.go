package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	defaultTermWidth  = 60
	defaultTermHeight = 12
)

// WindowSystem opens and closes surfaces for built-in scenes.
type WindowSystem interface {
	Open(name string) (Surface, error)
	Close(name string) error
}

// TermWindows draws built-in scene frames into a terminal. Each Present
// repaints the whole frame.
type TermWindows struct {
	mu     sync.Mutex
	out    io.Writer
	clear  bool
	width  int
	height int
	frame  lipgloss.Style
	title  lipgloss.Style
	open   map[string]*termSurface
}

func NewTermWindows(out io.Writer) *TermWindows {
	w := &TermWindows{
		out:    out,
		width:  defaultTermWidth,
		height: defaultTermHeight,
		open:   make(map[string]*termSurface),
		frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		w.clear = true
		if cols, rows, err := term.GetSize(int(f.Fd())); err == nil && cols > 4 && rows > 2 {
			w.width, w.height = cols-4, rows-2
		}
	}
	return w
}

func (w *TermWindows) Open(name string) (Surface, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.open[name]; ok {
		return nil, fmt.Errorf("%w: window %s already open", ErrDisplayHost, name)
	}
	s := &termSurface{name: name, windows: w}
	w.open[name] = s
	return s, nil
}

func (w *TermWindows) Close(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.open[name]
	if !ok {
		return fmt.Errorf("%w: window %s not open", ErrDisplayHost, name)
	}
	s.closed = true
	delete(w.open, name)
	return nil
}

func (w *TermWindows) render(s *termSurface, lines []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: window %s closed", ErrDisplayHost, s.name)
	}
	body := lines
	if len(body) > w.height {
		body = body[:w.height]
	}
	frame := w.frame.Width(w.width).Render(
		lipgloss.JoinVertical(lipgloss.Left, w.title.Render(s.name), strings.Join(body, "\n")),
	)

	var b strings.Builder
	if w.clear {
		b.WriteString("\x1b[H\x1b[2J")
	}
	b.WriteString(frame)
	b.WriteString("\n")
	if _, err := io.WriteString(w.out, b.String()); err != nil {
		return fmt.Errorf("%w: present %s: %v", ErrDisplayHost, s.name, err)
	}
	return nil
}

type termSurface struct {
	name    string
	windows *TermWindows
	closed  bool
}

func (s *termSurface) Present(lines []string) error {
	return s.windows.render(s, lines)
}

func (s *termSurface) Size() (int, int) {
	s.windows.mu.Lock()
	defer s.windows.mu.Unlock()
	return s.windows.width, s.windows.height
}
