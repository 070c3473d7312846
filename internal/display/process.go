package display

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Process is a launched host process. Done closes once it has been reaped.
type Process interface {
	PID() int
	Signal(sig os.Signal) error
	Kill() error
	Done() <-chan struct{}
	Err() error
}

// Spawner starts host processes for launched scenes.
type Spawner interface {
	Spawn(ctx context.Context, command string, args []string) (Process, error)
}

// ExecSpawner starts processes with os/exec. The child outlives the launch
// context; only Host.Terminate ends it.
type ExecSpawner struct {
	Stdout io.Writer
	Stderr io.Writer
	Env    []string
}

func (s ExecSpawner) Spawn(ctx context.Context, command string, args []string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(command, args...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go p.reap()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (p *execProcess) reap() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig os.Signal) error {
	err := p.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

// Err is the wait result once Done is closed.
func (p *execProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
