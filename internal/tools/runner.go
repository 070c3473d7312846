package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// ExitNotFound is reported when the binary could not be started at all.
const ExitNotFound = 127

// Result captures one finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Lines returns the non-empty trimmed lines of stdout.
func (r Result) Lines() []string {
	var out []string
	for _, line := range strings.Split(string(r.Stdout), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// CommandRunner abstracts command execution for host adapters.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, err
	}

	res.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		res.ExitCode = ExitNotFound
	}
	return res, err
}
