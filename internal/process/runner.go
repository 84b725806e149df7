// Package process runs external commands and reports their exit status and
// captured output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Command is a single external process invocation. Args never pass through a
// shell.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the observable outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q returned non-zero exit status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Runner executes commands. A non-zero exit yields an *ExitError together
// with the captured Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec. When Output is set, the child's
// stdout and stderr are also streamed to it as they are produced.
type ExecRunner struct {
	Output io.Writer
}

// NewExecRunner returns a Runner backed by os/exec that only captures output.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// NewStreamingRunner returns an ExecRunner that captures output and copies it
// to w.
func NewStreamingRunner(w io.Writer) *ExecRunner {
	return &ExecRunner{Output: w}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if r.Output != nil {
		out := &lockedWriter{w: r.Output}
		c.Stdout = io.MultiWriter(&stdout, out)
		c.Stderr = io.MultiWriter(&stderr, out)
	}

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("failed to run %q: %w", cmd.String(), err)
	}
}

// lockedWriter lets the stdout and stderr copy goroutines share one writer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
