package process

import (
	"context"
	"sync"
)

// FakeRunner records commands instead of running them. Handler, when set,
// decides each command's outcome; otherwise every command succeeds.
type FakeRunner struct {
	Handler func(cmd Command) (Result, error)

	mu       sync.Mutex
	commands []Command
}

func (f *FakeRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}
	if f.Handler == nil {
		return Result{}, nil
	}
	return f.Handler(cmd)
}

// Commands returns every command seen so far, in order.
func (f *FakeRunner) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.commands))
	copy(out, f.commands)
	return out
}

// Fail returns a Handler that makes commands named name exit with code and
// stderr, and lets every other command succeed.
func Fail(name string, code int, stderr string) func(Command) (Result, error) {
	return func(cmd Command) (Result, error) {
		if cmd.Name != name {
			return Result{}, nil
		}
		res := Result{ExitCode: code, Stderr: stderr}
		return res, &ExitError{Command: cmd.String(), ExitCode: code, Stderr: stderr}
	}
}
