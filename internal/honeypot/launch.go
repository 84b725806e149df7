package honeypot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/process"
	"github.com/telhawk-systems/honeynet/internal/stage"
)

// Directive is an argument understood by Cowrie's bin/cowrie control script.
type Directive string

const (
	DirectiveStart   Directive = "start"
	DirectiveStop    Directive = "stop"
	DirectiveStatus  Directive = "status"
	DirectiveRestart Directive = "restart"
)

// ParseDirective validates a directive name.
func ParseDirective(s string) (Directive, error) {
	switch d := Directive(strings.ToLower(s)); d {
	case DirectiveStart, DirectiveStop, DirectiveStatus, DirectiveRestart:
		return d, nil
	default:
		return "", fmt.Errorf("unknown honeypot directive %q", s)
	}
}

// Launcher drives Cowrie's control entry point through the virtualenv's
// interpreter.
type Launcher struct {
	cfg       *config.Config
	runner    process.Runner
	log       *logging.Logger
	directive Directive
}

// NewLauncher creates a Launcher that issues directive.
func NewLauncher(cfg *config.Config, runner process.Runner, log *logging.Logger, directive Directive) *Launcher {
	return &Launcher{cfg: cfg, runner: runner, log: log, directive: directive}
}

func (l *Launcher) Name() string { return string(l.directive) }

// Command returns the control invocation for the configured directive.
func (l *Launcher) Command() process.Command {
	hp := l.cfg.Honeypot
	return process.Command{
		Name: EnvBinary(hp.EnvDir, "python"),
		Args: []string{filepath.Join(hp.SourceDir, "bin", "cowrie"), string(l.directive)},
		Dir:  l.cfg.Workdir,
	}
}

// Run issues the directive. Exit status is the only success signal; a zero
// exit does not prove the honeypot is listening.
func (l *Launcher) Run(ctx context.Context) stage.Result {
	l.log.Info("Honeypot %s requested...", l.directive)

	res, err := l.runner.Run(ctx, l.Command())
	if err != nil {
		l.log.Error("Error running honeypot %s: %v", l.directive, err)
		return stage.Failed(l.Name(), stage.ErrLaunch, err)
	}

	l.log.Info("Honeypot %s completed successfully!", l.directive)
	return stage.OK(l.Name(), strings.TrimSpace(res.Stdout))
}
