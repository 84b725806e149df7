// Package honeypot provisions, configures and controls a local Cowrie
// installation.
package honeypot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/process"
	"github.com/telhawk-systems/honeynet/internal/stage"
)

// Provisioner fetches the Cowrie source tree and prepares its virtualenv.
type Provisioner struct {
	cfg    *config.Config
	runner process.Runner
	log    *logging.Logger
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(cfg *config.Config, runner process.Runner, log *logging.Logger) *Provisioner {
	return &Provisioner{cfg: cfg, runner: runner, log: log}
}

func (p *Provisioner) Name() string { return "setup" }

// Run clones the source if absent, creates the virtualenv if absent, and
// always installs requirements into it. The first failing command ends the
// stage.
func (p *Provisioner) Run(ctx context.Context) stage.Result {
	hp := p.cfg.Honeypot
	p.log.Info("Starting Cowrie honeypot installation...")

	exists, err := dirExists(p.cfg.Path(hp.SourceDir))
	if err != nil {
		return p.fail(err)
	}
	if !exists {
		if err := p.run(ctx, "git", "clone", hp.RepoURL, hp.SourceDir); err != nil {
			return p.fail(err)
		}
		p.log.Info("Cowrie repository cloned successfully.")
	} else {
		p.log.Warning("Cowrie repository already exists, not cloning again.")
	}

	exists, err = dirExists(p.cfg.Path(hp.EnvDir))
	if err != nil {
		return p.fail(err)
	}
	if !exists {
		if err := p.run(ctx, hp.Python, "-m", "venv", hp.EnvDir); err != nil {
			return p.fail(err)
		}
		p.log.Info("Virtual environment created successfully.")
	}

	if err := p.run(ctx, EnvBinary(hp.EnvDir, "pip"), "install", "-r", hp.Requirements); err != nil {
		return p.fail(err)
	}
	p.log.Info("Dependencies installed successfully.")

	return stage.OK(p.Name(), "")
}

func (p *Provisioner) run(ctx context.Context, name string, args ...string) error {
	_, err := p.runner.Run(ctx, process.Command{Name: name, Args: args, Dir: p.cfg.Workdir})
	return err
}

func (p *Provisioner) fail(err error) stage.Result {
	p.log.Error("Error during Cowrie installation: %v", err)
	return stage.Failed(p.Name(), stage.ErrProvisioning, err)
}

// EnvBinary returns the path of an executable inside a virtualenv.
func EnvBinary(envDir, name string) string {
	return filepath.Join(envDir, "bin", name)
}

func dirExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}
