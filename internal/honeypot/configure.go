package honeypot

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/stage"
)

// Configurator appends the custom settings block to cowrie.cfg.
type Configurator struct {
	cfg *config.Config
	log *logging.Logger
}

// NewConfigurator creates a Configurator.
func NewConfigurator(cfg *config.Config, log *logging.Logger) *Configurator {
	return &Configurator{cfg: cfg, log: log}
}

func (c *Configurator) Name() string { return "configure" }

// CustomBlock is the text appended to the honeypot configuration.
func CustomBlock(hostname string) string {
	return fmt.Sprintf("\n# Custom Configuration\nhostname = '%s'\n", hostname)
}

// Run appends CustomBlock to the configuration file. Existing content is
// never rewritten; an absent file is skipped.
func (c *Configurator) Run(_ context.Context) stage.Result {
	path := c.cfg.Path(c.cfg.Honeypot.ConfigFile)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.log.Warning("Configuration file not found!")
			return stage.Skipped(c.Name(), "configuration file not found")
		}
		return c.fail(err)
	}

	c.log.Info("Updating Cowrie configuration file...")
	if err := appendFile(path, CustomBlock(c.cfg.Honeypot.Hostname)); err != nil {
		return c.fail(err)
	}
	c.log.Info("Configuration file updated successfully.")

	return stage.OK(c.Name(), path)
}

func (c *Configurator) fail(err error) stage.Result {
	c.log.Error("Error updating configuration file: %v", err)
	return stage.Failed(c.Name(), stage.ErrConfiguration, err)
}

func appendFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
