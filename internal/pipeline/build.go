package pipeline

import (
	"context"

	"github.com/telhawk-systems/honeynet/internal/collector"
	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/forwarder"
	"github.com/telhawk-systems/honeynet/internal/honeypot"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/metrics"
	"github.com/telhawk-systems/honeynet/internal/notify"
	"github.com/telhawk-systems/honeynet/internal/process"
	"github.com/telhawk-systems/honeynet/internal/remote"
	"github.com/telhawk-systems/honeynet/internal/stage"
)

// Stages returns the deployment stages in their fixed order: setup,
// configure, start, collect, then the remote call and forwarding when
// enabled.
func Stages(cfg *config.Config, runner process.Runner, log *logging.Logger) []Stage {
	stages := []Stage{
		honeypot.NewProvisioner(cfg, runner, log),
		honeypot.NewConfigurator(cfg, log),
		honeypot.NewLauncher(cfg, runner, log, honeypot.DirectiveStart),
		collector.New(cfg, log),
	}

	if cfg.Remote.Enabled {
		stages = append(stages, remote.NewStage(cfg.Remote, log))
	}

	if cfg.Forward.OpenSearch.Enabled {
		stages = append(stages, ForwardStage(cfg, log))
	}

	return stages
}

// ForwardStage builds the OpenSearch forwarder, or a stage reporting why it
// could not be built.
func ForwardStage(cfg *config.Config, log *logging.Logger) Stage {
	f, err := forwarder.New(cfg, log)
	if err != nil {
		return failedStage{name: "forward", sentinel: stage.ErrForward, err: err, log: log}
	}
	return f
}

// Default assembles the full pipeline with the metrics and notification
// hooks the configuration asks for.
func Default(cfg *config.Config, runner process.Runner, log *logging.Logger) *Pipeline {
	p := NewDeployment(log, Stages(cfg, runner, log)...)

	if cfg.Metrics.Textfile != "" {
		p.AddHook(MetricsHook(cfg.Path(cfg.Metrics.Textfile)))
	}
	if cfg.Notify.NATS.Enabled {
		p.AddHook(NotifyHook(func() (notify.Publisher, error) {
			return notify.Connect(cfg.Notify.NATS)
		}))
	}

	return p
}

// MetricsHook writes the run's stage gauges to a Prometheus textfile.
func MetricsHook(path string) Hook {
	return func(_ context.Context, report *Report) error {
		rec := metrics.NewRecorder()
		rec.Observe(report.Results, report.Finished)
		return rec.WriteTextfile(path)
	}
}

// NotifyHook publishes the report through a publisher opened per run.
func NotifyHook(open func() (notify.Publisher, error)) Hook {
	return func(ctx context.Context, report *Report) error {
		pub, err := open()
		if err != nil {
			return err
		}
		defer pub.Close()
		return pub.PublishJSON(ctx, report)
	}
}

type failedStage struct {
	name     string
	sentinel error
	err      error
	log      *logging.Logger
}

func (s failedStage) Name() string { return s.name }

func (s failedStage) Run(context.Context) stage.Result {
	s.log.Error("Error preparing %s: %v", s.name, s.err)
	return stage.Failed(s.name, s.sentinel, s.err)
}
