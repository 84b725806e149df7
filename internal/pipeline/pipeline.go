// Package pipeline runs the honeypot deployment stages in order and
// aggregates their results.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/stage"
)

// Stage is one step of the pipeline. Run never panics on expected failures
// and reports them in the returned Result.
type Stage interface {
	Name() string
	Run(ctx context.Context) stage.Result
}

// Hook observes a finished run. Hook failures are logged, never fatal.
type Hook func(ctx context.Context, report *Report) error

// Report is the outcome of one pipeline run.
type Report struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Results  []stage.Result `json:"results"`
}

// Failed reports whether any stage failed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status == stage.StatusFailed {
			return true
		}
	}
	return false
}

// Err joins every stage error, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Pipeline runs stages sequentially. A failed stage never prevents later
// stages from running.
type Pipeline struct {
	stages []Stage
	hooks  []Hook
	log    *logging.Logger
	now    func() time.Time

	// announce logs the deployment start and completion lines.
	announce bool
}

// New creates a Pipeline over stages. It logs no deployment banner; use
// NewDeployment for a full run.
func New(log *logging.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, log: log, now: time.Now}
}

// NewDeployment creates a Pipeline that brackets the run with the deployment
// start and completion messages.
func NewDeployment(log *logging.Logger, stages ...Stage) *Pipeline {
	p := New(log, stages...)
	p.announce = true
	return p
}

// AddHook registers h to run after every stage has finished.
func (p *Pipeline) AddHook(h Hook) {
	p.hooks = append(p.hooks, h)
}

// Run executes every stage in order. Cancellation of ctx is the only thing
// that stops the remaining stages.
func (p *Pipeline) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: p.now(),
		Results: make([]stage.Result, 0, len(p.stages)),
	}
	log := p.log.With("run_id", report.RunID)

	if p.announce {
		log.Info("Honeynet deployment starting...")
	}

	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			log.Warning("Deployment interrupted before %s: %v", s.Name(), err)
			break
		}

		start := p.now()
		res := s.Run(ctx)
		if res.Stage == "" {
			res.Stage = s.Name()
		}
		res.Duration = p.now().Sub(start)
		report.Results = append(report.Results, res)
	}

	report.Finished = p.now()

	for _, h := range p.hooks {
		if err := h(ctx, report); err != nil {
			log.Warning("Post-run hook failed: %v", err)
		}
	}

	if p.announce {
		log.Info("Honeynet deployment completed!")
	}
	return report
}
