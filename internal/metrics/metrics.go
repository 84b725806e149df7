// Package metrics exports pipeline run results in Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telhawk-systems/honeynet/internal/stage"
)

// Recorder holds the gauges of the most recent pipeline run.
type Recorder struct {
	registry *prometheus.Registry

	StageStatus   *prometheus.GaugeVec
	StageDuration *prometheus.GaugeVec
	LastRun       prometheus.Gauge
	LastRunFailed prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		StageStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "honeynet_stage_status",
				Help: "Outcome of the last run of each stage (1 ok, 0 skipped, -1 failed)",
			},
			[]string{"stage"},
		),
		StageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "honeynet_stage_duration_seconds",
				Help: "Wall time of the last run of each stage in seconds",
			},
			[]string{"stage"},
		),
		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "honeynet_last_run_timestamp_seconds",
				Help: "Unix time the last pipeline run finished",
			},
		),
		LastRunFailed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "honeynet_last_run_failed",
				Help: "1 if any stage of the last pipeline run failed",
			},
		),
	}

	r.registry.MustRegister(r.StageStatus, r.StageDuration, r.LastRun, r.LastRunFailed)
	return r
}

// Observe records a finished run.
func (r *Recorder) Observe(results []stage.Result, finished time.Time) {
	failed := 0.0
	for _, res := range results {
		r.StageStatus.WithLabelValues(res.Stage).Set(statusValue(res.Status))
		r.StageDuration.WithLabelValues(res.Stage).Set(res.Duration.Seconds())
		if res.Status == stage.StatusFailed {
			failed = 1
		}
	}
	r.LastRun.Set(float64(finished.Unix()))
	r.LastRunFailed.Set(failed)
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

func statusValue(s stage.Status) float64 {
	switch s {
	case stage.StatusOK:
		return 1
	case stage.StatusFailed:
		return -1
	default:
		return 0
	}
}
