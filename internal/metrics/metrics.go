// Package metrics exposes harness events as Prometheus series.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/harness"
)

const namespace = "lancet"

// Recorder implements harness.Recorder on a private registry. A nil
// *Recorder discards every event.
type Recorder struct {
	registry  *prometheus.Registry
	scenarios *prometheus.CounterVec
	durations *prometheus.HistogramVec
	actions   *prometheus.CounterVec
	dialogs   *prometheus.CounterVec
	logger    *zap.Logger
}

var _ harness.Recorder = (*Recorder)(nil)

// New registers the lancet collectors on a fresh registry.
func New(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Scenarios finished, by status.",
		}, []string{"status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall time of each scenario.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"scenario"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Page actions performed, by action and outcome.",
		}, []string{"action", "outcome"}),
		dialogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogs_total",
			Help:      "Native dialogs observed, by type and outcome.",
		}, []string{"type", "outcome"}),
		logger: logger.Named("metrics"),
	}
	r.registry.MustRegister(r.scenarios, r.durations, r.actions, r.dialogs)
	return r
}

// Registry returns the registry holding the lancet collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ActionObserved(action string, err error) {
	if r == nil {
		return
	}
	r.actions.WithLabelValues(action, outcome(err)).Inc()
}

func (r *Recorder) DialogObserved(typ browser.DialogType, outcome string) {
	if r == nil {
		return
	}
	r.dialogs.WithLabelValues(string(typ), outcome).Inc()
}

func (r *Recorder) ScenarioObserved(name, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.scenarios.WithLabelValues(status).Inc()
	r.durations.WithLabelValues(name).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// Push sends the collected series to a Pushgateway, grouped by run id.
// It is a no-op when url is empty.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	if r == nil || url == "" {
		return nil
	}
	if job == "" {
		job = namespace
	}
	pusher := push.New(url, job).Gatherer(r.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	r.logger.Debug("Metrics pushed.", zap.String("url", url), zap.String("job", job))
	return nil
}
