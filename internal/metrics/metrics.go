// Package metrics exposes release activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kingrea/releasedesk/internal/order"
	"github.com/kingrea/releasedesk/internal/release"
)

const (
	namespace = "releasedesk"
	subsystem = "release"
)

// Recorder implements release.Recorder on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	orders       *prometheus.CounterVec
	runDuration  prometheus.Histogram
	running      prometheus.Gauge
}

// New registers the release collectors plus the Go and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		runsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_started_total",
				Help:      "Release runs started, by mode",
			},
			[]string{"mode"},
		),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_finished_total",
				Help:      "Release runs finished, by result",
			},
			[]string{"result"},
		),
		orders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_settled_total",
				Help:      "Orders settled by release runs, by final status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "run_duration_seconds",
				Help:      "Wall time of release runs",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		running: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "running",
				Help:      "1 while a release run holds the latch",
			},
		),
	}
}

func (r *Recorder) RunStarted(mode release.Mode) {
	r.runsStarted.WithLabelValues(string(mode)).Inc()
	r.running.Set(1)
}

func (r *Recorder) OrderSettled(status order.Status) {
	r.orders.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) RunFinished(summary release.Summary) {
	r.runsFinished.WithLabelValues(string(summary.Result)).Inc()
	var elapsed float64
	if !summary.StartedAt.IsZero() && summary.FinishedAt.After(summary.StartedAt) {
		elapsed = summary.FinishedAt.Sub(summary.StartedAt).Seconds()
	}
	r.runDuration.Observe(elapsed)
	r.running.Set(0)
}

// Registry is exposed for tests and for callers adding their own collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
