package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grocerybot/assistant/internal/domain"
	"github.com/grocerybot/assistant/internal/usecase"
)

// Metrics records session and driver activity on its own registry.
// It satisfies both driver.Observer and usecase.SessionObserver.
type Metrics struct {
	registry *prometheus.Registry

	items       *prometheus.CounterVec
	runs        *prometheus.CounterVec
	remaining   prometheus.Gauge
	commands    *prometheus.CounterVec
	responses   *prometheus.CounterVec
	driverWait  *prometheus.HistogramVec
	runDuration prometheus.Histogram
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grocerybot_items_total",
				Help: "List items finished, by outcome",
			},
			[]string{"outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grocerybot_runs_total",
				Help: "Shopping sessions finished, by how they ended",
			},
			[]string{"result"},
		),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grocerybot_items_remaining",
			Help: "Items left unresolved by the last run",
		}),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grocerybot_driver_commands_total",
				Help: "Commands written to the driver, by action",
			},
			[]string{"action"},
		),
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grocerybot_driver_responses_total",
				Help: "Driver answers, by command action and response type",
			},
			[]string{"action", "type"},
		),
		driverWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grocerybot_driver_wait_seconds",
				Help:    "Time from command to driver answer",
				Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900},
			},
			[]string{"action"},
		),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grocerybot_run_duration_seconds",
			Help:    "Wall time of a shopping session",
			Buckets: prometheus.ExponentialBuckets(10, 3, 7),
		}),
	}

	m.registry.MustRegister(
		m.items, m.runs, m.remaining,
		m.commands, m.responses, m.driverWait, m.runDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CommandSent(action domain.Action) {
	m.commands.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) ResponseReceived(action domain.Action, responseType string, wait time.Duration) {
	m.responses.WithLabelValues(string(action), responseType).Inc()
	m.driverWait.WithLabelValues(string(action)).Observe(wait.Seconds())
}

func (m *Metrics) ItemFinished(outcome usecase.ItemOutcome) {
	m.items.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) RunFinished(summary usecase.RunSummary) {
	result := "completed"
	if summary.Quit {
		result = "quit"
	}
	m.runs.WithLabelValues(result).Inc()
	m.remaining.Set(float64(summary.Remaining))
	m.runDuration.Observe(summary.Duration.Seconds())
}
