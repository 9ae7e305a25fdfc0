package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// DefaultMetricsConfig returns default metrics configuration.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"}
}

// Collector exposes every Prometheus metric the orchestrator records.
//
// It is never reached through a package-level global: the orchestrator
// facade is constructed with one explicitly, records through it directly,
// and passes it to the monitor. The scheduler, concurrency controller, pool
// and lifecycle manager do not record metrics.
type Collector struct {
	config *MetricsConfig

	tasksTotal        *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	activeAgents      prometheus.Gauge
	queueDepth        prometheus.Gauge
	pendingTasks      prometheus.Gauge
	poolHits          prometheus.Counter
	poolMisses        prometheus.Counter
	lifecycleEvents   *prometheus.CounterVec
	waveSize          prometheus.Histogram
	resourcePressure  prometheus.Gauge
	alertsTotal       *prometheus.CounterVec
}

// NewCollector creates a Collector. If !config.Enabled, every metric is a
// nil-backed no-op so Record calls elsewhere never need an Enabled check of
// their own.
func NewCollector(config *MetricsConfig) *Collector {
	if config == nil {
		config = DefaultMetricsConfig()
	}
	if !config.Enabled {
		return &Collector{config: config}
	}

	registry := prometheus.NewRegistry()
	f := promauto.With(registry)

	return &Collector{
		config: config,
		tasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmctl_subtasks_total",
			Help: "Sub-tasks by terminal status.",
		}, []string{"status"}),
		taskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swarmctl_subtask_duration_seconds",
			Help:    "Sub-task wall time from inProgress to terminal.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmctl_errors_total",
			Help: "Errors by originating component.",
		}, []string{"component"}),
		activeAgents: f.NewGauge(prometheus.GaugeOpts{
			Name: "swarmctl_active_agents",
			Help: "Sub-agents currently working, thinking, or waiting for user input.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "swarmctl_concurrency_queue_depth",
			Help: "Sub-task starts currently queued awaiting an admission slot.",
		}),
		pendingTasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "swarmctl_pending_subtasks",
			Help: "Sub-tasks not yet terminal across all orchestrations.",
		}),
		poolHits: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmctl_pool_hits_total",
			Help: "acquireOrCreate calls satisfied by a recycled idle sub-agent.",
		}),
		poolMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmctl_pool_misses_total",
			Help: "acquireOrCreate calls that created a new sub-agent.",
		}),
		lifecycleEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmctl_lifecycle_transitions_total",
			Help: "Lifecycle transitions by resulting state.",
		}, []string{"state"}),
		waveSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "swarmctl_wave_size",
			Help:    "optimalWaveSize result per scheduling tick.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
		resourcePressure: f.NewGauge(prometheus.GaugeOpts{
			Name: "swarmctl_resource_pressure",
			Help: "Current resource pressure level: 0=normal 1=elevated 2=high 3=critical.",
		}),
		alertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmctl_monitor_alerts_total",
			Help: "Monitor alerts emitted by severity.",
		}, []string{"severity"}),
	}
}

// Handler returns the Prometheus scrape handler, or nil if metrics are disabled.
func (c *Collector) Handler() http.Handler {
	if c == nil || !c.config.Enabled {
		return nil
	}
	return promhttp.Handler()
}

func (c *Collector) RecordSubtaskCompleted(status string, d time.Duration) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.tasksTotal.WithLabelValues(status).Inc()
	c.taskDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (c *Collector) RecordError(component string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.errorsTotal.WithLabelValues(component).Inc()
}

func (c *Collector) SetActiveAgents(n int) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.activeAgents.Set(float64(n))
}

func (c *Collector) SetQueueDepth(n int) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.queueDepth.Set(float64(n))
}

func (c *Collector) SetPendingTasks(n int) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.pendingTasks.Set(float64(n))
}

func (c *Collector) RecordPoolHit() {
	if c == nil || !c.config.Enabled {
		return
	}
	c.poolHits.Inc()
}

func (c *Collector) RecordPoolMiss() {
	if c == nil || !c.config.Enabled {
		return
	}
	c.poolMisses.Inc()
}

func (c *Collector) RecordLifecycleTransition(state string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.lifecycleEvents.WithLabelValues(state).Inc()
}

func (c *Collector) ObserveWaveSize(n int) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.waveSize.Observe(float64(n))
}

func (c *Collector) SetResourcePressure(level int) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.resourcePressure.Set(float64(level))
}

func (c *Collector) RecordAlert(severity string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.alertsTotal.WithLabelValues(severity).Inc()
}
