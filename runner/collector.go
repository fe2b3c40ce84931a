package runner

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tqbt"

// Collector counts runs for Prometheus. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	trades   *prometheus.CounterVec
	bars     prometheus.Counter
	ruined   prometheus.Counter
}

// NewCollector registers the run metrics on reg, or on a fresh registry
// when reg is nil.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Backtest runs by strategy and result",
		}, []string{"strategy", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of simulation plus metrics per run",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"strategy"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Closed trades by strategy",
		}, []string{"strategy"}),
		bars: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bars_simulated_total",
			Help:      "Bars stepped through by the simulator",
		}),
		ruined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ruined_runs_total",
			Help:      "Runs whose equity reached zero",
		}),
	}

	reg.MustRegister(c.runs, c.duration, c.trades, c.bars, c.ruined)
	return c
}

// Registry is the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) observe(o *Outcome) {
	if c == nil {
		return
	}
	strategy := o.Job.Strategy
	c.runs.WithLabelValues(strategy, "ok").Inc()
	c.duration.WithLabelValues(strategy).Observe(o.Elapsed.Seconds())
	c.trades.WithLabelValues(strategy).Add(float64(len(o.Result.Trades)))
	c.bars.Add(float64(len(o.Job.Series)))
	if o.Result.Ruined {
		c.ruined.Inc()
	}
}

func (c *Collector) fail(strategy string) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(strategy, "error").Inc()
}

// WriteTextfile writes the current metrics in the node_exporter textfile
// format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
