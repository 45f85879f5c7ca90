package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks engine-level counters on a private registry so the
// /metrics endpoint only exposes what the engine itself produces.
type Collector struct {
	registry         *prometheus.Registry
	analysesRun      prometheus.Counter
	analysesFailed   prometheus.Counter
	analysisDuration prometheus.Histogram
	accountsFlagged  prometheus.Counter
	ringsDetected    prometheus.Counter
	scoreSpread      prometheus.Histogram
}

// NewCollector registers the engine metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		analysesRun: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "muling_analyses_total",
			Help: "Total number of completed analyses",
		}),
		analysesFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "muling_analyses_failed_total",
			Help: "Total number of analyses that returned an error",
		}),
		analysisDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "muling_analysis_duration_seconds",
			Help:    "Wall-clock time per analysis",
			Buckets: prometheus.DefBuckets,
		}),
		accountsFlagged: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "muling_suspicious_accounts_total",
			Help: "Accounts flagged across all analyses",
		}),
		ringsDetected: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "muling_fraud_rings_total",
			Help: "Fraud rings detected across all analyses",
		}),
		scoreSpread: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "muling_suspicion_score_distribution",
			Help:    "Distribution of reported suspicion scores",
			Buckets: []float64{10, 20, 40, 60, 80, 100},
		}),
	}
}

// RecordAnalysis records one finished analysis.
func (c *Collector) RecordAnalysis(duration time.Duration, flagged, rings int, scores []int) {
	c.analysesRun.Inc()
	c.analysisDuration.Observe(duration.Seconds())
	c.accountsFlagged.Add(float64(flagged))
	c.ringsDetected.Add(float64(rings))
	for _, score := range scores {
		c.scoreSpread.Observe(float64(score))
	}
}

// RecordFailure records one failed analysis.
func (c *Collector) RecordFailure() {
	c.analysesFailed.Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
