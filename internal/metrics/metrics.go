package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	MessagesObserved prometheus.Counter
	MatchCount       prometheus.Counter
	ForwardSuccesses prometheus.Counter
	ForwardFailures  prometheus.Counter
	ClaimConflicts   prometheus.Counter
	BackfillRuns     prometheus.Counter
	ProcessingTime   prometheus.Histogram
	KeywordCount     prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesObserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tg_monitor_relay_messages_observed",
			Help: "Total number of messages seen by the pipeline",
		}),
		MatchCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tg_monitor_relay_match_count",
			Help: "Total number of messages that matched at least one keyword",
		}),
		ForwardSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tg_monitor_relay_forward_successes",
			Help: "Total number of successful forwards",
		}),
		ForwardFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tg_monitor_relay_forward_failures",
			Help: "Total number of failed forward attempts",
		}),
		ClaimConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tg_monitor_relay_claim_conflicts",
			Help: "Total number of claims lost to another worker or duplicate delivery",
		}),
		BackfillRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tg_monitor_relay_backfill_runs",
			Help: "Total number of backfill reconciliation cycles",
		}),
		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tg_monitor_relay_processing_duration_seconds",
			Help:    "Time spent processing one message",
			Buckets: prometheus.DefBuckets,
		}),
		KeywordCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tg_monitor_relay_keyword_count",
			Help: "Number of keywords in the current matcher snapshot",
		}),
	}
}
