package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	CycleCount       prometheus.Counter
	CycleErrors      prometheus.Counter
	FetchFailures    prometheus.Counter
	RecordsCreated   prometheus.Counter
	MessagesDropped  prometheus.Counter
	AIResults        *prometheus.CounterVec
	ProcessingTime   prometheus.Histogram
	ActiveRecords    prometheus.Gauge
	CompletedRecords prometheus.Gauge
	PendingMessages  prometheus.Gauge
	RecordsArchived  prometheus.Counter
}

// NewMetrics creates new Prometheus metrics registered on reg; nil means the default registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CycleCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "mail_sticky_cycle_count",
			Help: "Total number of ingestion cycles run",
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mail_sticky_cycle_errors",
			Help: "Total number of ingestion cycles aborted by a mailbox error",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mail_sticky_fetch_failures",
			Help: "Total number of messages that could not be fetched or stored",
		}),
		RecordsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mail_sticky_records_created",
			Help: "Total number of records created from mail",
		}),
		MessagesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mail_sticky_messages_dropped",
			Help: "Total number of messages dropped by classification",
		}),
		AIResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_sticky_ai_results",
			Help: "Classifier and summarizer results by operation and mode",
		}, []string{"operation", "mode"}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_sticky_cycle_duration_seconds",
			Help:    "Time spent running ingestion cycles",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mail_sticky_active_records",
			Help: "Number of unarchived records not yet completed",
		}),
		CompletedRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mail_sticky_completed_records",
			Help: "Number of unarchived completed records",
		}),
		PendingMessages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mail_sticky_pending_messages",
			Help: "Number of messages waiting in the retry queue",
		}),
		RecordsArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "mail_sticky_records_archived",
			Help: "Total number of records archived",
		}),
	}
}
