package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

const namespace = "accident_alert"

var (
	ingestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Ingestion calls, partitioned by variant and outcome.",
		},
		[]string{"variant", "outcome"},
	)

	reportsPersistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_persisted_total",
			Help:      "Accident reports written to the store.",
		},
		[]string{"source", "severity"},
	)

	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Channel dispatch attempts, partitioned by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	dispatchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_seconds",
			Help:      "Channel dispatch latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"channel"},
	)
)

// Register attaches the collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ingestionsTotal,
		reportsPersistedTotal,
		dispatchTotal,
		dispatchSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// Recorder satisfies the ingestion and dispatch observer interfaces.
type Recorder struct{}

func (Recorder) ObserveIngestion(variant, outcome string) {
	ingestionsTotal.WithLabelValues(variant, outcome).Inc()
}

func (Recorder) ObservePersisted(r models.AccidentReport) {
	reportsPersistedTotal.WithLabelValues(string(r.Source), string(r.Severity)).Inc()
}

func (Recorder) ObserveDispatch(channel models.Channel, outcome string, elapsed time.Duration) {
	dispatchTotal.WithLabelValues(string(channel), outcome).Inc()
	if outcome == "skipped" {
		return
	}
	if elapsed < 0 {
		elapsed = 0
	}
	dispatchSeconds.WithLabelValues(string(channel)).Observe(elapsed.Seconds())
}
