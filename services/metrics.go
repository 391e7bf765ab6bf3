package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "bestsellers_etl"

// Metrics holds the collectors updated while a run progresses.
type Metrics struct {
	DatesProcessed     *prometheus.CounterVec
	ExtractionAttempts *prometheus.CounterVec
	LoadDuration       prometheus.Histogram
	RowsWritten        *prometheus.CounterVec
	LastSuccess        prometheus.Gauge
}

// NewMetrics builds the collectors and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DatesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dates_processed_total",
				Help:      "Requested dates processed, by outcome.",
			},
			[]string{"outcome"}, // loaded, skipped, failed
		),
		ExtractionAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "extraction_attempts_total",
				Help:      "Calls made to the bestsellers API, by result.",
			},
			[]string{"result"}, // ok, rate_limited, error
		),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of one warehouse load transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rows_written_total",
				Help:      "Rows affected per warehouse table.",
			},
			[]string{"table"},
		),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successfully loaded date.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.DatesProcessed, m.ExtractionAttempts, m.LoadDuration, m.RowsWritten, m.LastSuccess)
	}
	return m
}

func (m *Metrics) observeDate(outcome DateOutcome, at time.Time) {
	if m == nil {
		return
	}
	m.DatesProcessed.WithLabelValues(string(outcome)).Inc()
	if outcome == OutcomeLoaded {
		m.LastSuccess.Set(float64(at.Unix()))
	}
}

func (m *Metrics) observeAttempt(result string) {
	if m == nil {
		return
	}
	m.ExtractionAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) observeLoad(d time.Duration, res *LoadResult) {
	if m == nil {
		return
	}
	m.LoadDuration.Observe(d.Seconds())
	if res == nil {
		return
	}
	for table, n := range res.RowsByTable() {
		m.RowsWritten.WithLabelValues(table).Add(float64(n))
	}
}
