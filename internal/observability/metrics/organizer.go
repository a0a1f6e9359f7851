package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

// OrganizerMetrics records reconciliation outcomes and pass timings.
type OrganizerMetrics struct {
	service string

	outcomesTotal  *prometheus.CounterVec
	passesTotal    *prometheus.CounterVec
	passDuration   prometheus.Histogram
	pendingTrips   prometheus.Gauge
	lastPassFinish prometheus.Gauge
}

func NewOrganizerMetrics(service string, registerer prometheus.Registerer) *OrganizerMetrics {
	outcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facture",
			Subsystem: "organizer",
			Name:      "outcomes_total",
			Help:      "Reconciliation outcomes by kind.",
		},
		[]string{"service", "outcome"},
	)
	passesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facture",
			Subsystem: "organizer",
			Name:      "passes_total",
			Help:      "Completed reconciliation passes by status.",
		},
		[]string{"service", "status"},
	)
	passDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "facture",
			Subsystem:   "organizer",
			Name:        "pass_duration_seconds",
			Help:        "Reconciliation pass duration in seconds.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	pendingTrips := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "facture",
			Subsystem:   "organizer",
			Name:        "pending_trips",
			Help:        "Staged trips still waiting for a weekend invoice after the last pass.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	lastPassFinish := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "facture",
			Subsystem:   "organizer",
			Name:        "last_pass_timestamp_seconds",
			Help:        "Unix time the last reconciliation pass finished.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registerer.MustRegister(outcomesTotal, passesTotal, passDuration, pendingTrips, lastPassFinish)

	return &OrganizerMetrics{
		service:        service,
		outcomesTotal:  outcomesTotal,
		passesTotal:    passesTotal,
		passDuration:   passDuration,
		pendingTrips:   pendingTrips,
		lastPassFinish: lastPassFinish,
	}
}

func (m *OrganizerMetrics) ObserveOutcome(kind domain.OutcomeKind) {
	m.outcomesTotal.WithLabelValues(m.service, string(kind)).Inc()
}

func (m *OrganizerMetrics) ObservePass(summary domain.ReconcileSummary, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.passesTotal.WithLabelValues(m.service, status).Inc()
	m.passDuration.Observe(duration.Seconds())
	m.pendingTrips.Set(float64(summary.Pending))
	m.lastPassFinish.SetToCurrentTime()
}
