package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application counters exported on /metrics.
type Metrics struct {
	checkins    *prometheus.CounterVec
	duplicates  prometheus.Counter
	projections *prometheus.CounterVec
}

// New registers the counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		checkins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendly_checkins_total",
			Help: "Accepted check-ins by derived status.",
		}, []string{"status"}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendly_checkin_duplicates_total",
			Help: "Check-ins rejected because one already existed for the day.",
		}),
		projections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendly_projections_total",
			Help: "Projection requests by outcome branch.",
		}, []string{"outcome"}),
	}
}

// NewNop returns a Metrics whose Record calls are no-ops, for tests.
func NewNop() *Metrics {
	return &Metrics{}
}

// RegisterDegradedGauge exports the tiered store's degraded flag.
func RegisterDegradedGauge(reg prometheus.Registerer, degraded func() bool) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "attendly_store_degraded",
		Help: "1 while the primary store is unreachable and the mirror serves.",
	}, func() float64 {
		if degraded() {
			return 1
		}
		return 0
	})
}

// RecordCheckIn counts one accepted check-in.
func (m *Metrics) RecordCheckIn(status string) {
	if m != nil && m.checkins != nil {
		m.checkins.WithLabelValues(status).Inc()
	}
}

// RecordDuplicate counts one rejected duplicate check-in.
func (m *Metrics) RecordDuplicate() {
	if m != nil && m.duplicates != nil {
		m.duplicates.Inc()
	}
}

// RecordProjection counts one projection request by outcome branch.
func (m *Metrics) RecordProjection(outcome string) {
	if m != nil && m.projections != nil {
		m.projections.WithLabelValues(outcome).Inc()
	}
}
