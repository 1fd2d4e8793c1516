package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeDeferred = "deferred"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics provides observability for the accounts module.
type Metrics struct {
	Registrations          *prometheus.CounterVec
	SuperusersBootstrapped prometheus.Counter
	Activations            prometheus.Counter
	RegisterDuration       prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		SuperusersBootstrapped: factory.NewCounter(prometheus.CounterOpts{
			Name: "registrar_superusers_bootstrapped_total",
			Help: "Accounts that became the first superuser",
		}),
		Activations: factory.NewCounter(prometheus.CounterOpts{
			Name: "registrar_account_activations_total",
			Help: "Accounts activated by an administrator",
		}),
		RegisterDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_register_duration_seconds",
			Help:    "Duration of Register operations including validation and persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncRegistration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSuperuserBootstrapped() {
	m.SuperusersBootstrapped.Inc()
}

func (m *Metrics) IncActivation() {
	m.Activations.Inc()
}

// ObserveRegister records a Register duration. Call with time.Now() taken at
// the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}
