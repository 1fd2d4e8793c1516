package captcha

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeDisabled = "disabled"
	outcomePassed   = "passed"
	outcomeRequired = "required"
	outcomeInvalid  = "invalid"
)

// Metrics tracks challenge issuance and evaluation outcomes.
type Metrics struct {
	ChallengesIssued prometheus.Counter
	Evaluations      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "registrar_captcha_challenges_issued_total",
			Help: "CAPTCHA challenges handed out",
		}),
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_captcha_evaluations_total",
			Help: "CAPTCHA evaluations by outcome",
		}, []string{"outcome"}),
	}
}
