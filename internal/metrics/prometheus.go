package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_logins_started_total",
		Help: "Total number of login flows started.",
	})
	SuspiciousStateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_suspicious_state_total",
		Help: "Total number of callbacks carrying an unknown or replayed state token.",
	})
	ExchangeSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_exchange_success_total",
		Help: "Total number of successful code-for-token exchanges.",
	})
	ExchangeFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_exchange_failure_total",
		Help: "Total number of failed code-for-token exchanges.",
	})
	IntrospectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_introspections_total",
		Help: "Total number of token introspection calls made to the provider.",
	})
	RedirectConflictTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_redirect_conflict_total",
		Help: "Total number of login requests rejected for a conflicting redirect target.",
	})
)

// Register registers the broker metrics with the given registry.
// It should be called once at application startup.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	for _, c := range []prometheus.Collector{
		LoginsStartedTotal,
		SuspiciousStateTotal,
		ExchangeSuccessTotal,
		ExchangeFailureTotal,
		IntrospectionsTotal,
		RedirectConflictTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
}
