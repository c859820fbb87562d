package credential

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for credential rotation.
var (
	credentialsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snowball_credentials_total",
		Help: "Number of unique credentials loaded into the pool",
	})

	credentialFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowball_credential_failures_total",
		Help: "Total credential failures reported to the pool",
	})

	credentialCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowball_credential_cooldowns_total",
		Help: "Total number of times a credential was put into cooldown",
	})

	credentialForcedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowball_credential_forced_total",
		Help: "Selections that fell back to the first credential because all were cooling down",
	})
)
