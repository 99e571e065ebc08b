// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Total number of calls to the verification provider",
		},
		[]string{"operation", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "provider_call_duration_seconds",
			Help: "Duration of provider calls in seconds",
		},
		[]string{"operation"},
	)

	StepTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_step_transitions_total",
			Help: "Total number of verification step transitions",
		},
		[]string{"step", "status"},
	)

	WebhooksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Total number of webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)
)
