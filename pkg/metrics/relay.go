package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics records dispatch outcomes and delivery-partner call latency.
type RelayMetrics struct {
	dispatchSuccess *prometheus.CounterVec
	dispatchFailure *prometheus.CounterVec
	partnerDuration *prometheus.HistogramVec
	statusDropped   prometheus.Counter
}

// NewRelayMetrics registers the relay metrics on the provided registerer.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	dispatchSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_success_total",
		Help: "Successful order-to-delivery dispatches.",
	}, []string{"provider"})
	dispatchFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_failure_total",
		Help: "Failed order-to-delivery dispatches.",
	}, []string{"provider", "code"})
	partnerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "partner_call_duration_seconds",
		Help:    "Duration of delivery-partner API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	statusDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_status_updates_dropped_total",
		Help: "Provider status updates dropped for arriving out of order.",
	})
	reg.MustRegister(dispatchSuccess, dispatchFailure, partnerDuration, statusDropped)
	return &RelayMetrics{
		dispatchSuccess: dispatchSuccess,
		dispatchFailure: dispatchFailure,
		partnerDuration: partnerDuration,
		statusDropped:   statusDropped,
	}
}

// IncDispatchSuccess increments the success counter for the named provider.
func (m *RelayMetrics) IncDispatchSuccess(provider string) {
	if m == nil || m.dispatchSuccess == nil {
		return
	}
	m.dispatchSuccess.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncDispatchFailure increments the failure counter for the named provider and error code.
func (m *RelayMetrics) IncDispatchFailure(provider, code string) {
	if m == nil || m.dispatchFailure == nil {
		return
	}
	m.dispatchFailure.WithLabelValues(normalizeLabel(provider), normalizeLabel(code)).Inc()
}

// ObservePartnerCall records the duration for one provider API call.
func (m *RelayMetrics) ObservePartnerCall(provider, operation string, duration time.Duration) {
	if m == nil || m.partnerDuration == nil {
		return
	}
	m.partnerDuration.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncStatusDropped counts a stale provider update that was discarded.
func (m *RelayMetrics) IncStatusDropped() {
	if m == nil || m.statusDropped == nil {
		return
	}
	m.statusDropped.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
