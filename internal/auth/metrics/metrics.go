// Package metrics exposes service counters in the Prometheus format.
package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warden"

// Metrics holds every collector the service updates. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prom.Registry

	otpSent     *prom.CounterVec
	otpVerified *prom.CounterVec
	keyRotation prom.Counter
	sessions    *prom.CounterVec
}

// New registers the service collectors, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prom.NewRegistry()
	m := &Metrics{
		registry: reg,
		otpSent: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "send_total",
			Help:      "OTP send requests by channel and result.",
		}, []string{"channel", "result"}),
		otpVerified: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "verify_total",
			Help:      "OTP verifications by result.",
		}, []string{"result"}),
		keyRotation: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "signing_key",
			Name:      "rotations_total",
			Help:      "Signing keys generated and published by this instance.",
		}),
		sessions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Refresh-token chain events: issued, rotated, rejected, revoked.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.otpSent,
		m.otpVerified,
		m.keyRotation,
		m.sessions,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prom.Registry { return m.registry }

func (m *Metrics) OtpSent(channel, result string) {
	if m == nil {
		return
	}
	m.otpSent.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) OtpVerified(result string) {
	if m == nil {
		return
	}
	m.otpVerified.WithLabelValues(result).Inc()
}

func (m *Metrics) KeyRotated() {
	if m == nil {
		return
	}
	m.keyRotation.Inc()
}

// Session event names.
const (
	SessionIssued   = "issued"
	SessionRotated  = "rotated"
	SessionRejected = "rejected"
	SessionRevoked  = "revoked"
)

func (m *Metrics) Session(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}
