package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("quill/auth/service")

// Metrics counts auth outcomes. A nil *Metrics records nothing.
type Metrics struct {
	logins        *prometheus.CounterVec
	registrations prometheus.Counter
	refreshes     *prometheus.CounterVec
	mfa           *prometheus.CounterVec
	logouts       prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_auth_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"result"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quill_auth_registrations_total",
			Help: "Accounts created through registration.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_auth_refreshes_total",
			Help: "Refresh token rotations by outcome.",
		}, []string{"result"}),
		mfa: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_auth_mfa_verifications_total",
			Help: "MFA challenge answers by method and outcome.",
		}, []string{"method", "result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quill_auth_logouts_total",
			Help: "Logout requests.",
		}),
	}
	reg.MustRegister(m.logins, m.registrations, m.refreshes, m.mfa, m.logouts)
	return m
}

// Login outcomes.
const (
	resultSuccess      = "success"
	resultMFARequired  = "mfa_required"
	resultFailure      = "failure"
	resultInvalidCode  = "invalid_code"
	resultLockedOut    = "locked_out"
	resultInvalidToken = "invalid_token"
)

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) registered() {
	if m != nil {
		m.registrations.Inc()
	}
}

func (m *Metrics) refresh(result string) {
	if m != nil {
		m.refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) mfaAnswer(method, result string) {
	if m != nil {
		m.mfa.WithLabelValues(method, result).Inc()
	}
}

func (m *Metrics) logout() {
	if m != nil {
		m.logouts.Inc()
	}
}
