// Package metrics exposes Prometheus counters for the security core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "schedkeeper"

// Login outcomes.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
	LoginLocked  = "locked"
)

// Metrics holds the process counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	logins         *prometheus.CounterVec
	lockouts       prometheus.Counter
	resetRequests  *prometheus.CounterVec
	resetConsumed  *prometheus.CounterVec
	messagesSent   prometheus.Counter
	inboxFailures  *prometheus.CounterVec
	inboxDelivered prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"result"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "account_lockouts_total",
			Help: "Accounts locked after reaching the failed login threshold.",
		}),
		resetRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "password_reset_requests_total",
			Help: "Password reset requests by outcome.",
		}, []string{"outcome"}),
		resetConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "password_reset_completions_total",
			Help: "Password reset completions by result.",
		}, []string{"result"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_sent_total",
			Help: "Hybrid-encrypted messages stored.",
		}),
		inboxFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "inbox_decrypt_failures_total",
			Help: "Inbox messages replaced by a placeholder, by message format.",
		}, []string{"format"}),
		inboxDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "inbox_messages_decrypted_total",
			Help: "Inbox messages decrypted successfully.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.logins, m.lockouts, m.resetRequests, m.resetConsumed,
		m.messagesSent, m.inboxFailures, m.inboxDelivered,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Metrics) ResetRequested(outcome string) {
	if m == nil {
		return
	}
	m.resetRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ResetCompleted(ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "ok"
	}
	m.resetConsumed.WithLabelValues(result).Inc()
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) InboxDecrypted() {
	if m == nil {
		return
	}
	m.inboxDelivered.Inc()
}

func (m *Metrics) InboxFailure(format string) {
	if m == nil {
		return
	}
	m.inboxFailures.WithLabelValues(format).Inc()
}
