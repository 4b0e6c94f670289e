// Package metrics exposes Prometheus counters for the session lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authkeeper"

// Refresh results
const (
	RefreshOK      = "ok"
	RefreshInvalid = "invalid"
	RefreshExpired = "expired"
	RefreshReused  = "reused"
	RefreshError   = "error"
)

// Revocation scopes
const (
	ScopeFamily = "family"
	ScopeUser   = "user"
)

// Auth counters. A nil *Auth is valid and records nothing
type Auth struct {
	logins      prometheus.Counter
	refresh     *prometheus.CounterVec
	reuse       prometheus.Counter
	revocations *prometheus.CounterVec
}

func NewAuth(reg prometheus.Registerer) *Auth {
	factory := promauto.With(reg)

	return &Auth{
		logins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Sessions created by login",
		}),
		refresh: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh token rotations by result",
		}, []string{"result"}),
		reuse: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reuse_detected_total",
			Help:      "Presentations of already revoked refresh tokens",
		}),
		revocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Refresh tokens revoked by scope",
		}, []string{"scope"}),
	}
}

func (m *Auth) Login() {
	if m == nil {
		return
	}
	m.logins.Inc()
}

func (m *Auth) Refresh(result string) {
	if m == nil {
		return
	}
	m.refresh.WithLabelValues(result).Inc()
}

func (m *Auth) ReuseDetected() {
	if m == nil {
		return
	}
	m.reuse.Inc()
}

func (m *Auth) Revoked(scope string, tokens int64) {
	if m == nil || tokens <= 0 {
		return
	}
	m.revocations.WithLabelValues(scope).Add(float64(tokens))
}
