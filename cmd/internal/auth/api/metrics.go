package authapi

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/internal/auth/session"
)

// Metrics counts lifecycle operations by outcome. Reuse detections get
// their own counter; they are the signal worth alerting on.
type Metrics struct {
	ops   *prometheus.CounterVec
	reuse prometheus.Counter
}

// NewMetrics registers the auth collectors on reg (nil skips registration,
// useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_auth_operations_total",
			Help: "Auth lifecycle operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		reuse: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidtube_auth_refresh_reuse_total",
			Help: "Refresh tokens presented after consumption or revocation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.reuse)
	}
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, outcomeLabel(err)).Inc()
	if errors.Is(err, session.ErrTokenReuseOrRevoked) {
		m.reuse.Inc()
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, session.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, session.ErrExpiredToken):
		return "token_expired"
	case errors.Is(err, session.ErrTokenReuseOrRevoked):
		return "token_reuse_or_revoked"
	case errors.Is(err, session.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, session.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
