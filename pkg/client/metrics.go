package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts refresh outcomes and session clears. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	refreshes *prometheus.CounterVec
	clears    *prometheus.CounterVec
	expiry    prometheus.Gauge
}

// NewMetrics registers the client collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_refresh_total",
			Help: "Total number of token refresh attempts by result",
		}, []string{"result"}),
		clears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_session_cleared_total",
			Help: "Total number of times the session was cleared, by reason",
		}, []string{"reason"}),
		expiry: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authclient_token_expiry_seconds",
			Help: "Unix time at which the current access token expires, 0 when signed out",
		}),
	}
	for _, c := range []prometheus.Collector{m.refreshes, m.clears, m.expiry} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) refreshed(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) cleared(reason string) {
	if m == nil {
		return
	}
	m.clears.WithLabelValues(reason).Inc()
	m.expiry.Set(0)
}

func (m *Metrics) expiresAt(unix int64) {
	if m == nil {
		return
	}
	m.expiry.Set(float64(unix))
}
