// Package metrics registers the server's prometheus collectors and
// serves them on /metrics, mirroring the debug HTTP surface the teacher
// wires up in internal/adapter/http/router.go, trimmed to the counters
// and gauges this server actually produces (spec.md section 2.5's
// ambient observability, carried regardless of spec.md's Non-goals).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server updates.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	CommandsTotal     *prometheus.CounterVec
	KeysExpiredTotal  prometheus.Counter
	RehashStepsTotal  prometheus.Counter
	TimedOutTotal     prometheus.Counter
	ZsetMembers       prometheus.Gauge
}

// New registers and returns a fresh set of collectors on the default
// registry, the same registry promhttp.Handler() serves.
func New() *Metrics {
	return &Metrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "stormkv",
			Name:      "connections_active",
			Help:      "Number of currently open client connections.",
		}),
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stormkv",
			Name:      "commands_total",
			Help:      "Commands processed, by command name.",
		}, []string{"command"}),
		KeysExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "stormkv",
			Name:      "keys_expired_total",
			Help:      "Keys reaped by the TTL heap sweep.",
		}),
		RehashStepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "stormkv",
			Name:      "rehash_steps_total",
			Help:      "Hash map slot migrations performed across all incremental resizes.",
		}),
		TimedOutTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "stormkv",
			Name:      "connections_timed_out_total",
			Help:      "Connections closed by the idle-timeout reaper.",
		}),
		ZsetMembers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "stormkv",
			Name:      "zset_members",
			Help:      "Current number of members in the sorted set.",
		}),
	}
}

// ConnOpened/ConnClosed track the active connection gauge.
func (m *Metrics) ConnOpened() { m.ConnectionsActive.Inc() }
func (m *Metrics) ConnClosed() { m.ConnectionsActive.Dec() }

// CommandProcessed increments the per-command counter.
func (m *Metrics) CommandProcessed(name string) {
	m.CommandsTotal.WithLabelValues(name).Inc()
}

// KeysExpired adds n to the TTL-reap counter.
func (m *Metrics) KeysExpired(n int) {
	if n > 0 {
		m.KeysExpiredTotal.Add(float64(n))
	}
}

// RehashStepsDone adds n to the cumulative rehash-step counter.
func (m *Metrics) RehashStepsDone(n int) {
	if n > 0 {
		m.RehashStepsTotal.Add(float64(n))
	}
}

// SetZsetMembers sets the sorted set's current member count gauge.
func (m *Metrics) SetZsetMembers(n int) {
	m.ZsetMembers.Set(float64(n))
}

// TimedOut increments the idle-timeout counter.
func (m *Metrics) TimedOut() { m.TimedOutTotal.Inc() }

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
