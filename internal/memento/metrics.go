package memento

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts collection activity. A nil *Metrics records nothing.
type Metrics struct {
	commits       prometheus.Counter
	rollbacks     prometheus.Counter
	contention    prometheus.Counter
	registrations prometheus.Counter
}

// NewMetrics creates the counters and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commits: f.NewCounter(prometheus.CounterOpts{
			Name: "memento_commits_total",
			Help: "Total memento commits written to the shared table",
		}),
		rollbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "memento_rollbacks_total",
			Help: "Total memento rollbacks",
		}),
		contention: f.NewCounter(prometheus.CounterOpts{
			Name: "memento_lock_contention_total",
			Help: "Total checkouts refused because the memento was already locked",
		}),
		registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "memento_registrations_total",
			Help: "Total workspaces registered as table rows",
		}),
	}
}

func (m *Metrics) commit() {
	if m != nil {
		m.commits.Inc()
	}
}

func (m *Metrics) rollback() {
	if m != nil {
		m.rollbacks.Inc()
	}
}

func (m *Metrics) contended() {
	if m != nil {
		m.contention.Inc()
	}
}

func (m *Metrics) registered() {
	if m != nil {
		m.registrations.Inc()
	}
}
