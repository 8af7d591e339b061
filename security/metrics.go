package security

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_authz_decisions_total",
			Help: "Authorization decisions on datasets by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_permission_mutations_total",
			Help: "Dataset permission mutations by operation and status.",
		},
		[]string{"op", "status"},
	)

	privateRoleAutoCreates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "private_role_lookups_total",
		Help: "Private role lookups that requested auto-creation.",
	})
)

// RegisterMetrics registers the agent's collectors.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{decisionsTotal, mutationsTotal, privateRoleAutoCreates} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func observeDecision(action string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	decisionsTotal.WithLabelValues(action, outcome).Inc()
}

func observeMutation(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	mutationsTotal.WithLabelValues(op, status).Inc()
}
