package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	policySyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apim_policy_sync_total",
		Help: "Policy dual-write operations by operation and outcome",
	}, []string{"op", "outcome"})
	upstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apim_upstream_requests_total",
		Help: "Outbound calls to the cluster API and the policy database by result",
	}, []string{"upstream", "result"})
	reconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apim_reconcile_total",
		Help: "Dual-write incidents processed by the reconciliation sweep",
	}, []string{"result"})
)

// Register registers Prometheus collectors. Call once per registry at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(policySyncTotal, upstreamRequestsTotal, reconcileTotal)
}

// IncPolicySync counts one coordinator operation.
func IncPolicySync(op, outcome string) { policySyncTotal.WithLabelValues(op, outcome).Inc() }

// IncUpstreamRequest counts one outbound request; result is "ok", "error" or an HTTP status class.
func IncUpstreamRequest(upstream, result string) {
	upstreamRequestsTotal.WithLabelValues(upstream, result).Inc()
}

// IncReconcile counts one incident handled by the sweep.
func IncReconcile(result string) { reconcileTotal.WithLabelValues(result).Inc() }

// PolicySyncCount reads the current counter value; used by tests and the debug endpoint.
func PolicySyncCount(op, outcome string) float64 {
	return counterValue(policySyncTotal.WithLabelValues(op, outcome))
}

// ReconcileCount reads the current reconcile counter value.
func ReconcileCount(result string) float64 {
	return counterValue(reconcileTotal.WithLabelValues(result))
}
