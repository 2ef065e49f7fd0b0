package sandbox

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	payments *prometheus.CounterVec
	results  *prometheus.CounterVec
	mints    prometheus.Counter
}

// newMetrics uses a private registry so several sandboxes can run in one
// process.
func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metrics{
		registry: registry,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growscratch_sandbox_requests_total",
				Help: "Requests handled by the sandbox backend",
			},
			[]string{"path", "status"},
		),
		payments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growscratch_sandbox_payments_settled_total",
				Help: "Invoices that left the pending state",
			},
			[]string{"status"},
		),
		results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growscratch_sandbox_results_total",
				Help: "Play results generated",
			},
			[]string{"won"},
		),
		mints: factory.NewCounter(prometheus.CounterOpts{
			Name: "growscratch_sandbox_mints_total",
			Help: "Prizes minted",
		}),
	}
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}

func boolLabel(value bool) string {
	return strconv.FormatBool(value)
}
