package client

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Dispatch metrics are registered in the default VictoriaMetrics set and are
// shared by all clients of the process.
var (
	requestsTotal        = metrics.NewCounter(`drow_client_requests_total`)
	attemptsTotal        = metrics.NewCounter(`drow_client_attempts_total`)
	transportErrorsTotal = metrics.NewCounter(`drow_client_transport_errors_total`)
	rejectionsTotal      = metrics.NewCounter(`drow_client_rejections_total`)
	failuresTotal        = metrics.NewCounter(`drow_client_dispatch_failures_total`)
	dispatchDuration     = metrics.NewHistogram(`drow_client_dispatch_duration_seconds`)
)

// nodeAttempts returns the attempt counter of one node
func nodeAttempts(addr string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`drow_client_node_attempts_total{addr=%q}`, addr))
}

// nodeErrors returns the transport error counter of one node
func nodeErrors(addr string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`drow_client_node_errors_total{addr=%q}`, addr))
}

// WriteMetrics writes all client metrics in Prometheus text format to w
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
