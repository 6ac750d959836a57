// Package metrics defines the Prometheus metrics of the settlement service.
// All metrics are registered with the default registry at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "settlement"

// Outcome label values shared by payments and deposits.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeTransient = "transient"
	OutcomeError     = "error"
	OutcomeReplayed  = "replayed"
)

// PaymentsTotal counts job payment attempts.
// Label:
//   - outcome: success, rejected, transient or error
//   - code: rejection code, empty unless outcome is rejected
var PaymentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_total",
		Help:      "Total number of job payment attempts, by outcome.",
	},
	[]string{"outcome", "code"},
)

// DepositsTotal counts deposit attempts.
// Label:
//   - outcome: success, rejected, transient, error or replayed
//   - code: rejection code, empty unless outcome is rejected
var DepositsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deposits_total",
		Help:      "Total number of deposit attempts, by outcome.",
	},
	[]string{"outcome", "code"},
)

// TransactionRetriesTotal counts ledger transactions retried after a transient failure.
var TransactionRetriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transaction_retries_total",
		Help:      "Total number of ledger transactions retried after a serialization conflict or lock timeout.",
	},
	[]string{"operation"},
)

// OperationDuration measures a settlement operation end to end, retries included.
var OperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of settlement operations including retries.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)
