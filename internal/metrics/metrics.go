package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jerseysync",
			Name:      "remote_calls_total",
			Help:      "Remote calls by operation.",
		},
		[]string{"op"},
	)

	retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jerseysync",
			Name:      "remote_retries_total",
			Help:      "Retried remote calls by operation.",
		},
		[]string{"op"},
	)

	draftsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jerseysync",
			Name:      "drafts_created_total",
			Help:      "Verification drafts created.",
		},
	)

	ordersMarked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jerseysync",
			Name:      "orders_marked_total",
			Help:      "Orders marked contacted in the worksheet.",
		},
	)

	downloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jerseysync",
			Name:      "portal_downloads_total",
			Help:      "Portal report downloads by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(remoteCalls, retries, draftsCreated, ordersMarked, downloads)
	})
}

// IncRemoteCall counts one remote invocation for an operation label.
func IncRemoteCall(op string) {
	remoteCalls.WithLabelValues(op).Inc()
}

// IncRetry counts one retried invocation for an operation label.
func IncRetry(op string) {
	retries.WithLabelValues(op).Inc()
}

// IncDraftCreated counts one created draft.
func IncDraftCreated() {
	draftsCreated.Inc()
}

// IncOrderMarked counts one contacted-cell write.
func IncOrderMarked() {
	ordersMarked.Inc()
}

// IncDownload counts one download attempt by outcome ("ok", "empty",
// "timeout", "error").
func IncDownload(outcome string) {
	downloads.WithLabelValues(outcome).Inc()
}
