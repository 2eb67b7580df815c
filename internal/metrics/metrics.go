package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IrdOps counts linker operations by op (create|update|delete) and outcome
	// (ok or the error kind).
	IrdOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irdinv_ird_ops_total",
		Help: "IRD/equipment linker operations.",
	}, []string{"op", "outcome"})

	TxFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irdinv_tx_fallbacks_total",
		Help: "Units of work rerun without a transaction because the store has none.",
	}, []string{"op"})

	BulkRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irdinv_bulk_rows_total",
		Help: "Bulk import rows by outcome.",
	}, []string{"outcome"})

	// HTTPRequests is observed by the access-log middleware; route is the mux
	// path template, not the raw URL.
	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "irdinv_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func Handler() http.Handler { return promhttp.Handler() }
