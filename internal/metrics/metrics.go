package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restjson_requests_total",
			Help: "Total number of dispatched actions by resource, action and status",
		},
		[]string{"resource", "action", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restjson_request_duration_seconds",
			Help:    "Duration of dispatched actions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "action"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restjson_query_duration_seconds",
			Help:    "Duration of SQL statements by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restjson_errors_total",
			Help: "Total number of errors by kind",
		},
		[]string{"kind"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
