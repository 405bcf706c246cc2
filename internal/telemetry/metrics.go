// Package telemetry holds the Prometheus collectors the gateway registers
// at startup.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "apigateway",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

var ProxiedRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "apigateway",
		Subsystem: "proxy",
		Name:      "requests_total",
		Help:      "Total number of requests proxied to upstreams, by tenant and outcome.",
	},
	[]string{"tenant", "api", "outcome"},
)

var AuthRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "apigateway",
		Subsystem: "auth",
		Name:      "rejections_total",
		Help:      "Total number of requests rejected during authentication/authorization, by reason.",
	},
	[]string{"reason"},
)

var RateLimitRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "apigateway",
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Total number of requests rejected for exceeding a quota, by window.",
	},
	[]string{"window"},
)

var CounterStoreFallbackActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "apigateway",
		Subsystem: "counterstore",
		Name:      "fallback_active",
		Help:      "1 if the process selected the local in-process counter store fallback, 0 if the networked store is in use.",
	},
)

// All returns every gateway-specific metric for registration with a
// prometheus.Registerer.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		ProxiedRequestsTotal,
		AuthRejectionsTotal,
		RateLimitRejectionsTotal,
		CounterStoreFallbackActive,
	}
}
