// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exports Prometheus HTTP metrics. Series are labeled by the
// registered route (/api/v1/cart/items/:id), never the raw URL, so crawlers
// probing random paths all land in one "unmatched" series.
//
// Cart event streams stay open for as long as a shopper keeps the page open.
// They are counted when they end and tracked by an open-streams gauge, but
// kept out of the latency and size histograms they would skew.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "HTTP requests currently being served, streams included.",
		},
	)

	// Catalog pages are the largest bodies: a full Printful store is a few
	// hundred KiB before compression.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size by method and route.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B .. 4MiB
		},
		[]string{"method", "route"},
	)

	eventStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_event_streams_open",
			Help: "Open server-sent event streams by route.",
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, eventStreams)
}

// MetricsOptions configures Metrics.
type MetricsOptions struct {
	// StreamRoutes are registered routes serving event streams.
	StreamRoutes []string
	// SkipPaths are request paths left uninstrumented, such as /metrics.
	SkipPaths []string
}

// Metrics instruments every request except opts.SkipPaths.
func Metrics(opts MetricsOptions) gin.HandlerFunc {
	streams := toSet(opts.StreamRoutes)
	skip := toSet(opts.SkipPaths)

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		route := routeLabel(c)
		method := c.Request.Method
		_, stream := streams[route]

		httpInflight.Inc()
		defer httpInflight.Dec()
		if stream {
			eventStreams.WithLabelValues(route).Inc()
			defer eventStreams.WithLabelValues(route).Dec()
		}

		c.Next()

		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		if stream {
			return
		}
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}

// routeLabel is the matched route or unmatchedRoute.
func routeLabel(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return unmatchedRoute
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}
