package httpimpl

import (
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusStateHTTPRequests *prometheus.CounterVec
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusStateHTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "state",
			Subsystem: "http",
			Name:      "requests",
			Help:      "Number of HTTP requests by route and status",
		},
		[]string{
			"route",
			"status",
		},
	)
}

func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)

		status := c.Response().Status
		if httpErr, ok := err.(*echo.HTTPError); ok {
			status = httpErr.Code
		}

		prometheusStateHTTPRequests.WithLabelValues(c.Path(), strconv.Itoa(status)).Inc()

		return err
	}
}
