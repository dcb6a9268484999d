// Package metrics provides Prometheus instrumentation for the marketplace.
//
// Wire it up once in the router:
//
//	e.Use(metrics.Middleware())
//	e.GET("/metrics", metrics.Handler())
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "taskmarket"

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	// TaskTransitions counts committed lifecycle steps.
	TaskTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "transitions_total",
			Help:      "Task lifecycle transitions by source and target status.",
		},
		[]string{"from", "to"},
	)

	// PaymentsTotal counts completed payments.
	PaymentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "completed_total",
		Help:      "Total completed task payments.",
	})

	// PaymentAmount sums the amount of completed payments.
	PaymentAmount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "amount_total",
		Help:      "Sum of completed payment amounts.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight,
		httpRequests,
		httpDuration,
		TaskTransitions,
		PaymentsTotal,
		PaymentAmount,
	)
}

// Middleware records request count, latency and in-flight gauge.
// Routes are labelled by their template (/tasks/:id), not the raw path.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && !c.Response().Committed {
				status = 500
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the registry for scraping.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// RecordTransition counts one committed task status change.
func RecordTransition(from, to string) {
	TaskTransitions.WithLabelValues(from, to).Inc()
}

// RecordPayment counts one completed payment of amount.
func RecordPayment(amount decimal.Decimal) {
	PaymentsTotal.Inc()
	PaymentAmount.Add(amount.InexactFloat64())
}
