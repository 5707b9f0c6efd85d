package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hrpayroll"

// Collector owns a private registry so several instances can coexist in
// tests. All methods are safe on a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	payrollsComputed *prometheus.CounterVec
	droppedRefs      *prometheus.CounterVec
	skippedTaxRules  prometheus.Counter
	runDuration      *prometheus.HistogramVec
}

func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		payrollsComputed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payroll",
			Name:      "computed_total",
			Help:      "Payroll breakdowns computed, by mode (preview, single, run).",
		}, []string{"mode"}),
		droppedRefs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payroll",
			Name:      "dropped_references_total",
			Help:      "Allowance or deduction ids that did not resolve to an active catalog rule.",
		}, []string{"kind"}),
		skippedTaxRules: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payroll",
			Name:      "malformed_tax_rules_total",
			Help:      "Tax brackets skipped because a bound could not be parsed.",
		}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payroll",
			Name:      "run_duration_seconds",
			Help:      "Duration of batch payroll runs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),
	}
}

func (c *Collector) Record(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) PayrollComputed(mode string, count int) {
	if c == nil || count <= 0 {
		return
	}
	c.payrollsComputed.WithLabelValues(mode).Add(float64(count))
}

func (c *Collector) DroppedReferences(kind string, count int) {
	if c == nil || count <= 0 {
		return
	}
	c.droppedRefs.WithLabelValues(kind).Add(float64(count))
}

func (c *Collector) MalformedTaxRules(count int) {
	if c == nil || count <= 0 {
		return
	}
	c.skippedTaxRules.Add(float64(count))
}

func (c *Collector) ObserveRun(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}
