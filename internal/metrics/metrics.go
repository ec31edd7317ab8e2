package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry and the application counters.
type Collector struct {
	registry *prometheus.Registry

	inventoryMutations *prometheus.CounterVec
	activities         *prometheus.CounterVec
	logins             *prometheus.CounterVec
	dispenseGenerated  prometheus.Counter
	feedPaused         prometheus.Gauge
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		inventoryMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medinv_inventory_mutations_total",
			Help: "Inventory rows created, updated or deleted",
		}, []string{"op"}),
		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medinv_activities_recorded_total",
			Help: "Activity log entries appended",
		}, []string{"type"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medinv_login_attempts_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		dispenseGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medinv_dispense_records_generated_total",
			Help: "Synthetic dispensing records produced by the feed",
		}),
		feedPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "medinv_dispense_feed_paused",
			Help: "1 while the dispensing feed is paused",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medinv_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medinv_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	registry.MustRegister(
		c.inventoryMutations,
		c.activities,
		c.logins,
		c.dispenseGenerated,
		c.feedPaused,
		c.httpRequests,
		c.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) InventoryMutation(op string) {
	if c == nil {
		return
	}
	c.inventoryMutations.WithLabelValues(op).Inc()
}

func (c *Collector) ActivityRecorded(activityType string) {
	if c == nil {
		return
	}
	c.activities.WithLabelValues(activityType).Inc()
}

func (c *Collector) LoginAttempt(success bool) {
	if c == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) DispenseGenerated() {
	if c == nil {
		return
	}
	c.dispenseGenerated.Inc()
}

func (c *Collector) FeedPaused(paused bool) {
	if c == nil {
		return
	}
	if paused {
		c.feedPaused.Set(1)
		return
	}
	c.feedPaused.Set(0)
}

// Middleware counts requests and observes their latency.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
