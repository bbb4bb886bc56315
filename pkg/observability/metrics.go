package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
// Every method is safe on a nil receiver so components can run without
// metrics in tests.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Realtime metrics
	ActiveSessions      prometheus.Gauge
	ActiveRooms         prometheus.Gauge
	BroadcastsDelivered prometheus.Counter
	BroadcastsDropped   prometheus.Counter

	// Business metrics
	Checkpoints    *prometheus.CounterVec
	RetrievalTasks *prometheus.CounterVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
}

// NewCollector creates a collector on its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_sessions",
			Help:      "Connected realtime sessions",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_rooms",
			Help:      "Project rooms with at least one session",
		}),
		BroadcastsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_messages_delivered_total",
			Help:      "Frames queued to a session",
		}),
		BroadcastsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_messages_dropped_total",
			Help:      "Frames dropped because a session's buffer was full",
		}),
		Checkpoints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoint_operations_total",
				Help:      "Checkpoint creations and restores",
			},
			[]string{"operation"},
		),
		RetrievalTasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_tasks_total",
				Help:      "Finished retrieval tasks by outcome",
			},
			[]string{"outcome"},
		),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of project store operations",
			},
			[]string{"operation", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Project store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.ActiveSessions,
		c.ActiveRooms,
		c.BroadcastsDelivered,
		c.BroadcastsDropped,
		c.Checkpoints,
		c.RetrievalTasks,
		c.StoreOperations,
		c.StoreDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveStore records one project store call
func (c *Collector) ObserveStore(operation string, d time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.StoreOperations.WithLabelValues(operation, status).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// CheckpointOperation counts a checkpoint create or restore
func (c *Collector) CheckpointOperation(operation string) {
	if c == nil {
		return
	}
	c.Checkpoints.WithLabelValues(operation).Inc()
}

// RetrievalFinished counts a retrieval task by outcome
func (c *Collector) RetrievalFinished(outcome string) {
	if c == nil {
		return
	}
	c.RetrievalTasks.WithLabelValues(outcome).Inc()
}

// SetRealtime updates the session and room gauges
func (c *Collector) SetRealtime(sessions, rooms int) {
	if c == nil {
		return
	}
	c.ActiveSessions.Set(float64(sessions))
	c.ActiveRooms.Set(float64(rooms))
}

// Delivered counts frames queued to sessions
func (c *Collector) Delivered(n int) {
	if c == nil || n == 0 {
		return
	}
	c.BroadcastsDelivered.Add(float64(n))
}

// Dropped counts frames lost to slow consumers
func (c *Collector) Dropped(n int) {
	if c == nil || n == 0 {
		return
	}
	c.BroadcastsDropped.Add(float64(n))
}
