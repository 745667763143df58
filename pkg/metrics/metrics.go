package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all tracking-service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec
	MongoDBConnectionsOpen   prometheus.Gauge

	// Webhook delivery metrics
	WebhookDeliveries      *prometheus.CounterVec
	WebhookAttempts        *prometheus.CounterVec
	WebhookDeliveryLatency *prometheus.HistogramVec
	WebhookDeadLetters     *prometheus.CounterVec

	// Direct broadcast metrics
	BroadcastQueueDepth prometheus.Gauge
	BroadcastOutcomes   *prometheus.CounterVec
	BroadcastDropped    *prometheus.CounterVec

	// Business metrics
	ShipmentsCreated    *prometheus.CounterVec
	StatusUpdates       *prometheus.CounterVec
	SubscriptionsActive prometheus.Gauge

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
	Subsystem   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "distributor",
		Subsystem:   serviceName,
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	// HTTP metrics
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// MongoDB metrics
	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.MongoDBConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "mongodb_connections_open",
			Help:        "Number of open MongoDB connections",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// Webhook delivery metrics
	m.WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Total number of webhook deliveries by final outcome",
		},
		[]string{"service", "event_type", "outcome"},
	)

	m.WebhookAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "webhook_attempts_total",
			Help:      "Total number of webhook POST attempts",
		},
		[]string{"service", "event_type", "status"},
	)

	m.WebhookDeliveryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "webhook_delivery_duration_seconds",
			Help:      "End-to-end webhook delivery duration including retries",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "event_type"},
	)

	m.WebhookDeadLetters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "webhook_dead_letters_total",
			Help:      "Total number of webhook deliveries written to the dead-letter sink",
		},
		[]string{"service", "event_type"},
	)

	// Direct broadcast metrics
	m.BroadcastQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "broadcast_queue_depth",
			Help:        "Number of broadcast jobs waiting in the queue",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.BroadcastOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "broadcast_outcomes_total",
			Help:      "Total number of direct partner broadcasts by outcome",
		},
		[]string{"service", "outcome"},
	)

	m.BroadcastDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Broadcast jobs dropped before dispatch",
		},
		[]string{"service", "reason"},
	)

	// Business metrics
	m.ShipmentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "shipments_created_total",
			Help:      "Total number of shipments created",
		},
		[]string{"service"},
	)

	m.StatusUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "status_updates_total",
			Help:      "Total number of shipment status updates",
		},
		[]string{"service", "status"},
	)

	m.SubscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "webhook_subscriptions_active",
			Help:        "Number of active webhook subscriptions",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// Circuit breaker metrics
	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.MongoDBConnectionsOpen,
		m.WebhookDeliveries,
		m.WebhookAttempts,
		m.WebhookDeliveryLatency,
		m.WebhookDeadLetters,
		m.BroadcastQueueDepth,
		m.BroadcastOutcomes,
		m.BroadcastDropped,
		m.ShipmentsCreated,
		m.StatusUpdates,
		m.SubscriptionsActive,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetMongoDBConnections sets the number of open MongoDB connections
func (m *Metrics) SetMongoDBConnections(count int) {
	m.MongoDBConnectionsOpen.Set(float64(count))
}

// RecordWebhookDelivery records the final outcome of a webhook delivery
func (m *Metrics) RecordWebhookDelivery(eventType string, success bool, duration time.Duration) {
	outcome := "delivered"
	if !success {
		outcome = "exhausted"
	}
	m.WebhookDeliveries.WithLabelValues(m.serviceName, eventType, outcome).Inc()
	m.WebhookDeliveryLatency.WithLabelValues(m.serviceName, eventType).Observe(duration.Seconds())
}

// RecordWebhookAttempt records a single webhook POST attempt
func (m *Metrics) RecordWebhookAttempt(eventType string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.WebhookAttempts.WithLabelValues(m.serviceName, eventType, status).Inc()
}

// RecordWebhookDeadLetter records a delivery written to the dead-letter sink
func (m *Metrics) RecordWebhookDeadLetter(eventType string) {
	m.WebhookDeadLetters.WithLabelValues(m.serviceName, eventType).Inc()
}

// SetBroadcastQueueDepth sets the current broadcast queue depth
func (m *Metrics) SetBroadcastQueueDepth(depth int) {
	m.BroadcastQueueDepth.Set(float64(depth))
}

// RecordBroadcastOutcome records the final outcome of a direct broadcast
func (m *Metrics) RecordBroadcastOutcome(success bool) {
	outcome := "delivered"
	if !success {
		outcome = "failed"
	}
	m.BroadcastOutcomes.WithLabelValues(m.serviceName, outcome).Inc()
}

// RecordBroadcastDropped records a broadcast job dropped before dispatch
func (m *Metrics) RecordBroadcastDropped(reason string) {
	m.BroadcastDropped.WithLabelValues(m.serviceName, reason).Inc()
}

// RecordShipmentCreated records a shipment creation
func (m *Metrics) RecordShipmentCreated() {
	m.ShipmentsCreated.WithLabelValues(m.serviceName).Inc()
}

// RecordStatusUpdate records a shipment status update
func (m *Metrics) RecordStatusUpdate(status string) {
	m.StatusUpdates.WithLabelValues(m.serviceName, status).Inc()
}

// SetActiveSubscriptions sets the active webhook subscription gauge
func (m *Metrics) SetActiveSubscriptions(count int) {
	m.SubscriptionsActive.Set(float64(count))
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
