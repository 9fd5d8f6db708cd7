package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PaymentWebhooks counts inbound payment webhook outcomes
	PaymentWebhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "payment_webhooks_total", Help: "Inbound payment webhooks by outcome."},
		[]string{"outcome"},
	)
	// OrderStatusUpdates counts order status transitions applied by the reconciler or admins
	OrderStatusUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_status_updates_total", Help: "Order status updates by resulting status and source."},
		[]string{"status", "source"},
	)
	// NotifyDeliveries counts new-order notification delivery outcomes
	NotifyDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "notify_deliveries_total", Help: "New-order notification deliveries by status."},
		[]string{"status"},
	)
	// NotifyLatency tracks notification delivery latencies in milliseconds
	NotifyLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "notify_delivery_latency_ms", Help: "Notification delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PaymentWebhooks)
		Registry.MustRegister(OrderStatusUpdates)
		Registry.MustRegister(NotifyDeliveries)
		Registry.MustRegister(NotifyLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
