package main

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"doceria/internal/api"
	"doceria/internal/metrics"
)

func main() {
	srv, err := api.New(api.ConfigFromEnv())
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Catalog
	mux.HandleFunc("/v1/products", srv.ProductsHandler)
	mux.HandleFunc("/v1/products/", srv.ProductByIDHandler)

	// Orders
	mux.HandleFunc("/v1/orders", srv.OrdersHandler)
	mux.HandleFunc("/v1/orders/", srv.OrderByIDHandler) // includes /events/stream

	// Payments
	mux.HandleFunc("/v1/payments/webhook", srv.PaymentWebhookHandler)
	mux.HandleFunc("/v1/payments/preference", srv.CreatePreferenceHandler)
	mux.HandleFunc("/v1/payments/pix/", srv.PixHandler)

	// Guestbook
	mux.HandleFunc("/v1/messages", srv.MessagesHandler)

	// Sweet note popup
	mux.HandleFunc("/v1/sweet-note", srv.SweetNoteHandler)

	// Signed-in users
	mux.HandleFunc("/v1/favorites", srv.FavoritesHandler)
	mux.HandleFunc("/v1/favorites/", srv.FavoritesHandler)
	mux.HandleFunc("/v1/profile", srv.ProfileHandler)

	// Admin
	mux.HandleFunc("/v1/admin/products", srv.AdminProductsHandler)
	mux.HandleFunc("/v1/admin/products/", srv.AdminProductByIDHandler)
	mux.HandleFunc("/v1/admin/orders", srv.AdminOrdersHandler)
	mux.HandleFunc("/v1/admin/orders/", srv.AdminOrderByIDHandler)
	mux.HandleFunc("/v1/admin/messages", srv.AdminMessagesHandler)
	mux.HandleFunc("/v1/admin/messages/", srv.AdminMessageByIDHandler)
	mux.HandleFunc("/v1/admin/sweet-notes", srv.AdminSweetNotesHandler)
	mux.HandleFunc("/v1/admin/sweet-notes/", srv.AdminSweetNoteByIDHandler)
	mux.HandleFunc("/v1/admin/notifications", srv.AdminNotificationsHandler)
	mux.HandleFunc("/v1/admin/notifications/", srv.AdminNotificationRetryHandler)

	// Live order feed for the admin dashboard
	mux.HandleFunc("/ws/orders", srv.OrdersWSHandler)

	// Ops
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.HandleFunc("/debugz", srv.DebugJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// Docs
	mux.HandleFunc("/openapi.yaml", srv.OpenAPIHandler)
	mux.HandleFunc("/docs", srv.DocsHandler)
	mux.HandleFunc("/swagger", srv.SwaggerHandler)

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	handler := recoverMiddleware(corsMiddleware(logMiddleware(metricsMiddleware(rateLimitMiddleware(mux)))))

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s", addr)
	srv.NewNotifyWorker().Start()
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-signature, x-request-id")
		if r.Method == http.MethodOptions && r.URL.Path != "/v1/payments/webhook" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic: %v (%s %s)", rec, r.Method, r.URL.Path)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps the WebSocket upgrade working through the metrics wrapper.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		status := strconv.Itoa(sr.status)
		path := metricPath(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// metricPath collapses resource ids so the path label stays low-cardinality.
func metricPath(p string) string {
	parts := strings.Split(p, "/")
	for i, seg := range parts {
		if len(seg) >= 20 || (len(seg) > 0 && seg != "v1" && isNumeric(seg)) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func rateLimitMiddleware(next http.Handler) http.Handler {
	rps := 50.0
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	burst := 100
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
