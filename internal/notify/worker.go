package notify

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"doceria/internal/metrics"
	"doceria/internal/model"
	"doceria/internal/store"
)

// Worker drains the notification queue on a ticker and delivers each entry
// to Telegram, retrying with exponential backoff. Failures past MaxAttempts
// are marked failed and stay requeueable through the admin API.
type Worker struct {
	Store       store.Store
	Sender      *Telegram
	Stop        chan struct{}
	MaxAttempts int
}

func NewWorker(s store.Store, sender *Telegram, maxAttempts string) *Worker {
	max := 10
	if n, err := strconv.Atoi(maxAttempts); err == nil && n > 0 {
		max = n
	}
	return &Worker{Store: s, Sender: sender, Stop: make(chan struct{}), MaxAttempts: max}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueNotifications(ctx, 50)
	if err != nil || len(items) == 0 {
		return
	}
	for _, it := range items {
		var order model.Order
		if err := json.Unmarshal(it.Payload, &order); err != nil {
			// A payload that never unmarshals will never deliver; dead-letter it.
			_ = w.Store.FailNotification(ctx, it.ID, "bad payload: "+err.Error(), 0, 0)
			metrics.NotifyDeliveries.WithLabelValues("failed").Inc()
			continue
		}
		start := time.Now()
		code, sendErr := w.Sender.Send(ctx, OrderMessage(order))
		latency := int(time.Since(start).Milliseconds())
		if sendErr == nil {
			_ = w.Store.MarkNotification(ctx, it.ID, true, nil, "", code, latency)
			metrics.NotifyDeliveries.WithLabelValues("delivered").Inc()
			metrics.NotifyLatency.WithLabelValues("delivered").Observe(float64(latency))
			continue
		}
		lastErr := sendErr.Error()
		if it.Attempts+1 >= w.MaxAttempts {
			_ = w.Store.FailNotification(ctx, it.ID, lastErr, code, latency)
			metrics.NotifyDeliveries.WithLabelValues("failed").Inc()
			log.Printf("notify: giving up on %s after %d attempts: %v", it.ID, it.Attempts+1, sendErr)
			continue
		}
		next := time.Now().Add(nextBackoff(it.Attempts))
		_ = w.Store.MarkNotification(ctx, it.ID, false, &next, lastErr, code, latency)
		metrics.NotifyDeliveries.WithLabelValues("retry").Inc()
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}

// Enqueue serializes the order and queues one notification for it. A nil or
// disabled sender makes this a no-op so order creation never depends on
// Telegram configuration.
func Enqueue(ctx context.Context, s store.Store, sender *Telegram, order model.Order) {
	if !sender.Enabled() {
		return
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return
	}
	if _, err := s.EnqueueNotification(ctx, order.ID, payload); err != nil {
		log.Printf("notify: enqueue for order %s failed: %v", order.ID, err)
	}
}
