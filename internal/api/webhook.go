package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"doceria/internal/mercadopago"
	"doceria/internal/metrics"
)

// paymentNotification is the envelope Mercado Pago posts to the webhook URL.
// Only type, action and data.id matter; everything else is advisory because
// the payment is re-fetched from the API before any state changes.
type paymentNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

func webhookCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, x-signature, x-request-id")
}

func webhookJSON(w http.ResponseWriter, status int, v any) {
	webhookCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// PaymentWebhookHandler handles POST /v1/payments/webhook.
//
// The response shapes here are part of the provider-facing contract and
// deliberately do not use the RFC 7807 envelope the rest of the API uses.
func (s *Server) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		webhookCORS(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		webhookJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	if s.Cfg.WebhookSecret == "" || s.Cfg.AccessToken == "" {
		log.Printf("webhook: missing provider configuration")
		metrics.PaymentWebhooks.WithLabelValues("config_error").Inc()
		webhookJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server configuration error"})
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		webhookJSON(w, http.StatusBadRequest, map[string]string{"error": "Unable to read request body"})
		return
	}

	signature := r.Header.Get("x-signature")
	requestID := r.Header.Get("x-request-id")
	if signature == "" || requestID == "" {
		metrics.PaymentWebhooks.WithLabelValues("missing_headers").Inc()
		webhookJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required headers"})
		return
	}

	if !mercadopago.VerifySignature(s.Cfg.WebhookSecret, signature, requestID, rawBody) {
		log.Printf("webhook: signature mismatch (request %s)", requestID)
		metrics.PaymentWebhooks.WithLabelValues("bad_signature").Inc()
		webhookJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid webhook signature"})
		return
	}

	var note paymentNotification
	if err := json.Unmarshal(rawBody, &note); err != nil {
		webhookJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	if note.Type != "payment" || note.Action != "payment.updated" {
		metrics.PaymentWebhooks.WithLabelValues("ignored").Inc()
		webhookJSON(w, http.StatusOK, map[string]string{"message": "Webhook type not handled"})
		return
	}

	payment, err := s.MP.GetPayment(r.Context(), note.Data.ID.String())
	if err != nil {
		log.Printf("webhook: payment fetch failed (payment %s): %v", note.Data.ID, err)
		metrics.PaymentWebhooks.WithLabelValues("fetch_error").Inc()
		var apiErr *mercadopago.APIError
		details := err.Error()
		if errors.As(err, &apiErr) {
			details = string(apiErr.Body)
		}
		webhookJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to fetch payment details",
			"details": details,
		})
		return
	}

	orderID := payment.ExternalReference
	status := mercadopago.MapStatus(payment.Status)

	if _, err := s.Store.UpdateOrderStatus(r.Context(), orderID, status); err != nil {
		log.Printf("webhook: status update failed (order %s): %v", orderID, err)
		metrics.PaymentWebhooks.WithLabelValues("update_error").Inc()
		webhookJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to update order status",
			"details": err.Error(),
		})
		return
	}

	metrics.PaymentWebhooks.WithLabelValues("processed").Inc()
	metrics.OrderStatusUpdates.WithLabelValues(string(status), "webhook").Inc()
	s.publishOrderEvent(orderID, SSEEvent{Type: "order.status.updated", Data: map[string]any{
		"orderId": orderID, "status": string(status),
	}})

	webhookJSON(w, http.StatusOK, map[string]any{
		"message":     "Webhook processed successfully",
		"orderStatus": status,
	})
}
