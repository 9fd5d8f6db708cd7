package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"doceria/internal/mercadopago"
	"doceria/internal/pix"
	"doceria/internal/store"
)

// CreatePreferenceHandler handles POST /v1/payments/preference.
// Creates a Mercado Pago hosted-checkout preference for an existing order and
// returns the redirect URL.
func (s *Server) CreatePreferenceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Cfg.AccessToken == "" {
		writeProblem(w, http.StatusInternalServerError, "Server configuration error", "payment provider is not configured", r.URL.Path)
		return
	}
	var body struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OrderID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "order_id is required", r.URL.Path)
		return
	}
	o, err := s.Store.GetOrder(r.Context(), body.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Order not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get order failed", err.Error(), r.URL.Path)
		return
	}

	items := make([]mercadopago.PreferenceItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, mercadopago.PreferenceItem{
			Title:      it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.Price,
			CurrencyID: "BRL",
		})
	}

	confirmURL := strings.TrimSuffix(s.Cfg.PublicBaseURL, "/") + "/order-confirmation/" + o.ID
	pref := mercadopago.Preference{
		Items: items,
		Payer: mercadopago.Payer{
			Name:  o.CustomerName,
			Phone: splitPhone(o.CustomerContact),
		},
		BackURLs: mercadopago.BackURLs{
			Success: confirmURL,
			Failure: confirmURL,
			Pending: confirmURL,
		},
		NotificationURL:   strings.TrimSuffix(s.Cfg.PublicBaseURL, "/") + "/v1/payments/webhook",
		ExternalReference: o.ID,
		PaymentMethods: mercadopago.PaymentMethods{
			Installments:         1,
			ExcludedPaymentTypes: []any{},
		},
	}

	initPoint, err := s.MP.CreatePreference(r.Context(), pref)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Create preference failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"init_point": initPoint})
}

// splitPhone separates a Brazilian phone into area code and number. Numbers
// shorter than 10 digits go through as-is without an area code.
func splitPhone(contact string) *mercadopago.Phone {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, contact)
	if digits == "" {
		return nil
	}
	if len(digits) >= 10 {
		return &mercadopago.Phone{AreaCode: digits[:2], Number: digits[2:]}
	}
	return &mercadopago.Phone{Number: digits}
}

// PixHandler handles GET /v1/payments/pix/{orderId}.
// Returns the copy-and-paste BR Code for paying the order via PIX.
func (s *Server) PixHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Cfg.PixKey == "" {
		writeProblem(w, http.StatusInternalServerError, "Server configuration error", "pix is not configured", r.URL.Path)
		return
	}
	orderID := strings.TrimPrefix(r.URL.Path, "/v1/payments/pix/")
	if orderID == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing order id", r.URL.Path)
		return
	}
	o, err := s.Store.GetOrder(r.Context(), orderID)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Order not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get order failed", err.Error(), r.URL.Path)
		return
	}
	txid := strings.ReplaceAll(o.ID, "-", "")
	if len(txid) > 25 {
		txid = txid[:25]
	}
	code, err := pix.BRCode(pix.Charge{
		Key:          s.Cfg.PixKey,
		Amount:       o.TotalAmount,
		TxID:         txid,
		MerchantName: s.Cfg.PixMerchantName,
		MerchantCity: s.Cfg.PixMerchantCity,
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "BR Code generation failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"brCode": code,
		"amount": o.TotalAmount,
	})
}
