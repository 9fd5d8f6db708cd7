package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"doceria/internal/metrics"
	"doceria/internal/model"
	"doceria/internal/notify"
	"doceria/internal/store"
)

// ProductsHandler handles GET /v1/products
func (s *Server) ProductsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	category := r.URL.Query().Get("category")
	featured := r.URL.Query().Get("featured") == "true"
	items, err := s.Store.ListProducts(r.Context(), category, featured)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List products failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ProductByIDHandler handles GET /v1/products/{id}
func (s *Server) ProductByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, err := s.Store.GetProduct(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Product not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get product failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AdminProductsHandler handles POST /v1/admin/products
func (s *Server) AdminProductsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in model.ProductIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateProductIn(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid product", err.Error(), r.URL.Path)
		return
	}
	created, err := s.Store.CreateProduct(r.Context(), in)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create product failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// AdminProductByIDHandler handles PUT/DELETE /v1/admin/products/{id}
func (s *Server) AdminProductByIDHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/admin/products/")
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var in model.ProductIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateProductIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid product", err.Error(), r.URL.Path)
			return
		}
		upd, err := s.Store.UpdateProduct(r.Context(), id, in)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Product not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Update product failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, upd)
	case http.MethodDelete:
		err := s.Store.DeleteProduct(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Product not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Delete product failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OrdersHandler handles POST /v1/orders (checkout) and GET /v1/orders?user=me
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var in model.OrderIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if p := s.getPrincipal(r); p.UserID != "" {
			in.UserID = p.UserID
		}
		if err := validateOrderIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid order", err.Error(), r.URL.Path)
			return
		}
		created, err := s.Store.CreateOrder(r.Context(), in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create order failed", err.Error(), r.URL.Path)
			return
		}
		notify.Enqueue(r.Context(), s.Store, s.Notifier, created)
		s.publishOrderEvent(created.ID, SSEEvent{Type: "order.created", Data: map[string]any{
			"orderId": created.ID, "status": string(created.Status), "total": created.TotalAmount,
		}})
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		if r.URL.Query().Get("user") != "me" {
			writeProblem(w, http.StatusBadRequest, "Invalid query", "only user=me is supported", r.URL.Path)
			return
		}
		p := s.getPrincipal(r)
		if !requireUser(w, r, p) {
			return
		}
		items, err := s.Store.ListOrdersForUser(r.Context(), p.UserID)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OrderByIDHandler handles GET /v1/orders/{id} and GET /v1/orders/{id}/events/stream
func (s *Server) OrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 1 && parts[1] == "events" && len(parts) > 2 && parts[2] == "stream" {
		s.orderEventsSSE(w, r, id)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	o, err := s.Store.GetOrder(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Order not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get order failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// orderEventsSSE streams status events for one order (confirmation page).
func (s *Server) orderEventsSSE(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.Store.GetOrder(r.Context(), orderID); err != nil {
		writeProblem(w, http.StatusNotFound, "Order not found", "", r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := s.Broker.Subscribe(orderID)
	defer s.Broker.Unsubscribe(orderID, ch)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case evt, open := <-ch:
			if !open {
				return
			}
			data, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		}
	}
}

// AdminOrdersHandler handles GET /v1/admin/orders
func (s *Server) AdminOrdersHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	items, next, err := s.Store.ListOrders(r.Context(), status, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// AdminOrderByIDHandler handles PATCH /v1/admin/orders/{id} (manual status change)
func (s *Server) AdminOrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/admin/orders/")
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Status model.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if !model.ValidOrderStatus(body.Status) {
		writeProblem(w, http.StatusBadRequest, "Invalid status", string(body.Status), r.URL.Path)
		return
	}
	upd, err := s.Store.UpdateOrderStatus(r.Context(), id, body.Status)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Order not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Update order failed", err.Error(), r.URL.Path)
		return
	}
	metrics.OrderStatusUpdates.WithLabelValues(string(body.Status), "admin").Inc()
	s.publishOrderEvent(id, SSEEvent{Type: "order.status.updated", Data: map[string]any{
		"orderId": id, "status": string(body.Status),
	}})
	writeJSON(w, http.StatusOK, upd)
}

// MessagesHandler handles GET (approved wall) and POST /v1/messages
func (s *Server) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.Store.ListMessages(r.Context(), true)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List messages failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var in model.MessageIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if strings.TrimSpace(in.AuthorName) == "" || strings.TrimSpace(in.Message) == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid message", "author_name and message are required", r.URL.Path)
			return
		}
		created, err := s.Store.CreateMessage(r.Context(), in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create message failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// AdminMessagesHandler handles GET /v1/admin/messages (moderation queue)
func (s *Server) AdminMessagesHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.Store.ListMessages(r.Context(), false)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List messages failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// AdminMessageByIDHandler handles POST /v1/admin/messages/{id}/approve and
// DELETE /v1/admin/messages/{id}
func (s *Server) AdminMessageByIDHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/messages/")
	approve := strings.HasSuffix(rest, "/approve")
	idStr := strings.TrimSuffix(rest, "/approve")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "invalid id", r.URL.Path)
		return
	}
	switch {
	case approve && r.Method == http.MethodPost:
		msg, err := s.Store.SetMessageApproved(r.Context(), id, true)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Message not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Approve message failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	case !approve && r.Method == http.MethodDelete:
		err := s.Store.DeleteMessage(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Message not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Delete message failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SweetNoteHandler handles GET /v1/sweet-note (latest active popup note)
func (s *Server) SweetNoteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	n, err := s.Store.ActiveSweetNote(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		// no active note is not an error for the storefront
		writeJSON(w, http.StatusOK, map[string]any{"note": nil})
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get sweet note failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"note": n})
}

// AdminSweetNotesHandler handles GET/POST /v1/admin/sweet-notes
func (s *Server) AdminSweetNotesHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		items, err := s.Store.ListSweetNotes(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List sweet notes failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var in model.SweetNoteIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if strings.TrimSpace(in.Content) == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid sweet note", "content is required", r.URL.Path)
			return
		}
		n, err := s.Store.UpsertSweetNote(r.Context(), in)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Sweet note not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Upsert sweet note failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, n)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// AdminSweetNoteByIDHandler handles DELETE /v1/admin/sweet-notes/{id}
func (s *Server) AdminSweetNoteByIDHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/admin/sweet-notes/")
	err := s.Store.DeleteSweetNote(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Sweet note not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete sweet note failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FavoritesHandler handles GET/POST /v1/favorites and DELETE /v1/favorites/{productId}
func (s *Server) FavoritesHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireUser(w, r, p) {
		return
	}
	if r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v1/favorites/") {
		productID := strings.TrimPrefix(r.URL.Path, "/v1/favorites/")
		if err := s.Store.RemoveFavorite(r.Context(), p.UserID, productID); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Remove favorite failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	switch r.Method {
	case http.MethodGet:
		ids, err := s.Store.ListFavorites(r.Context(), p.UserID)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List favorites failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"productIds": ids})
	case http.MethodPost:
		var body struct {
			ProductID string `json:"product_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProductID == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", "product_id is required", r.URL.Path)
			return
		}
		if err := s.Store.AddFavorite(r.Context(), p.UserID, body.ProductID); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Add favorite failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ProfileHandler handles GET/PUT /v1/profile
func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireUser(w, r, p) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		prof, err := s.Store.GetProfile(r.Context(), p.UserID)
		if errors.Is(err, store.ErrNotFound) {
			// new users have no row yet; report an empty non-admin profile
			writeJSON(w, http.StatusOK, model.Profile{ID: p.UserID})
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Get profile failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, prof)
	case http.MethodPut:
		var body struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		prof, err := s.Store.UpsertProfile(r.Context(), model.Profile{ID: p.UserID, FirstName: body.FirstName, LastName: body.LastName})
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Update profile failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, prof)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// AdminNotificationsHandler handles GET /v1/admin/notifications
func (s *Server) AdminNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := r.URL.Query().Get("status")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	items, err := s.Store.ListNotifications(r.Context(), status, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List notifications failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// AdminNotificationRetryHandler handles POST /v1/admin/notifications/{id}/retry
func (s *Server) AdminNotificationRetryHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !requireAdmin(w, r, p) {
		return
	}
	if !strings.HasSuffix(r.URL.Path, "/retry") || r.Method != http.MethodPost {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/notifications/"), "/retry")
	if err := s.Store.RetryNotification(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Notification not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Retry notification failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
