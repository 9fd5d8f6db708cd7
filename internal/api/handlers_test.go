package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"doceria/internal/mercadopago"
	"doceria/internal/model"
	"doceria/internal/notify"
	"doceria/internal/store"
)

func newTestServer() *Server {
	return &Server{
		Cfg:      Config{WebhookSecret: "whsec", AccessToken: "tok", PixKey: "chave@pix.br", PixMerchantName: "Doceria", PixMerchantCity: "SAO PAULO"},
		Store:    store.NewMemory(),
		MP:       mercadopago.NewClient("http://unused.invalid", "tok"),
		Broker:   NewBroker(),
		Notifier: notify.NewTelegram("", ""),
	}
}

func asAdmin(req *http.Request) *http.Request {
	req.Header.Set("X-User-Id", "u_admin")
	req.Header.Set("X-Admin", "true")
	return req
}

func TestCreateAndGetOrder(t *testing.T) {
	srv := newTestServer()
	body := `{"customer_name":"Maria","customer_contact":"11988887777","payment_method":"pix","total_amount":25.5,
		"items":[{"product_id":"p1","name":"Trufa","price":8.5,"quantity":3}]}`
	w := httptest.NewRecorder()
	srv.OrdersHandler(w, httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", w.Code, w.Body.String())
	}
	var o model.Order
	if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
		t.Fatal(err)
	}
	if o.Status != model.StatusPending {
		t.Fatalf("new order status %q, want pending", o.Status)
	}

	w = httptest.NewRecorder()
	srv.OrderByIDHandler(w, httptest.NewRequest(http.MethodGet, "/v1/orders/"+o.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	srv := newTestServer()
	cases := []string{
		`{}`,
		`{"customer_name":"x","customer_contact":"y","payment_method":"pix","total_amount":0,"items":[{"name":"a","quantity":1}]}`,
		`{"customer_name":"x","customer_contact":"y","payment_method":"pix","total_amount":10,"items":[]}`,
		`{"customer_name":"x","customer_contact":"y","payment_method":"pix","total_amount":10,"items":[{"name":"a","quantity":0}]}`,
	}
	for _, body := range cases {
		w := httptest.NewRecorder()
		srv.OrdersHandler(w, httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(body)))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status %d, want 400", body, w.Code)
		}
	}
}

func TestAdminOrderStatusPatch(t *testing.T) {
	srv := newTestServer()
	o, _ := srv.Store.CreateOrder(context.Background(), model.OrderIn{
		CustomerName: "Ana", CustomerContact: "11", PaymentMethod: "pix", TotalAmount: 10,
		Items: []model.OrderItem{{Name: "Doce", Price: 10, Quantity: 1}},
	})

	// status events reach the firehose feed
	feed := srv.Broker.Subscribe(FeedAll)
	defer srv.Broker.Unsubscribe(FeedAll, feed)

	w := httptest.NewRecorder()
	req := asAdmin(httptest.NewRequest(http.MethodPatch, "/v1/admin/orders/"+o.ID, strings.NewReader(`{"status":"preparing"}`)))
	srv.AdminOrderByIDHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	got, _ := srv.Store.GetOrder(context.Background(), o.ID)
	if got.Status != model.StatusPreparing {
		t.Fatalf("order status %q, want preparing", got.Status)
	}
	select {
	case evt := <-feed:
		if evt.Type != "order.status.updated" {
			t.Fatalf("event type %q", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no event on firehose feed")
	}

	// invalid status is rejected
	w = httptest.NewRecorder()
	srv.AdminOrderByIDHandler(w, asAdmin(httptest.NewRequest(http.MethodPatch, "/v1/admin/orders/"+o.ID, strings.NewReader(`{"status":"shipped"}`))))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: %d, want 400", w.Code)
	}

	// non-admin is rejected
	w = httptest.NewRecorder()
	srv.AdminOrderByIDHandler(w, httptest.NewRequest(http.MethodPatch, "/v1/admin/orders/"+o.ID, strings.NewReader(`{"status":"paid"}`)))
	if w.Code != http.StatusForbidden {
		t.Fatalf("anonymous patch: %d, want 403", w.Code)
	}
}

func TestAdminOrdersListPagination(t *testing.T) {
	srv := newTestServer()
	for i := 0; i < 5; i++ {
		_, _ = srv.Store.CreateOrder(context.Background(), model.OrderIn{
			CustomerName: "C", CustomerContact: "11", PaymentMethod: "pix", TotalAmount: 1,
			Items: []model.OrderItem{{Name: "x", Price: 1, Quantity: 1}},
		})
	}
	w := httptest.NewRecorder()
	srv.AdminOrdersHandler(w, asAdmin(httptest.NewRequest(http.MethodGet, "/v1/admin/orders?limit=2", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var page struct {
		Items      []model.Order `json:"items"`
		NextCursor string        `json:"nextCursor"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("page: %d items, cursor %q", len(page.Items), page.NextCursor)
	}

	w = httptest.NewRecorder()
	srv.AdminOrdersHandler(w, asAdmin(httptest.NewRequest(http.MethodGet, "/v1/admin/orders?limit=10&cursor="+page.NextCursor, nil)))
	var rest struct {
		Items []model.Order `json:"items"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &rest)
	if len(rest.Items) != 3 {
		t.Fatalf("second page: %d items, want 3", len(rest.Items))
	}
}

func TestGuestbookModerationFlow(t *testing.T) {
	srv := newTestServer()

	w := httptest.NewRecorder()
	srv.MessagesHandler(w, httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"author_name":"Joana","message":"Melhor brigadeiro da cidade!"}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create message: %d", w.Code)
	}
	var msg model.Message
	_ = json.Unmarshal(w.Body.Bytes(), &msg)
	approvePath := fmt.Sprintf("/v1/admin/messages/%d/approve", msg.ID)

	// unapproved messages stay off the public wall
	w = httptest.NewRecorder()
	srv.MessagesHandler(w, httptest.NewRequest(http.MethodGet, "/v1/messages", nil))
	var wall struct {
		Items []model.Message `json:"items"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &wall)
	if len(wall.Items) != 0 {
		t.Fatalf("public wall shows %d unapproved messages", len(wall.Items))
	}

	// but show up in the moderation queue
	w = httptest.NewRecorder()
	srv.AdminMessagesHandler(w, asAdmin(httptest.NewRequest(http.MethodGet, "/v1/admin/messages", nil)))
	var queue struct {
		Items []model.Message `json:"items"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &queue)
	if len(queue.Items) != 1 {
		t.Fatalf("moderation queue has %d messages, want 1", len(queue.Items))
	}

	// approve and re-check the wall
	w = httptest.NewRecorder()
	srv.AdminMessageByIDHandler(w, asAdmin(httptest.NewRequest(http.MethodPost, approvePath, nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("approve: %d", w.Code)
	}
	w = httptest.NewRecorder()
	srv.MessagesHandler(w, httptest.NewRequest(http.MethodGet, "/v1/messages", nil))
	_ = json.Unmarshal(w.Body.Bytes(), &wall)
	if len(wall.Items) != 1 {
		t.Fatalf("wall shows %d messages after approval, want 1", len(wall.Items))
	}
}

func TestFavoritesRequireUser(t *testing.T) {
	srv := newTestServer()
	w := httptest.NewRecorder()
	srv.FavoritesHandler(w, httptest.NewRequest(http.MethodGet, "/v1/favorites", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous favorites: %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/favorites", strings.NewReader(`{"product_id":"p1"}`))
	req.Header.Set("X-User-Id", "u1")
	w = httptest.NewRecorder()
	srv.FavoritesHandler(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("add favorite: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/favorites", nil)
	req.Header.Set("X-User-Id", "u1")
	w = httptest.NewRecorder()
	srv.FavoritesHandler(w, req)
	var resp struct {
		ProductIDs []string `json:"productIds"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.ProductIDs) != 1 || resp.ProductIDs[0] != "p1" {
		t.Fatalf("favorites: %v", resp.ProductIDs)
	}
}

func TestPixHandler(t *testing.T) {
	srv := newTestServer()
	o, _ := srv.Store.CreateOrder(context.Background(), model.OrderIn{
		CustomerName: "Bia", CustomerContact: "11", PaymentMethod: "pix", TotalAmount: 42.5,
		Items: []model.OrderItem{{Name: "Torta", Price: 42.5, Quantity: 1}},
	})
	w := httptest.NewRecorder()
	srv.PixHandler(w, httptest.NewRequest(http.MethodGet, "/v1/payments/pix/"+o.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		BRCode string  `json:"brCode"`
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.BRCode, "br.gov.bcb.pix") || !strings.Contains(resp.BRCode, "42.50") {
		t.Fatalf("BR Code missing expected fields: %s", resp.BRCode)
	}
	if resp.Amount != 42.5 {
		t.Fatalf("amount %v", resp.Amount)
	}
}

func TestSweetNoteLifecycle(t *testing.T) {
	srv := newTestServer()

	// no active note reports null, not 404
	w := httptest.NewRecorder()
	srv.SweetNoteHandler(w, httptest.NewRequest(http.MethodGet, "/v1/sweet-note", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("empty: %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.AdminSweetNotesHandler(w, asAdmin(httptest.NewRequest(http.MethodPost, "/v1/admin/sweet-notes",
		strings.NewReader(`{"content":"Hoje tem trufa de pistache!","is_active":true}`))))
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: %d, body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	srv.SweetNoteHandler(w, httptest.NewRequest(http.MethodGet, "/v1/sweet-note", nil))
	var resp struct {
		Note *model.SweetNote `json:"note"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Note == nil || !strings.Contains(resp.Note.Content, "pistache") {
		t.Fatalf("active note missing: %s", w.Body.String())
	}
}

func TestOrderEventsSSE(t *testing.T) {
	srv := newTestServer()
	o, _ := srv.Store.CreateOrder(context.Background(), model.OrderIn{
		CustomerName: "Lia", CustomerContact: "11", PaymentMethod: "pix", TotalAmount: 5,
		Items: []model.OrderItem{{Name: "Doce", Price: 5, Quantity: 1}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/orders/"+o.ID+"/events/stream", nil).WithContext(ctx)
	rec := newSSERecorder()

	done := make(chan struct{})
	go func() {
		srv.OrderByIDHandler(rec, req)
		close(done)
	}()

	// wait for the subscription before publishing
	waitFor(t, func() bool { return strings.Contains(rec.String(), ": connected") })
	srv.publishOrderEvent(o.ID, SSEEvent{Type: "order.status.updated", Data: map[string]any{"orderId": o.ID, "status": "paid"}})
	waitFor(t, func() bool { return strings.Contains(rec.String(), "event: order.status.updated") })

	cancel()
	<-done
	if !strings.Contains(rec.String(), `"status":"paid"`) {
		t.Fatalf("stream missing event payload: %s", rec.String())
	}
}

// sseRecorder is a flushable ResponseWriter safe for concurrent reads.
type sseRecorder struct {
	mu   sync.Mutex
	hdr  http.Header
	body bytes.Buffer
	code int
}

func newSSERecorder() *sseRecorder { return &sseRecorder{hdr: http.Header{}, code: 200} }

func (r *sseRecorder) Header() http.Header { return r.hdr }

func (r *sseRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(b)
}

func (r *sseRecorder) WriteHeader(code int) { r.code = code }

func (r *sseRecorder) Flush() {}

func (r *sseRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
