package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"doceria/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	products  map[string]model.Product
	orders    map[string]model.Order
	orderSeq  []string // insertion order, for stable listing
	messages  map[int64]model.Message
	msgSeq    int64
	profiles  map[string]model.Profile
	favorites map[string]map[string]struct{} // userID -> productID set
	notes     map[string]model.SweetNote
	queue     map[string]*memNotification
	queueSeq  []string
}

func NewMemory() *Memory {
	return &Memory{
		products:  map[string]model.Product{},
		orders:    map[string]model.Order{},
		messages:  map[int64]model.Message{},
		profiles:  map[string]model.Profile{},
		favorites: map[string]map[string]struct{}{},
		notes:     map[string]model.SweetNote{},
		queue:     map[string]*memNotification{},
	}
}

// memNotification augments Notification with scheduling/metrics state.
type memNotification struct {
	Notification
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) CreateProduct(ctx context.Context, in model.ProductIn) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := model.Product{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
		Category:    in.Category,
		Stock:       in.Stock,
		Featured:    in.Featured,
	}
	m.products[p.ID] = p
	return p, nil
}

func (m *Memory) GetProduct(ctx context.Context, id string) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListProducts(ctx context.Context, category string, featuredOnly bool) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Product{}
	for _, p := range m.products {
		if category != "" && p.Category != category {
			continue
		}
		if featuredOnly && !p.Featured {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateProduct(ctx context.Context, id string, in model.ProductIn) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Image = in.Image
	p.Category = in.Category
	p.Stock = in.Stock
	p.Featured = in.Featured
	m.products[id] = p
	return p, nil
}

func (m *Memory) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) CreateOrder(ctx context.Context, in model.OrderIn) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := model.Order{
		ID:              uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
		CustomerName:    in.CustomerName,
		CustomerContact: in.CustomerContact,
		CustomerCPF:     in.CustomerCPF,
		UserID:          in.UserID,
		TotalAmount:     in.TotalAmount,
		Status:          model.StatusPending,
		Items:           append([]model.OrderItem(nil), in.Items...),
		PaymentMethod:   in.PaymentMethod,
	}
	m.orders[o.ID] = o
	m.orderSeq = append(m.orderSeq, o.ID)
	return o, nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return o, nil
}

func (m *Memory) ListOrders(ctx context.Context, status, cursor string, limit int) ([]model.Order, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i, id := range m.orderSeq {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.Order{}
	next := ""
	for _, id := range m.orderSeq[start:] {
		o := m.orders[id]
		if status != "" && string(o.Status) != status {
			continue
		}
		if len(out) == limit {
			next = out[len(out)-1].ID
			break
		}
		out = append(out, o)
	}
	return out, next, nil
}

func (m *Memory) ListOrdersForUser(ctx context.Context, userID string) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Order{}
	for _, id := range m.orderSeq {
		if o := m.orders[id]; o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Memory) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	o.Status = status
	m.orders[id] = o
	return o, nil
}

func (m *Memory) CreateMessage(ctx context.Context, in model.MessageIn) (model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgSeq++
	msg := model.Message{
		ID:          m.msgSeq,
		AuthorName:  in.AuthorName,
		AuthorEmail: in.AuthorEmail,
		Message:     in.Message,
		Approved:    false,
		CreatedAt:   time.Now().UTC(),
	}
	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *Memory) ListMessages(ctx context.Context, approvedOnly bool) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Message{}
	for _, msg := range m.messages {
		if approvedOnly && !msg.Approved {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SetMessageApproved(ctx context.Context, id int64, approved bool) (model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return model.Message{}, ErrNotFound
	}
	msg.Approved = approved
	m.messages[id] = msg
	return msg, nil
}

func (m *Memory) DeleteMessage(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[id]; !ok {
		return ErrNotFound
	}
	delete(m.messages, id)
	return nil
}

func (m *Memory) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// is_admin is never settable through upsert; keep the stored flag
	if prev, ok := m.profiles[p.ID]; ok {
		p.IsAdmin = prev.IsAdmin
	} else {
		p.IsAdmin = false
	}
	m.profiles[p.ID] = p
	return p, nil
}

func (m *Memory) AddFavorite(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.favorites[userID] == nil {
		m.favorites[userID] = map[string]struct{}{}
	}
	m.favorites[userID][productID] = struct{}{}
	return nil
}

func (m *Memory) RemoveFavorite(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set := m.favorites[userID]; set != nil {
		delete(set, productID)
	}
	return nil
}

func (m *Memory) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for id := range m.favorites[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ActiveSweetNote(ctx context.Context) (model.SweetNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest model.SweetNote
	found := false
	for _, n := range m.notes {
		if !n.IsActive {
			continue
		}
		if !found || n.CreatedAt.After(latest.CreatedAt) {
			latest = n
			found = true
		}
	}
	if !found {
		return model.SweetNote{}, ErrNotFound
	}
	return latest, nil
}

func (m *Memory) UpsertSweetNote(ctx context.Context, in model.SweetNoteIn) (model.SweetNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.ID != "" {
		n, ok := m.notes[in.ID]
		if !ok {
			return model.SweetNote{}, ErrNotFound
		}
		n.Title = in.Title
		n.Content = in.Content
		n.IsActive = in.IsActive
		m.notes[in.ID] = n
		return n, nil
	}
	n := model.SweetNote{
		ID:        uuid.New().String(),
		Title:     in.Title,
		Content:   in.Content,
		IsActive:  in.IsActive,
		CreatedAt: time.Now().UTC(),
	}
	m.notes[n.ID] = n
	return n, nil
}

func (m *Memory) ListSweetNotes(ctx context.Context) ([]model.SweetNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.SweetNote{}
	for _, n := range m.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteSweetNote(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *Memory) EnqueueNotification(ctx context.Context, orderID string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// one notification per order, matching the unique constraint in Postgres
	for _, n := range m.queue {
		if n.OrderID == orderID {
			return n.ID, nil
		}
	}
	id := uuid.New().String()
	m.queue[id] = &memNotification{
		Notification: Notification{
			ID:      id,
			OrderID: orderID,
			Payload: append([]byte(nil), payload...),
			Status:  "pending",
		},
		NextAttemptAt: time.Now(),
	}
	m.queueSeq = append(m.queueSeq, id)
	return id, nil
}

func (m *Memory) FetchDueNotifications(ctx context.Context, limit int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []Notification{}
	for _, id := range m.queueSeq {
		n := m.queue[id]
		if n.Status != "pending" || n.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, n.Notification)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkNotification(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.queue[id]
	if !ok {
		return ErrNotFound
	}
	n.Attempts++
	n.LastError = lastError
	n.ResponseCode = responseCode
	n.LatencyMs = latencyMs
	if success {
		n.Status = "delivered"
		now := time.Now()
		n.DeliveredAt = &now
	} else if nextAttemptAt != nil {
		n.NextAttemptAt = *nextAttemptAt
	}
	return nil
}

func (m *Memory) FailNotification(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.queue[id]
	if !ok {
		return ErrNotFound
	}
	n.Attempts++
	n.Status = "failed"
	n.LastError = lastError
	n.ResponseCode = responseCode
	n.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListNotifications(ctx context.Context, status string, limit int) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []map[string]any{}
	for _, id := range m.queueSeq {
		n := m.queue[id]
		if status != "" && n.Status != status {
			continue
		}
		out = append(out, map[string]any{
			"id":           n.ID,
			"orderId":      n.OrderID,
			"status":       n.Status,
			"attempts":     n.Attempts,
			"lastError":    n.LastError,
			"responseCode": n.ResponseCode,
			"latencyMs":    n.LatencyMs,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) RetryNotification(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.queue[id]
	if !ok {
		return ErrNotFound
	}
	n.Status = "pending"
	n.NextAttemptAt = time.Now()
	return nil
}
