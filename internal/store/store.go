package store

import (
	"context"
	"errors"
	"time"

	"doceria/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Products
	CreateProduct(ctx context.Context, in model.ProductIn) (model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	ListProducts(ctx context.Context, category string, featuredOnly bool) ([]model.Product, error)
	UpdateProduct(ctx context.Context, id string, in model.ProductIn) (model.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// Orders
	CreateOrder(ctx context.Context, in model.OrderIn) (model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	ListOrders(ctx context.Context, status, cursor string, limit int) (items []model.Order, nextCursor string, err error)
	ListOrdersForUser(ctx context.Context, userID string) ([]model.Order, error)
	// UpdateOrderStatus patches the status column only; last write wins.
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error)

	// Messages (testimonial wall)
	CreateMessage(ctx context.Context, in model.MessageIn) (model.Message, error)
	ListMessages(ctx context.Context, approvedOnly bool) ([]model.Message, error)
	SetMessageApproved(ctx context.Context, id int64, approved bool) (model.Message, error)
	DeleteMessage(ctx context.Context, id int64) error

	// Profiles
	GetProfile(ctx context.Context, userID string) (model.Profile, error)
	UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error)

	// Favorites
	AddFavorite(ctx context.Context, userID, productID string) error
	RemoveFavorite(ctx context.Context, userID, productID string) error
	ListFavorites(ctx context.Context, userID string) ([]string, error)

	// Sweet notes
	ActiveSweetNote(ctx context.Context) (model.SweetNote, error)
	UpsertSweetNote(ctx context.Context, in model.SweetNoteIn) (model.SweetNote, error)
	ListSweetNotes(ctx context.Context) ([]model.SweetNote, error)
	DeleteSweetNote(ctx context.Context, id string) error

	// New-order notification queue
	EnqueueNotification(ctx context.Context, orderID string, payload []byte) (string, error)
	FetchDueNotifications(ctx context.Context, limit int) ([]Notification, error)
	MarkNotification(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailNotification(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListNotifications(ctx context.Context, status string, limit int) ([]map[string]any, error)
	RetryNotification(ctx context.Context, id string) error
}

// Notification is one queued new-order message awaiting delivery.
type Notification struct {
	ID       string
	OrderID  string
	Payload  []byte
	Status   string
	Attempts int
}

var ErrNotFound = errors.New("not found")
