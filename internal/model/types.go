package model

import "time"

// Order lifecycle statuses. Orders start as StatusPending; the payment
// webhook and admin actions transition them afterwards.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusPreparing OrderStatus = "preparing"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// ValidOrderStatus reports whether s is one of the known lifecycle statuses.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusPaid, StatusPreparing, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Product struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Category    string    `json:"category"` // trufa, doce, torta
	Stock       int       `json:"stock"`
	Featured    bool      `json:"featured"`
}

type ProductIn struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	Featured    bool    `json:"featured"`
}

// OrderItem is an immutable snapshot of a product at order-creation time,
// decoupled from the live product record.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
}

type Order struct {
	ID              string      `json:"id"`
	CreatedAt       time.Time   `json:"created_at"`
	CustomerName    string      `json:"customer_name"`
	CustomerContact string      `json:"customer_contact"`
	CustomerCPF     string      `json:"customer_cpf,omitempty"`
	UserID          string      `json:"user_id,omitempty"`
	TotalAmount     float64     `json:"total_amount"`
	Status          OrderStatus `json:"status"`
	Items           []OrderItem `json:"items"`
	PaymentMethod   string      `json:"payment_method"`
}

type OrderIn struct {
	CustomerName    string      `json:"customer_name"`
	CustomerContact string      `json:"customer_contact"`
	CustomerCPF     string      `json:"customer_cpf,omitempty"`
	UserID          string      `json:"user_id,omitempty"`
	TotalAmount     float64     `json:"total_amount"`
	Items           []OrderItem `json:"items"`
	PaymentMethod   string      `json:"payment_method"`
}

type Message struct {
	ID          int64     `json:"id"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email,omitempty"`
	Message     string    `json:"message"`
	Approved    bool      `json:"approved"`
	CreatedAt   time.Time `json:"created_at"`
}

type MessageIn struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email,omitempty"`
	Message     string `json:"message"`
}

type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
}

type SweetNote struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type SweetNoteIn struct {
	ID       string `json:"id,omitempty"` // empty inserts, set updates
	Title    string `json:"title,omitempty"`
	Content  string `json:"content"`
	IsActive bool   `json:"is_active"`
}
