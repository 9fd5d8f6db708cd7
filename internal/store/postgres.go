package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"doceria/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an existing handle; used by tests.
func NewPostgresFromDB(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every .sql file in dir in lexical order (dev helper; a
// real deployment should use a migration tool with version tracking).
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreateProduct(ctx context.Context, in model.ProductIn) (model.Product, error) {
	id := uuid.New().String()
	row := p.db.QueryRowContext(ctx, `INSERT INTO products (id, name, description, price, image, category, stock, featured)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING created_at`,
		id, in.Name, in.Description, in.Price, in.Image, in.Category, in.Stock, in.Featured)
	var created time.Time
	if err := row.Scan(&created); err != nil {
		return model.Product{}, err
	}
	return model.Product{ID: id, CreatedAt: created, Name: in.Name, Description: in.Description,
		Price: in.Price, Image: in.Image, Category: in.Category, Stock: in.Stock, Featured: in.Featured}, nil
}

func (p *Postgres) GetProduct(ctx context.Context, id string) (model.Product, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, created_at, name, description, price, image, category, stock, featured
		FROM products WHERE id=$1`, id)
	return scanProduct(row)
}

func (p *Postgres) ListProducts(ctx context.Context, category string, featuredOnly bool) ([]model.Product, error) {
	q := `SELECT id::text, created_at, name, description, price, image, category, stock, featured FROM products WHERE 1=1`
	args := []any{}
	if category != "" {
		args = append(args, category)
		q += ` AND category=$1`
	}
	if featuredOnly {
		q += ` AND featured`
	}
	q += ` ORDER BY created_at`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		pr, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateProduct(ctx context.Context, id string, in model.ProductIn) (model.Product, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE products SET name=$2, description=$3, price=$4, image=$5, category=$6, stock=$7, featured=$8 WHERE id=$1`,
		id, in.Name, in.Description, in.Price, in.Image, in.Category, in.Stock, in.Featured)
	if err != nil {
		return model.Product{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Product{}, ErrNotFound
	}
	return p.GetProduct(ctx, id)
}

func (p *Postgres) DeleteProduct(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateOrder(ctx context.Context, in model.OrderIn) (model.Order, error) {
	id := uuid.New().String()
	items, err := json.Marshal(in.Items)
	if err != nil {
		return model.Order{}, err
	}
	row := p.db.QueryRowContext(ctx, `INSERT INTO orders (id, customer_name, customer_contact, customer_cpf, user_id, total_amount, status, items, payment_method)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',$7,$8) RETURNING created_at`,
		id, in.CustomerName, in.CustomerContact, nullIfEmpty(in.CustomerCPF), nullIfEmpty(in.UserID), in.TotalAmount, items, in.PaymentMethod)
	var created time.Time
	if err := row.Scan(&created); err != nil {
		return model.Order{}, err
	}
	return model.Order{ID: id, CreatedAt: created, CustomerName: in.CustomerName, CustomerContact: in.CustomerContact,
		CustomerCPF: in.CustomerCPF, UserID: in.UserID, TotalAmount: in.TotalAmount, Status: model.StatusPending,
		Items: in.Items, PaymentMethod: in.PaymentMethod}, nil
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (model.Order, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, created_at, customer_name, customer_contact, COALESCE(customer_cpf,''), COALESCE(user_id::text,''), total_amount, status, items, payment_method
		FROM orders WHERE id=$1`, id)
	return scanOrder(row)
}

func (p *Postgres) ListOrders(ctx context.Context, status, cursor string, limit int) ([]model.Order, string, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id::text, created_at, customer_name, customer_contact, COALESCE(customer_cpf,''), COALESCE(user_id::text,''), total_amount, status, items, payment_method FROM orders`
	conds := []string{}
	args := []any{}
	if status != "" {
		args = append(args, status)
		conds = append(conds, `status=$1`)
	}
	if cursor != "" {
		args = append(args, cursor)
		conds = append(conds, `created_at > (SELECT created_at FROM orders WHERE id=$`+strconv.Itoa(len(args))+`)`)
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	args = append(args, limit)
	q += ` ORDER BY created_at LIMIT $` + strconv.Itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, o)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) ListOrdersForUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, created_at, customer_name, customer_contact, COALESCE(customer_cpf,''), COALESCE(user_id::text,''), total_amount, status, items, payment_method
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return model.Order{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Order{}, ErrNotFound
	}
	return p.GetOrder(ctx, id)
}

func (p *Postgres) CreateMessage(ctx context.Context, in model.MessageIn) (model.Message, error) {
	row := p.db.QueryRowContext(ctx, `INSERT INTO messages (author_name, author_email, message, approved)
		VALUES ($1,$2,$3,false) RETURNING id, created_at`, in.AuthorName, nullIfEmpty(in.AuthorEmail), in.Message)
	var id int64
	var created time.Time
	if err := row.Scan(&id, &created); err != nil {
		return model.Message{}, err
	}
	return model.Message{ID: id, AuthorName: in.AuthorName, AuthorEmail: in.AuthorEmail, Message: in.Message, CreatedAt: created}, nil
}

func (p *Postgres) ListMessages(ctx context.Context, approvedOnly bool) ([]model.Message, error) {
	q := `SELECT id, author_name, COALESCE(author_email,''), message, approved, created_at FROM messages`
	if approvedOnly {
		q += ` WHERE approved`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.AuthorName, &m.AuthorEmail, &m.Message, &m.Approved, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) SetMessageApproved(ctx context.Context, id int64, approved bool) (model.Message, error) {
	row := p.db.QueryRowContext(ctx, `UPDATE messages SET approved=$2 WHERE id=$1
		RETURNING id, author_name, COALESCE(author_email,''), message, approved, created_at`, id, approved)
	var m model.Message
	if err := row.Scan(&m.ID, &m.AuthorName, &m.AuthorEmail, &m.Message, &m.Approved, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Message{}, ErrNotFound
		}
		return model.Message{}, err
	}
	return m, nil
}

func (p *Postgres) DeleteMessage(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, COALESCE(first_name,''), COALESCE(last_name,''), is_admin FROM profiles WHERE id=$1`, userID)
	var pr model.Profile
	if err := row.Scan(&pr.ID, &pr.FirstName, &pr.LastName, &pr.IsAdmin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, err
	}
	return pr, nil
}

func (p *Postgres) UpsertProfile(ctx context.Context, pr model.Profile) (model.Profile, error) {
	// is_admin is managed out of band; inserts default to false and updates
	// never touch it.
	row := p.db.QueryRowContext(ctx, `INSERT INTO profiles (id, first_name, last_name, is_admin)
		VALUES ($1,$2,$3,false)
		ON CONFLICT (id) DO UPDATE SET first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name
		RETURNING id::text, COALESCE(first_name,''), COALESCE(last_name,''), is_admin`,
		pr.ID, nullIfEmpty(pr.FirstName), nullIfEmpty(pr.LastName))
	var out model.Profile
	if err := row.Scan(&out.ID, &out.FirstName, &out.LastName, &out.IsAdmin); err != nil {
		return model.Profile{}, err
	}
	return out, nil
}

func (p *Postgres) AddFavorite(ctx context.Context, userID, productID string) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO user_favorites (user_id, product_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, userID, productID)
	return err
}

func (p *Postgres) RemoveFavorite(ctx context.Context, userID, productID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM user_favorites WHERE user_id=$1 AND product_id=$2`, userID, productID)
	return err
}

func (p *Postgres) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT product_id::text FROM user_favorites WHERE user_id=$1 ORDER BY product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *Postgres) ActiveSweetNote(ctx context.Context) (model.SweetNote, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, COALESCE(title,''), content, is_active, created_at
		FROM sweet_notes WHERE is_active ORDER BY created_at DESC LIMIT 1`)
	return scanSweetNote(row)
}

func (p *Postgres) UpsertSweetNote(ctx context.Context, in model.SweetNoteIn) (model.SweetNote, error) {
	if in.ID != "" {
		row := p.db.QueryRowContext(ctx, `UPDATE sweet_notes SET title=$2, content=$3, is_active=$4 WHERE id=$1
			RETURNING id::text, COALESCE(title,''), content, is_active, created_at`,
			in.ID, nullIfEmpty(in.Title), in.Content, in.IsActive)
		return scanSweetNote(row)
	}
	row := p.db.QueryRowContext(ctx, `INSERT INTO sweet_notes (id, title, content, is_active) VALUES ($1,$2,$3,$4)
		RETURNING id::text, COALESCE(title,''), content, is_active, created_at`,
		uuid.New().String(), nullIfEmpty(in.Title), in.Content, in.IsActive)
	return scanSweetNote(row)
}

func (p *Postgres) ListSweetNotes(ctx context.Context) ([]model.SweetNote, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, COALESCE(title,''), content, is_active, created_at FROM sweet_notes ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.SweetNote{}
	for rows.Next() {
		n, err := scanSweetNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSweetNote(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sweet_notes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueNotification(ctx context.Context, orderID string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO notifications (id, order_id, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,'pending',0,now()) ON CONFLICT (order_id) DO NOTHING`, id, orderID, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueNotifications(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, order_id::text, payload, status, attempts
		FROM notifications WHERE status='pending' AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Payload, &n.Status, &n.Attempts); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkNotification(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE notifications SET attempts=attempts+1, last_error=$2, next_attempt_at=$3, response_code=$4, latency_ms=$5, updated_at=now() WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE notifications SET attempts=attempts+1, status='delivered', delivered_at=now(), response_code=$2, latency_ms=$3, updated_at=now() WHERE id=$1`,
		id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailNotification(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE notifications SET attempts=attempts+1, status='failed', last_error=$2, response_code=$3, latency_ms=$4, updated_at=now() WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListNotifications(ctx context.Context, status string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id::text, order_id::text, status, attempts, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0) FROM notifications`
	args := []any{}
	if status != "" {
		args = append(args, status)
		q += ` WHERE status=$1`
	}
	args = append(args, limit)
	q += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var id, orderID, st, lastErr string
		var attempts, code, latency int
		if err := rows.Scan(&id, &orderID, &st, &attempts, &lastErr, &code, &latency); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"id": id, "orderId": orderID, "status": st, "attempts": attempts,
			"lastError": lastErr, "responseCode": code, "latencyMs": latency,
		})
	}
	return out, rows.Err()
}

func (p *Postgres) RetryNotification(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE notifications SET status='pending', next_attempt_at=now(), updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanProduct(row rowScanner) (model.Product, error) {
	var pr model.Product
	err := row.Scan(&pr.ID, &pr.CreatedAt, &pr.Name, &pr.Description, &pr.Price, &pr.Image, &pr.Category, &pr.Stock, &pr.Featured)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrNotFound
	}
	return pr, err
}

func scanOrder(row rowScanner) (model.Order, error) {
	var o model.Order
	var status string
	var items []byte
	err := row.Scan(&o.ID, &o.CreatedAt, &o.CustomerName, &o.CustomerContact, &o.CustomerCPF, &o.UserID, &o.TotalAmount, &status, &items, &o.PaymentMethod)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return model.Order{}, err
		}
	}
	return o, nil
}

func scanSweetNote(row rowScanner) (model.SweetNote, error) {
	var n model.SweetNote
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.IsActive, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SweetNote{}, ErrNotFound
	}
	return n, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
