// Package notify delivers new-order notifications to the shop operator
// through a durable, store-backed queue.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"doceria/internal/model"
)

// Telegram posts messages to a chat via the Bot API.
type Telegram struct {
	BotToken string
	ChatID   string
	BaseURL  string // overridable for tests
	HTTP     *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  "https://api.telegram.org",
		HTTP:     &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether credentials are configured.
func (t *Telegram) Enabled() bool { return t != nil && t.BotToken != "" && t.ChatID != "" }

// Send posts one message. Non-2xx responses are errors so the worker retries.
func (t *Telegram) Send(ctx context.Context, text string) (statusCode int, err error) {
	payload, _ := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return resp.StatusCode, fmt.Errorf("telegram: status %d: %s", resp.StatusCode, body)
	}
	return resp.StatusCode, nil
}

// OrderMessage renders the operator-facing text for a new order.
func OrderMessage(o model.Order) string {
	var items strings.Builder
	for _, it := range o.Items {
		fmt.Fprintf(&items, "  - %dx %s (R$ %.2f)\n", it.Quantity, it.Name, it.Price)
	}
	idShort := o.ID
	if len(idShort) > 8 {
		idShort = idShort[:8]
	}
	return fmt.Sprintf("🎉 *NOVO PEDIDO RECEBIDO!* 🎉\n\n"+
		"*Pedido:* `%s`\n*Cliente:* %s\n*Contato:* %s\n*Total:* R$ %.2f\n*Pagamento:* %s\n*Status:* %s\n\n"+
		"*Itens:*\n%s\n_Data:_ %s",
		idShort, o.CustomerName, o.CustomerContact, o.TotalAmount, o.PaymentMethod, o.Status,
		items.String(), o.CreatedAt.Format("02/01/2006 15:04"))
}
