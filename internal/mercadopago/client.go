package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://api.mercadopago.com"

// Client calls the Mercado Pago REST API with a server-held access token.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTP        *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:     baseURL,
		AccessToken: accessToken,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
	}
}

// Payment is the slice of the provider's payment record the reconciler
// consumes. The full response is loosely typed; only these fields are
// trusted, and only after fetching from the provider directly.
type Payment struct {
	ID                json.Number `json:"id"`
	ExternalReference string      `json:"external_reference"`
	Status            string      `json:"status"`
}

// APIError carries a non-2xx provider response; Body is returned to the
// webhook caller as diagnostics.
type APIError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: status %d: %s", e.StatusCode, string(e.Body))
}

// GetPayment fetches the authoritative payment record for a webhook
// notification. Status fields embedded in webhook payloads are never trusted.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return Payment{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Payment{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Payment{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Payment{}, &APIError{StatusCode: resp.StatusCode, Body: normalizeErrBody(body)}
	}
	var p Payment
	if err := json.Unmarshal(body, &p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// Preference is a checkout session created ahead of redirect.
type Preference struct {
	Items             []PreferenceItem `json:"items"`
	Payer             Payer            `json:"payer"`
	BackURLs          BackURLs         `json:"back_urls"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	ExternalReference string           `json:"external_reference"`
	PaymentMethods    PaymentMethods   `json:"payment_methods"`
}

type PreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type Payer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone *Phone `json:"phone,omitempty"`
}

type Phone struct {
	AreaCode string `json:"area_code,omitempty"`
	Number   string `json:"number,omitempty"`
}

type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type PaymentMethods struct {
	Installments         int   `json:"installments,omitempty"`
	ExcludedPaymentTypes []any `json:"excluded_payment_types"`
}

// CreatePreference creates a provider-hosted checkout page and returns its
// redirect URL (init_point).
func (c *Client) CreatePreference(ctx context.Context, pref Preference) (initPoint string, err error) {
	payload, err := json.Marshal(pref)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/checkout/preferences", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: normalizeErrBody(body)}
	}
	var out struct {
		InitPoint string `json:"init_point"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	return out.InitPoint, nil
}

// normalizeErrBody keeps provider error bodies embeddable in a JSON response.
func normalizeErrBody(body []byte) json.RawMessage {
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
