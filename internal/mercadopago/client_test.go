package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetPayment(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/555" {
			t.Errorf("path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 555,
			"external_reference": "order-1",
			"status":             "approved",
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "tok")
	p, err := c.GetPayment(context.Background(), "555")
	if err != nil {
		t.Fatal(err)
	}
	if p.ExternalReference != "order-1" || p.Status != "approved" {
		t.Fatalf("payment %+v", p)
	}
}

func TestGetPaymentAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Payment not found"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "tok")
	_, err := c.GetPayment(context.Background(), "0")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", apiErr.StatusCode)
	}
	if !json.Valid(apiErr.Body) {
		t.Fatalf("body not JSON: %s", apiErr.Body)
	}
}

func TestGetPaymentNonJSONErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "tok")
	_, err := c.GetPayment(context.Background(), "0")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal(err)
	}
	// non-JSON provider bodies must still embed cleanly in a JSON response
	if !json.Valid(apiErr.Body) {
		t.Fatalf("body not embeddable: %s", apiErr.Body)
	}
}

func TestCreatePreference(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/preferences" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var pref Preference
		if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
			t.Error(err)
		}
		if pref.ExternalReference != "order-1" || len(pref.Items) != 1 {
			t.Errorf("preference %+v", pref)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"init_point": "https://checkout.example/p/1"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "tok")
	initPoint, err := c.CreatePreference(context.Background(), Preference{
		Items:             []PreferenceItem{{Title: "Trufa", Quantity: 2, UnitPrice: 8.5, CurrencyID: "BRL"}},
		ExternalReference: "order-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if initPoint != "https://checkout.example/p/1" {
		t.Fatalf("init_point %q", initPoint)
	}
}
