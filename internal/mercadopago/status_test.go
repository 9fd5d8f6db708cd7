package mercadopago

import (
	"testing"

	"doceria/internal/model"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		provider string
		want     model.OrderStatus
	}{
		{"approved", model.StatusPaid},
		{"pending", model.StatusPending},
		{"in_process", model.StatusPending},
		{"rejected", model.StatusCancelled},
		{"cancelled", model.StatusCancelled},
		{"refunded", model.StatusCancelled},
		{"charged_back", model.StatusCancelled},
		// anything unknown stays pending rather than guessing
		{"authorized", model.StatusPending},
		{"", model.StatusPending},
		{"APPROVED", model.StatusPending},
	}
	for _, c := range cases {
		if got := MapStatus(c.provider); got != c.want {
			t.Errorf("MapStatus(%q) = %q, want %q", c.provider, got, c.want)
		}
	}
}
