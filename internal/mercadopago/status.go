package mercadopago

import "doceria/internal/model"

// MapStatus translates a provider payment status into an order lifecycle
// status. Unrecognized statuses map to pending rather than erroring: the
// provider adds statuses over time and a conservative default keeps the
// order actionable.
func MapStatus(providerStatus string) model.OrderStatus {
	switch providerStatus {
	case "approved":
		return model.StatusPaid
	case "pending", "in_process":
		return model.StatusPending
	case "rejected", "cancelled", "refunded", "charged_back":
		return model.StatusCancelled
	default:
		return model.StatusPending
	}
}
