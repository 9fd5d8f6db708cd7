package api

import (
	"errors"
	"strconv"
	"strings"

	"doceria/internal/model"
)

func validateOrderIn(in *model.OrderIn) error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return errors.New("customer_name is required")
	}
	if strings.TrimSpace(in.CustomerContact) == "" {
		return errors.New("customer_contact is required")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return errors.New("payment_method is required")
	}
	if in.TotalAmount <= 0 {
		return errors.New("total_amount must be positive")
	}
	if len(in.Items) == 0 {
		return errors.New("at least one item is required")
	}
	for i, it := range in.Items {
		if it.Quantity <= 0 {
			return errors.New("items[" + strconv.Itoa(i) + "].quantity must be positive")
		}
		if strings.TrimSpace(it.Name) == "" {
			return errors.New("items[" + strconv.Itoa(i) + "].name is required")
		}
	}
	return nil
}

func validateProductIn(in *model.ProductIn) error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("name is required")
	}
	if in.Price <= 0 {
		return errors.New("price must be positive")
	}
	if in.Stock < 0 {
		return errors.New("stock cannot be negative")
	}
	return nil
}
