package stock

import (
	"fmt"

	"orderflow/internal/model"

	"github.com/google/uuid"
)

// StockKey is the redis counter of one variant
func StockKey(key model.VariantKey) string {
	return fmt.Sprintf("orderflow:stock:%s:%s:%s", key.ProductID, key.Size, key.Color)
}

// AppliedKey marks that the decrement of an order has been applied
func AppliedKey(ref uuid.UUID) string {
	return fmt.Sprintf("orderflow:stock:applied:%s", ref)
}
