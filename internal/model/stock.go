package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockLevel holds the on-hand quantity of one product variant
type StockLevel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_stock_variant,priority:1" json:"product_id"`
	Size      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_stock_variant,priority:2" json:"size"`
	Color     string    `gorm:"type:varchar(32);not null;default:'';uniqueIndex:idx_stock_variant,priority:3" json:"color"`
	Quantity  int       `gorm:"type:int;not null;default:0" json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VariantKey identifies a stock counter
type VariantKey struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color,omitempty"`
}

// Key returns the variant key of a stock level
func (s StockLevel) Key() VariantKey {
	return VariantKey{ProductID: s.ProductID, Size: s.Size, Color: s.Color}
}

// TransactionType Enum Simulation
const (
	TxTypeIn  = "IN"
	TxTypeOut = "OUT"
	TxTypeSet = "SET"
)

// InventoryTransaction (stock card) records every stock change
type InventoryTransaction struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID       string     `gorm:"type:varchar(64);not null;index" json:"product_id"`
	Size            string     `gorm:"type:varchar(32);not null" json:"size"`
	Color           string     `gorm:"type:varchar(32)" json:"color"`
	OrderID         *uuid.UUID `gorm:"type:uuid;index" json:"order_id"` // nil for manual adjustments
	TransactionType string     `gorm:"type:varchar(10);not null" json:"transaction_type"`
	QuantityChanged int        `gorm:"type:int;not null" json:"quantity_changed"`
	StockAfter      int        `gorm:"type:int;not null" json:"stock_after"`
	CreatedBy       string     `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (t *InventoryTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
