package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusDraft               OrderStatus = "DRAFT"
	OrderStatusConfirmed           OrderStatus = "CONFIRMED"
	OrderStatusAssignedToWarehouse OrderStatus = "ASSIGNED_TO_WAREHOUSE" // warehouse manager custody, no picker yet
	OrderStatusAssignedToPicker    OrderStatus = "ASSIGNED_TO_PICKER"
	OrderStatusProcessing          OrderStatus = "PROCESSING"
	OrderStatusPendingRevision     OrderStatus = "PENDING_REVISION"
	OrderStatusCompleted           OrderStatus = "COMPLETED"
	OrderStatusShipped             OrderStatus = "SHIPPED"
	OrderStatusCanceled            OrderStatus = "CANCELED"
)

// AllOrderStatuses lists every status in lifecycle order
var AllOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusConfirmed,
	OrderStatusAssignedToWarehouse,
	OrderStatusAssignedToPicker,
	OrderStatusProcessing,
	OrderStatusPendingRevision,
	OrderStatusCompleted,
	OrderStatusShipped,
	OrderStatusCanceled,
}

// IsTerminal reports whether no further status change is expected
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusShipped || s == OrderStatusCanceled
}

// IsEditable reports whether customer fields and items may still change
func (s OrderStatus) IsEditable() bool {
	return s == OrderStatusDraft || s == OrderStatusConfirmed || s == OrderStatusPendingRevision
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, st := range AllOrderStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// ItemVariant identifies the color/size combination of an ordered product
type ItemVariant struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size"`
}

// OrderItem is a line of an order. Items are stored as a JSON blob on the order row.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Qty         int             `json:"qty"`
	Variant     ItemVariant     `json:"selected_variant"`
	Picked      bool            `json:"picked"`
}

// LineTotal returns price * qty
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// Validate checks the fields a caller must supply for a line
func (i OrderItem) Validate() error {
	if i.ProductID == "" {
		return errors.New("product_id is required")
	}
	if i.Qty <= 0 {
		return fmt.Errorf("qty must be > 0 for product %s", i.ProductID)
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("price must be >= 0 for product %s", i.ProductID)
	}
	if i.Variant.Size == "" {
		return fmt.Errorf("selected_variant.size is required for product %s", i.ProductID)
	}
	return nil
}

// OrderItems implements the blob column holding the item list
type OrderItems []OrderItem

func (items OrderItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (items *OrderItems) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*items = OrderItems{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported items column type %T", src)
	}
	if len(raw) == 0 {
		*items = OrderItems{}
		return nil
	}
	return json.Unmarshal(raw, items)
}

// Total sums price * qty over every line
func (items OrderItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// AllPicked reports whether every line has been checked off
func (items OrderItems) AllPicked() bool {
	for _, it := range items {
		if !it.Picked {
			return false
		}
	}
	return len(items) > 0
}

// Order is the central record moving through sales and warehouse custody
type Order struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Status               OrderStatus     `gorm:"type:varchar(32);not null;index" json:"status"`
	Items                OrderItems      `gorm:"type:text;not null" json:"items"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_amount"`
	CreatorID            string          `gorm:"type:varchar(64);not null;index" json:"creator_id"`
	CreatorName          string          `gorm:"type:varchar(255)" json:"creator_name"`
	ManagerID            string          `gorm:"type:varchar(64);index" json:"manager_id"`
	AssignedTo           string          `gorm:"type:varchar(64);index" json:"assigned_to"`
	AssignedToName       string          `gorm:"type:varchar(255)" json:"assigned_to_name"`
	WarehouseManagerID   string          `gorm:"type:varchar(64);index" json:"warehouse_manager_id"`
	WarehouseManagerName string          `gorm:"type:varchar(255)" json:"warehouse_manager_name"`
	CustomerName         string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone        string          `gorm:"type:varchar(32)" json:"customer_phone"`
	CustomerAddress      string          `gorm:"type:text" json:"customer_address"`
	RevisionNote         string          `gorm:"type:text" json:"revision_note"`
	Version              int             `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `gorm:"index" json:"updated_at"`
}

// BeforeCreate assigns the id so the same code runs on postgres and sqlite
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// SetItems replaces the item list and recomputes the total
func (o *Order) SetItems(items OrderItems) {
	o.Items = items
	o.TotalAmount = items.Total()
}

// CustomerInfo groups the free-form customer fields
type CustomerInfo struct {
	Name    string `json:"customer_name"`
	Phone   string `json:"customer_phone"`
	Address string `json:"customer_address"`
}

// OrderFilter is the predicate a role-scoped view hands to the store.
// Empty fields do not filter.
type OrderFilter struct {
	All                bool     `json:"all"`
	CreatorIDs         []string `json:"creator_ids,omitempty"`
	WarehouseManagerID string   `json:"warehouse_manager_id,omitempty"`
	AssignedTo         string   `json:"assigned_to,omitempty"`
	// InWarehouse keeps orders that have a warehouse manager, whatever
	// their status
	InWarehouse bool          `json:"in_warehouse,omitempty"`
	Statuses    []OrderStatus `json:"statuses,omitempty"`
}

// Matches evaluates the filter against a single order in memory
func (f OrderFilter) Matches(o *Order) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
		return false
	}
	if f.All {
		return true
	}
	if len(f.CreatorIDs) > 0 && !containsString(f.CreatorIDs, o.CreatorID) {
		return false
	}
	if f.WarehouseManagerID != "" && o.WarehouseManagerID != f.WarehouseManagerID {
		return false
	}
	if f.AssignedTo != "" && o.AssignedTo != f.AssignedTo {
		return false
	}
	if f.InWarehouse && o.WarehouseManagerID == "" {
		return false
	}
	return f.IsScoped()
}

// IsScoped reports whether the filter restricts anything. An unscoped,
// non-All filter matches nothing.
func (f OrderFilter) IsScoped() bool {
	return f.All || len(f.CreatorIDs) > 0 || f.WarehouseManagerID != "" || f.AssignedTo != "" || f.InWarehouse || len(f.Statuses) > 0
}

func containsStatus(list []OrderStatus, v OrderStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
