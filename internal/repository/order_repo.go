package repository

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrStaleWrite is returned when a versioned write finds the row at a
// different version than the caller read.
var ErrStaleWrite = errors.New("stale write: order changed since it was read")

// StatusCount is one row of the per-status summary
type StatusCount struct {
	Status model.OrderStatus `json:"status"`
	Count  int64             `json:"count"`
	Total  decimal.Decimal   `json:"total_amount"`
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// UpdateVersioned applies fields only if the row is still at version,
	// bumping the version and updated_at.
	UpdateVersioned(ctx context.Context, id uuid.UUID, version int, fields map[string]interface{}) error
	DeleteVersioned(ctx context.Context, id uuid.UUID, version int) error
	List(ctx context.Context, filter model.OrderFilter, page, limit int) ([]model.Order, int64, error)
	ListAll(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	CountByStatus(ctx context.Context, filter model.OrderFilter) ([]StatusCount, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) UpdateVersioned(ctx context.Context, id uuid.UUID, version int, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now().UTC()

	res := GetDB(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrStale(ctx, id)
	}
	return nil
}

func (r *orderRepository) DeleteVersioned(ctx context.Context, id uuid.UUID, version int) error {
	res := GetDB(ctx, r.db).Where("id = ? AND version = ?", id, version).Delete(&model.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrStale(ctx, id)
	}
	return nil
}

// missOrStale tells a vanished row from a concurrent write
func (r *orderRepository) missOrStale(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStaleWrite
}

func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter, page, limit int) ([]model.Order, int64, error) {
	orders := make([]model.Order, 0)
	var total int64

	db := applyOrderFilter(GetDB(ctx, r.db).Model(&model.Order{}), filter)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("updated_at DESC").Order("id").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) ListAll(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	orders := make([]model.Order, 0)
	db := applyOrderFilter(GetDB(ctx, r.db).Model(&model.Order{}), filter)
	if err := db.Order("updated_at DESC").Order("id").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) CountByStatus(ctx context.Context, filter model.OrderFilter) ([]StatusCount, error) {
	var rows []StatusCount
	db := applyOrderFilter(GetDB(ctx, r.db).Model(&model.Order{}), filter)
	if err := db.Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total").
		Group("status").
		Order("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// applyOrderFilter translates a view predicate into WHERE clauses. An
// unscoped filter without All yields no rows. Statuses narrow an All filter
// too.
func applyOrderFilter(db *gorm.DB, f model.OrderFilter) *gorm.DB {
	if f.All {
		if len(f.Statuses) > 0 {
			db = db.Where("status IN ?", f.Statuses)
		}
		return db
	}
	if !f.IsScoped() {
		return db.Where("1 = 0")
	}
	if len(f.CreatorIDs) > 0 {
		db = db.Where("creator_id IN ?", f.CreatorIDs)
	}
	if f.WarehouseManagerID != "" {
		db = db.Where("warehouse_manager_id = ?", f.WarehouseManagerID)
	}
	if f.AssignedTo != "" {
		db = db.Where("assigned_to = ?", f.AssignedTo)
	}
	if f.InWarehouse {
		db = db.Where("warehouse_manager_id <> ''")
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	return db
}
