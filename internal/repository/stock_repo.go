package repository

import (
	"context"
	"time"

	"orderflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRepository interface {
	Find(ctx context.Context, key model.VariantKey) (*model.StockLevel, error)
	List(ctx context.Context, productID string, page, limit int) ([]model.StockLevel, int64, error)
	// Set upserts the quantity of a variant
	Set(ctx context.Context, key model.VariantKey, quantity int) error
	// DecrementIfAvailable subtracts qty only if the variant holds at least
	// qty. It reports whether the row was changed.
	DecrementIfAvailable(ctx context.Context, key model.VariantKey, qty int) (bool, error)
	Increment(ctx context.Context, key model.VariantKey, qty int) error
	CreateTransaction(ctx context.Context, tx *model.InventoryTransaction) error
	ListTransactions(ctx context.Context, orderID *uuid.UUID, productID string, page, limit int) ([]model.InventoryTransaction, int64, error)
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

func variantWhere(db *gorm.DB, key model.VariantKey) *gorm.DB {
	return db.Where("product_id = ? AND size = ? AND color = ?", key.ProductID, key.Size, key.Color)
}

func (r *stockRepository) Find(ctx context.Context, key model.VariantKey) (*model.StockLevel, error) {
	var level model.StockLevel
	if err := variantWhere(GetDB(ctx, r.db), key).First(&level).Error; err != nil {
		return nil, err
	}
	return &level, nil
}

func (r *stockRepository) List(ctx context.Context, productID string, page, limit int) ([]model.StockLevel, int64, error) {
	var levels []model.StockLevel
	var total int64

	db := GetDB(ctx, r.db).Model(&model.StockLevel{})
	if productID != "" {
		db = db.Where("product_id = ?", productID)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("product_id, size, color").Offset(offset).Limit(limit).Find(&levels).Error; err != nil {
		return nil, 0, err
	}

	return levels, total, nil
}

func (r *stockRepository) Set(ctx context.Context, key model.VariantKey, quantity int) error {
	level := model.StockLevel{
		ProductID: key.ProductID,
		Size:      key.Size,
		Color:     key.Color,
		Quantity:  quantity,
		UpdatedAt: time.Now().UTC(),
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "size"}, {Name: "color"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&level).Error
}

func (r *stockRepository) DecrementIfAvailable(ctx context.Context, key model.VariantKey, qty int) (bool, error) {
	res := variantWhere(GetDB(ctx, r.db).Model(&model.StockLevel{}), key).
		Where("quantity >= ?", qty).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *stockRepository) Increment(ctx context.Context, key model.VariantKey, qty int) error {
	return variantWhere(GetDB(ctx, r.db).Model(&model.StockLevel{}), key).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *stockRepository) CreateTransaction(ctx context.Context, tx *model.InventoryTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *stockRepository) ListTransactions(ctx context.Context, orderID *uuid.UUID, productID string, page, limit int) ([]model.InventoryTransaction, int64, error) {
	var txs []model.InventoryTransaction
	var total int64

	db := GetDB(ctx, r.db).Model(&model.InventoryTransaction{})
	if orderID != nil {
		db = db.Where("order_id = ?", *orderID)
	}
	if productID != "" {
		db = db.Where("product_id = ?", productID)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&txs).Error; err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}
