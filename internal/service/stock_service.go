package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"orderflow/internal/model"
	"orderflow/internal/repository"
	"orderflow/internal/stock"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SetStockRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

type StockService interface {
	ListStock(ctx context.Context, actor model.Actor, productID string, page, limit int) ([]model.StockLevel, int64, error)
	SetStock(ctx context.Context, actor model.Actor, req SetStockRequest) (*model.StockLevel, error)
	ListTransactions(ctx context.Context, actor model.Actor, orderID *uuid.UUID, productID string, page, limit int) ([]model.InventoryTransaction, int64, error)
}

type stockService struct {
	stockRepo repository.StockRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	ledger    stock.Ledger
	notifier  *Notifier
	log       *zap.Logger
}

func NewStockService(
	stockRepo repository.StockRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	ledger stock.Ledger,
	notifier *Notifier,
	log *zap.Logger,
) StockService {
	return &stockService{
		stockRepo: stockRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		ledger:    ledger,
		notifier:  notifier,
		log:       log,
	}
}

func canManageStock(actor model.Actor) bool {
	return actor.IsTopLevel() || actor.Role == model.RoleWarehouseManager
}

func (s *stockService) ListStock(ctx context.Context, actor model.Actor, productID string, page, limit int) ([]model.StockLevel, int64, error) {
	if actor.UID == "" {
		return nil, 0, permissionf("unknown caller")
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	levels, total, err := s.stockRepo.List(ctx, productID, page, limit)
	if err != nil {
		return nil, 0, classify(err, "stock")
	}
	return levels, total, nil
}

// SetStock overwrites one variant's quantity and records the adjustment on
// the stock card.
func (s *stockService) SetStock(ctx context.Context, actor model.Actor, req SetStockRequest) (*model.StockLevel, error) {
	if !canManageStock(actor) {
		return nil, permissionf("role %s may not adjust stock", actor.Role)
	}
	key := model.VariantKey{
		ProductID: strings.TrimSpace(req.ProductID),
		Size:      strings.TrimSpace(req.Size),
		Color:     strings.TrimSpace(req.Color),
	}
	if key.ProductID == "" || key.Size == "" {
		return nil, validationf("product_id and size are required")
	}
	if req.Quantity < 0 {
		return nil, validationf("quantity must be >= 0")
	}

	var level *model.StockLevel
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		previous := 0
		current, err := s.stockRepo.Find(txCtx, key)
		switch {
		case err == nil:
			previous = current.Quantity
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if err := s.stockRepo.Set(txCtx, key, req.Quantity); err != nil {
			return err
		}
		if err := s.stockRepo.CreateTransaction(txCtx, &model.InventoryTransaction{
			ProductID:       key.ProductID,
			Size:            key.Size,
			Color:           key.Color,
			TransactionType: model.TxTypeSet,
			QuantityChanged: req.Quantity - previous,
			StockAfter:      req.Quantity,
			CreatedBy:       actor.UID,
		}); err != nil {
			return err
		}

		details, _ := json.Marshal(map[string]interface{}{"variant": key, "from": previous, "to": req.Quantity})
		if err := s.auditRepo.Log(txCtx, &model.AuditLog{
			ActorID:   actor.UID,
			ActorName: actor.Name,
			Action:    model.ActionSetStock,
			EntityID:  key.ProductID,
			Details:   string(details),
		}); err != nil {
			return err
		}

		level, err = s.stockRepo.Find(txCtx, key)
		return err
	})
	if err != nil {
		return nil, classify(err, "stock")
	}

	if syncer, ok := s.ledger.(stock.Syncer); ok {
		if err := syncer.Sync(ctx, key, req.Quantity); err != nil {
			s.log.Error("Failed to sync stock counter", zap.String("product_id", key.ProductID), zap.Error(err))
			return nil, classify(err, "stock")
		}
	}

	s.notifier.StockChanged([]StockChange{{ProductID: key.ProductID, Size: key.Size, Color: key.Color, Quantity: req.Quantity}})
	return level, nil
}

func (s *stockService) ListTransactions(ctx context.Context, actor model.Actor, orderID *uuid.UUID, productID string, page, limit int) ([]model.InventoryTransaction, int64, error) {
	if !canManageStock(actor) {
		return nil, 0, permissionf("role %s may not read the stock card", actor.Role)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	txs, total, err := s.stockRepo.ListTransactions(ctx, orderID, productID, page, limit)
	if err != nil {
		return nil, 0, classify(err, "stock")
	}
	return txs, total, nil
}
