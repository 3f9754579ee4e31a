// Package fulfillment runs order completion: the status change and the stock
// decrement commit together or not at all.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"

	"orderflow/internal/model"
	"orderflow/internal/policy"
	"orderflow/internal/repository"
	"orderflow/internal/stock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotProcessing = errors.New("order is not in processing")
	ErrNotAllPicked  = errors.New("not every item has been picked")
)

// Result describes a committed completion
type Result struct {
	Order     *model.Order
	From      model.OrderStatus
	Movements []stock.Movement
}

// Executor is the only caller of Ledger.Decrement
type Executor struct {
	txm    repository.TransactionManager
	orders repository.OrderRepository
	stocks repository.StockRepository
	audit  repository.AuditRepository
	ledger stock.Ledger
	log    *zap.Logger
}

func NewExecutor(
	txm repository.TransactionManager,
	orders repository.OrderRepository,
	stocks repository.StockRepository,
	audit repository.AuditRepository,
	ledger stock.Ledger,
	log *zap.Logger,
) *Executor {
	return &Executor{txm: txm, orders: orders, stocks: stocks, audit: audit, ledger: ledger, log: log}
}

// Complete moves the order from Processing to Completed and takes its items
// out of stock. The order must still be at expectedVersion.
func (e *Executor) Complete(ctx context.Context, actor model.Actor, orderID uuid.UUID, expectedVersion int) (*Result, error) {
	var (
		result     Result
		lines      []stock.Line
		compensate bool
	)

	err := e.txm.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := e.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Version != expectedVersion {
			return repository.ErrStaleWrite
		}
		if order.Status != model.OrderStatusProcessing {
			return ErrNotProcessing
		}
		if !order.Items.AllPicked() {
			return ErrNotAllPicked
		}

		if err := e.orders.UpdateVersioned(txCtx, orderID, order.Version, map[string]interface{}{
			"status": model.OrderStatusCompleted,
		}); err != nil {
			return err
		}

		lines = stock.Aggregate(order.Items)
		movements, err := e.ledger.Decrement(txCtx, orderID, lines)
		if err != nil {
			return err
		}
		compensate = !e.ledger.Transactional()

		for _, mv := range movements {
			if !e.ledger.Transactional() {
				// mirror the delta; concurrent completions may commit out of
				// counter order
				if err := e.stocks.Increment(txCtx, mv.Key, -mv.Qty); err != nil {
					return err
				}
			}
			ref := orderID
			if err := e.stocks.CreateTransaction(txCtx, &model.InventoryTransaction{
				ProductID:       mv.Key.ProductID,
				Size:            mv.Key.Size,
				Color:           mv.Key.Color,
				OrderID:         &ref,
				TransactionType: model.TxTypeOut,
				QuantityChanged: -mv.Qty,
				StockAfter:      mv.After,
				CreatedBy:       actor.UID,
			}); err != nil {
				return err
			}
		}

		details, _ := json.Marshal(map[string]interface{}{"lines": movements})
		if err := e.audit.Log(txCtx, &model.AuditLog{
			ActorID:    actor.UID,
			ActorName:  actor.Name,
			Action:     string(policy.ActionComplete),
			EntityID:   orderID.String(),
			FromStatus: string(order.Status),
			ToStatus:   string(model.OrderStatusCompleted),
			Details:    string(details),
		}); err != nil {
			return err
		}

		updated, err := e.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		result = Result{Order: updated, From: order.Status, Movements: movements}
		return nil
	})
	if err != nil {
		if compensate {
			e.restore(ctx, orderID, lines)
		}
		return nil, err
	}
	return &result, nil
}

func (e *Executor) restore(ctx context.Context, orderID uuid.UUID, lines []stock.Line) {
	if err := e.ledger.Restore(context.WithoutCancel(ctx), orderID, lines); err != nil {
		e.log.Error("Failed to restore stock after aborted completion",
			zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	e.log.Warn("Restored stock after aborted completion", zap.String("order_id", orderID.String()))
}
