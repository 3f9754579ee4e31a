package stock

import (
	"context"
	"errors"

	"orderflow/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SQLLedger decrements the stock_levels table with conditional updates. Run
// inside the caller's transaction, a failed line rolls back every earlier one.
type SQLLedger struct {
	repo repository.StockRepository
	txm  repository.TransactionManager
}

func NewSQLLedger(repo repository.StockRepository, txm repository.TransactionManager) *SQLLedger {
	return &SQLLedger{repo: repo, txm: txm}
}

func (l *SQLLedger) Transactional() bool { return true }

func (l *SQLLedger) Decrement(ctx context.Context, _ uuid.UUID, lines []Line) ([]Movement, error) {
	var movements []Movement
	err := l.txm.RunInTx(ctx, func(txCtx context.Context) error {
		movements = make([]Movement, 0, len(lines))
		for _, line := range lines {
			ok, err := l.repo.DecrementIfAvailable(txCtx, line.Key, line.Qty)
			if err != nil {
				return err
			}
			if !ok {
				return l.shortage(txCtx, line)
			}
			level, err := l.repo.Find(txCtx, line.Key)
			if err != nil {
				return err
			}
			movements = append(movements, Movement{Key: line.Key, Qty: line.Qty, After: level.Quantity})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func (l *SQLLedger) shortage(ctx context.Context, line Line) error {
	level, err := l.repo.Find(ctx, line.Key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ShortageError{Key: line.Key, Requested: line.Qty, Unknown: true}
	}
	if err != nil {
		return err
	}
	return &ShortageError{Key: line.Key, Requested: line.Qty, Available: level.Quantity}
}

// Restore puts quantities back. Rolled-back transactions never need it; it
// serves manual reversals.
func (l *SQLLedger) Restore(ctx context.Context, _ uuid.UUID, lines []Line) error {
	return l.txm.RunInTx(ctx, func(txCtx context.Context) error {
		for _, line := range lines {
			if err := l.repo.Increment(txCtx, line.Key, line.Qty); err != nil {
				return err
			}
		}
		return nil
	})
}
