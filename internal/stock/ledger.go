// Package stock holds the per-variant quantity ledger decremented when an
// order completes.
package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"orderflow/internal/model"

	"github.com/google/uuid"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownVariant    = errors.New("unknown stock variant")
)

// Line is a quantity to take from one variant
type Line struct {
	Key model.VariantKey
	Qty int
}

// Movement is an applied change with the resulting quantity
type Movement struct {
	Key   model.VariantKey
	Qty   int
	After int
}

// ShortageError names the variant that blocked a decrement
type ShortageError struct {
	Key       model.VariantKey
	Requested int
	Available int
	Unknown   bool
}

func (e *ShortageError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("no stock record for %s/%s/%s", e.Key.ProductID, e.Key.Size, e.Key.Color)
	}
	return fmt.Sprintf("insufficient stock for %s/%s/%s: requested %d, available %d",
		e.Key.ProductID, e.Key.Size, e.Key.Color, e.Requested, e.Available)
}

func (e *ShortageError) Unwrap() error {
	if e.Unknown {
		return ErrUnknownVariant
	}
	return ErrInsufficientStock
}

// Ledger applies all-or-nothing multi-variant decrements. ref identifies the
// order the decrement belongs to.
type Ledger interface {
	Decrement(ctx context.Context, ref uuid.UUID, lines []Line) ([]Movement, error)
	// Restore undoes a decrement of ref. It is a no-op when nothing is
	// outstanding for ref.
	Restore(ctx context.Context, ref uuid.UUID, lines []Line) error
	// Transactional reports whether Decrement joins the caller's database
	// transaction, in which case rollback needs no Restore.
	Transactional() bool
}

// Syncer is implemented by ledgers that keep their own copy of quantities
// and must be told about manual adjustments.
type Syncer interface {
	Sync(ctx context.Context, key model.VariantKey, quantity int) error
}

// Seeder is implemented by ledgers whose counters can be initialised from
// the table without clobbering live values.
type Seeder interface {
	// Seed sets the counter only if it does not exist yet. It reports
	// whether the counter was created.
	Seed(ctx context.Context, key model.VariantKey, quantity int) (bool, error)
}

// Prime seeds missing counters from table quantities. Counters that already
// exist are left alone, so a restart keeps live values.
func Prime(ctx context.Context, s Seeder, levels []model.StockLevel) (int, error) {
	seeded := 0
	for _, l := range levels {
		key := model.VariantKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
		created, err := s.Seed(ctx, key, l.Quantity)
		if err != nil {
			return seeded, fmt.Errorf("prime %s/%s/%s: %w", key.ProductID, key.Size, key.Color, err)
		}
		if created {
			seeded++
		}
	}
	return seeded, nil
}

// Aggregate merges order items into one line per variant, sorted by key so
// concurrent decrements touch rows in the same order.
func Aggregate(items model.OrderItems) []Line {
	totals := make(map[model.VariantKey]int)
	for _, it := range items {
		key := model.VariantKey{ProductID: it.ProductID, Size: it.Variant.Size, Color: it.Variant.Color}
		totals[key] += it.Qty
	}

	lines := make([]Line, 0, len(totals))
	for k, q := range totals {
		lines = append(lines, Line{Key: k, Qty: q})
	}
	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i].Key, lines[j].Key
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.Color < b.Color
	})
	return lines
}
