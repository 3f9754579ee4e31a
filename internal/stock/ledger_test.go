package stock

import (
	"context"
	"errors"
	"testing"

	"orderflow/internal/model"
	"orderflow/internal/repository"
	"orderflow/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(productID string) model.VariantKey {
	return model.VariantKey{ProductID: productID, Size: "M"}
}

func TestAggregateMergesVariants(t *testing.T) {
	items := model.OrderItems{
		testutil.Item("B", 1, 10),
		testutil.Item("A", 2, 10),
		testutil.Item("B", 4, 10),
	}
	lines := Aggregate(items)
	require.Len(t, lines, 2)
	assert.Equal(t, Line{Key: key("A"), Qty: 2}, lines[0])
	assert.Equal(t, Line{Key: key("B"), Qty: 5}, lines[1])
}

func newSQLLedger(t *testing.T) (*SQLLedger, func(string) int) {
	db := testutil.SetupTestDB(t)
	testutil.SeedStock(t, db, map[string]int{"X": 5, "Y": 1})
	ledger := NewSQLLedger(repository.NewStockRepository(db), repository.NewTransactionManager(db))
	return ledger, func(p string) int { return testutil.StockOf(t, db, p) }
}

func TestSQLLedgerDecrement(t *testing.T) {
	ledger, stockOf := newSQLLedger(t)

	mv, err := ledger.Decrement(context.Background(), uuid.New(), []Line{{Key: key("X"), Qty: 3}, {Key: key("Y"), Qty: 1}})
	require.NoError(t, err)
	require.Len(t, mv, 2)
	assert.Equal(t, 2, mv[0].After)
	assert.Equal(t, 0, mv[1].After)
	assert.Equal(t, 2, stockOf("X"))
	assert.Equal(t, 0, stockOf("Y"))
}

func TestSQLLedgerShortageLeavesEverythingUnchanged(t *testing.T) {
	ledger, stockOf := newSQLLedger(t)

	_, err := ledger.Decrement(context.Background(), uuid.New(), []Line{{Key: key("X"), Qty: 3}, {Key: key("Y"), Qty: 2}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var serr *ShortageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "Y", serr.Key.ProductID)
	assert.Equal(t, 1, serr.Available)

	assert.Equal(t, 5, stockOf("X"))
	assert.Equal(t, 1, stockOf("Y"))
}

func TestSQLLedgerUnknownVariant(t *testing.T) {
	ledger, stockOf := newSQLLedger(t)

	_, err := ledger.Decrement(context.Background(), uuid.New(), []Line{{Key: key("X"), Qty: 1}, {Key: key("Z"), Qty: 1}})
	assert.ErrorIs(t, err, ErrUnknownVariant)
	assert.Equal(t, 5, stockOf("X"))
}

func TestSQLLedgerRestore(t *testing.T) {
	ledger, stockOf := newSQLLedger(t)

	require.NoError(t, ledger.Restore(context.Background(), uuid.New(), []Line{{Key: key("X"), Qty: 2}}))
	assert.Equal(t, 7, stockOf("X"))
}

func TestInterpretDecrement(t *testing.T) {
	lines := []Line{{Key: key("A"), Qty: 2}, {Key: key("B"), Qty: 3}}

	mv, err := interpretDecrement(context.Background(), nil, lines, []int64{1, 8, 0})
	require.NoError(t, err)
	assert.Equal(t, []Movement{{Key: key("A"), Qty: 2, After: 8}, {Key: key("B"), Qty: 3, After: 0}}, mv)

	_, err = interpretDecrement(context.Background(), nil, lines, []int64{0, 2, 1})
	var serr *ShortageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "B", serr.Key.ProductID)
	assert.Equal(t, 1, serr.Available)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = interpretDecrement(context.Background(), nil, lines, []int64{-1, 1})
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, err = interpretDecrement(context.Background(), nil, lines, []int64{0, 9})
	assert.Error(t, err)
	_, err = interpretDecrement(context.Background(), nil, lines, nil)
	assert.Error(t, err)
}

func TestDecrementArgs(t *testing.T) {
	ref := uuid.MustParse("7f1c7c56-1d0c-4a8e-9b7a-2d9f63a0c001")
	keys, args := decrementArgs(ref, []Line{{Key: model.VariantKey{ProductID: "A", Size: "M", Color: "red"}, Qty: 2}})
	assert.Equal(t, []string{
		"orderflow:stock:applied:7f1c7c56-1d0c-4a8e-9b7a-2d9f63a0c001",
		"orderflow:stock:A:M:red",
	}, keys)
	assert.Equal(t, []interface{}{int64(604800), 2}, args)
}

type mapSeeder map[model.VariantKey]int

func (m mapSeeder) Seed(_ context.Context, key model.VariantKey, quantity int) (bool, error) {
	if key.ProductID == "broken" {
		return false, errors.New("unreachable")
	}
	if _, ok := m[key]; ok {
		return false, nil
	}
	m[key] = quantity
	return true, nil
}

func TestPrime(t *testing.T) {
	s := mapSeeder{}
	levels := []model.StockLevel{
		{ProductID: "A", Size: "M", Quantity: 4},
		{ProductID: "B", Size: "L", Color: "red", Quantity: 0},
	}
	n, err := Prime(context.Background(), s, levels)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, s[key("A")])
	assert.Equal(t, 0, s[model.VariantKey{ProductID: "B", Size: "L", Color: "red"}])

	_, err = Prime(context.Background(), s, []model.StockLevel{{ProductID: "broken", Size: "M"}})
	assert.ErrorContains(t, err, "prime broken/M/")
}

func TestPrimeKeepsLiveCounters(t *testing.T) {
	s := mapSeeder{key("A"): 5}
	n, err := Prime(context.Background(), s, []model.StockLevel{
		{ProductID: "A", Size: "M", Quantity: 7},
		{ProductID: "C", Size: "M", Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5, s[key("A")])
	assert.Equal(t, 3, s[key("C")])
}
