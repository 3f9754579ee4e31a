package fulfillment

import (
	"context"
	"errors"
	"testing"

	"orderflow/internal/model"
	"orderflow/internal/repository"
	"orderflow/internal/stock"
	"orderflow/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	orders   repository.OrderRepository
	stocks   repository.StockRepository
	audit    repository.AuditRepository
	txm      repository.TransactionManager
	executor *Executor
}

func setup(t *testing.T) *fixture {
	db := testutil.SetupTestDB(t)
	testutil.SeedStock(t, db, map[string]int{"X": 10, "Y": 2})
	f := &fixture{
		db:     db,
		orders: repository.NewOrderRepository(db),
		stocks: repository.NewStockRepository(db),
		audit:  repository.NewAuditRepository(db),
		txm:    repository.NewTransactionManager(db),
	}
	f.executor = NewExecutor(f.txm, f.orders, f.stocks, f.audit, stock.NewSQLLedger(f.stocks, f.txm), zap.NewNop())
	return f
}

func (f *fixture) processingOrder(t *testing.T, picked bool, items ...model.OrderItem) *model.Order {
	for i := range items {
		items[i].Picked = picked
	}
	o := &model.Order{Status: model.OrderStatusProcessing, CreatorID: "s1", AssignedTo: "p1", WarehouseManagerID: "w1"}
	o.SetItems(items)
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func TestCompleteDecrementsStockAndRecords(t *testing.T) {
	f := setup(t)
	o := f.processingOrder(t, true, testutil.Item("X", 3, 1000), testutil.Item("Y", 2, 50))

	res, err := f.executor.Complete(context.Background(), testutil.Actor("p1"), o.ID, o.Version)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, res.Order.Status)
	assert.Equal(t, model.OrderStatusProcessing, res.From)
	assert.Equal(t, o.Version+1, res.Order.Version)
	assert.Len(t, res.Movements, 2)

	assert.Equal(t, 7, testutil.StockOf(t, f.db, "X"))
	assert.Equal(t, 0, testutil.StockOf(t, f.db, "Y"))

	txs, total, err := f.stocks.ListTransactions(context.Background(), &o.ID, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, tx := range txs {
		assert.Equal(t, model.TxTypeOut, tx.TransactionType)
		assert.Equal(t, "p1", tx.CreatedBy)
	}

	logs, _, err := f.audit.List(context.Background(), repository.AuditFilter{EntityID: o.ID.String()}, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "COMPLETE_ORDER", logs[0].Action)
}

func TestCompleteTwiceDecrementsOnce(t *testing.T) {
	f := setup(t)
	o := f.processingOrder(t, true, testutil.Item("X", 3, 1000))

	_, err := f.executor.Complete(context.Background(), testutil.Actor("p1"), o.ID, o.Version)
	require.NoError(t, err)

	_, err = f.executor.Complete(context.Background(), testutil.Actor("p1"), o.ID, o.Version)
	assert.ErrorIs(t, err, repository.ErrStaleWrite)

	current, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	_, err = f.executor.Complete(context.Background(), testutil.Actor("p1"), o.ID, current.Version)
	assert.ErrorIs(t, err, ErrNotProcessing)

	assert.Equal(t, 7, testutil.StockOf(t, f.db, "X"))
}

func TestCompleteRequiresEveryItemPicked(t *testing.T) {
	f := setup(t)
	items := []model.OrderItem{testutil.Item("X", 1, 10), testutil.Item("Y", 1, 10)}
	items[0].Picked = true
	o := &model.Order{Status: model.OrderStatusProcessing, CreatorID: "s1"}
	o.SetItems(items)
	require.NoError(t, f.orders.Create(context.Background(), o))

	_, err := f.executor.Complete(context.Background(), testutil.Actor("p1"), o.ID, o.Version)
	assert.ErrorIs(t, err, ErrNotAllPicked)
	assert.Equal(t, 10, testutil.StockOf(t, f.db, "X"))
}

func TestCompleteShortageRollsBackEverything(t *testing.T) {
	f := setup(t)
	o := f.processingOrder(t, true, testutil.Item("X", 3, 1000), testutil.Item("Y", 5, 50))

	_, err := f.executor.Complete(context.Background(), testutil.Actor("p1"), o.ID, o.Version)
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)

	assert.Equal(t, 10, testutil.StockOf(t, f.db, "X"))
	assert.Equal(t, 2, testutil.StockOf(t, f.db, "Y"))

	current, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, current.Status)
	assert.Equal(t, o.Version, current.Version)

	_, total, err := f.stocks.ListTransactions(context.Background(), &o.ID, "", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

type externalLedger struct {
	decremented int
	restored    int
}

func (l *externalLedger) Transactional() bool { return false }

func (l *externalLedger) Decrement(_ context.Context, _ uuid.UUID, lines []stock.Line) ([]stock.Movement, error) {
	l.decremented++
	out := make([]stock.Movement, len(lines))
	for i, line := range lines {
		out[i] = stock.Movement{Key: line.Key, Qty: line.Qty, After: 100 - line.Qty}
	}
	return out, nil
}

func (l *externalLedger) Restore(context.Context, uuid.UUID, []stock.Line) error {
	l.restored++
	return nil
}

type failingAudit struct{ repository.AuditRepository }

func (failingAudit) Log(context.Context, *model.AuditLog) error { return errors.New("audit down") }

func TestCompleteRestoresExternalLedgerWhenCommitFails(t *testing.T) {
	f := setup(t)
	ledger := &externalLedger{}
	executor := NewExecutor(f.txm, f.orders, f.stocks, failingAudit{}, ledger, zap.NewNop())
	o := f.processingOrder(t, true, testutil.Item("X", 3, 1000))

	_, err := executor.Complete(context.Background(), testutil.Actor("p1"), o.ID, o.Version)
	assert.EqualError(t, err, "audit down")
	assert.Equal(t, 1, ledger.decremented)
	assert.Equal(t, 1, ledger.restored)

	current, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, current.Status)
}

func TestCompleteMirrorsExternalLedger(t *testing.T) {
	f := setup(t)
	ledger := &externalLedger{}
	executor := NewExecutor(f.txm, f.orders, f.stocks, f.audit, ledger, zap.NewNop())
	o := f.processingOrder(t, true, testutil.Item("X", 3, 1000))

	_, err := executor.Complete(context.Background(), testutil.Actor("p1"), o.ID, o.Version)
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.restored)
	// the ledger reports 97 left; the table applies the delta to its own 10
	assert.Equal(t, 7, testutil.StockOf(t, f.db, "X"))
}
