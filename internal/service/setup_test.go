package service

import (
	"context"
	"sync"
	"testing"

	"orderflow/internal/changefeed"
	"orderflow/internal/events"
	"orderflow/internal/fulfillment"
	"orderflow/internal/model"
	"orderflow/internal/repository"
	"orderflow/internal/stock"
	"orderflow/internal/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Action)
	}
	return out
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
	payloads []interface{}
}

func (b *recordingBroadcaster) Broadcast(event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, event)
	b.payloads = append(b.payloads, data)
}

type env struct {
	db          *gorm.DB
	orders      OrderService
	assignments AssignmentService
	stocks      StockService
	audit       AuditService
	views       ViewService
	orderRepo   repository.OrderRepository
	feed        *changefeed.LocalFeed
	publisher   *recordingPublisher
	broadcaster *recordingBroadcaster
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.SeedStaff(t, db)
	testutil.SeedStock(t, db, map[string]int{"X": 10, "Y": 2})

	log := zap.NewNop()
	orderRepo := repository.NewOrderRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	stockRepo := repository.NewStockRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	txm := repository.NewTransactionManager(db)

	feed := changefeed.NewLocalFeed()
	publisher := &recordingPublisher{}
	broadcaster := &recordingBroadcaster{}
	notifier := NewNotifier(feed, publisher, broadcaster, log)

	ledger := stock.NewSQLLedger(stockRepo, txm)
	executor := fulfillment.NewExecutor(txm, orderRepo, stockRepo, auditRepo, ledger, log)
	views := NewViewService(staffRepo)
	wf := NewWorkflow(orderRepo, auditRepo, txm, views, notifier, log)

	return &env{
		db:          db,
		orders:      NewOrderService(wf, executor),
		assignments: NewAssignmentService(wf, staffRepo),
		stocks:      NewStockService(stockRepo, auditRepo, txm, ledger, notifier, log),
		audit:       NewAuditService(auditRepo),
		views:       views,
		orderRepo:   orderRepo,
		feed:        feed,
		publisher:   publisher,
		broadcaster: broadcaster,
	}
}

func (e *env) create(t *testing.T, creator string, items ...model.OrderItem) *model.Order {
	t.Helper()
	o, err := e.orders.CreateOrder(context.Background(), testutil.Actor(creator), CreateOrderRequest{
		Items:    items,
		Customer: model.CustomerInfo{Name: "Customer", Phone: "0900000000"},
	})
	require.NoError(t, err)
	return o
}

// processing walks an order created by s1 through warehouse w1 and picker p1
func (e *env) processing(t *testing.T, items ...model.OrderItem) *model.Order {
	t.Helper()
	ctx := context.Background()
	o := e.create(t, "s1", items...)

	_, err := e.assignments.AssignToWarehouseManager(ctx, testutil.Actor("m1"), o.ID, AssignRequest{AssigneeID: "w1"})
	require.NoError(t, err)
	_, err = e.assignments.AssignToPicker(ctx, testutil.Actor("w1"), o.ID, AssignRequest{AssigneeID: "p1"})
	require.NoError(t, err)
	o, err = e.orders.StartPicking(ctx, testutil.Actor("p1"), o.ID, 0)
	require.NoError(t, err)
	return o
}

func (e *env) pickAll(t *testing.T, o *model.Order) *model.Order {
	t.Helper()
	var err error
	for i := range o.Items {
		o, err = e.orders.MarkItemPicked(context.Background(), testutil.Actor("p1"), o.ID, i, true, 0)
		require.NoError(t, err)
	}
	return o
}
