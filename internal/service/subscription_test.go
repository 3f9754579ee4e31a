package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"orderflow/internal/changefeed"
	"orderflow/internal/model"
	"orderflow/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type updates struct {
	mu    sync.Mutex
	lists [][]model.Order
}

func (u *updates) record(list []model.Order) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lists = append(u.lists, list)
}

func (u *updates) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.lists)
}

func (u *updates) last() []model.Order {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lists[len(u.lists)-1]
}

const testDebounce = 40 * time.Millisecond

func TestBridgeDeliversCurrentListImmediately(t *testing.T) {
	e := newEnv(t)
	e.create(t, "s1", testutil.Item("X", 1, 10))
	bridge := NewBridge(e.orderRepo, e.feed, testDebounce, zap.NewNop())

	got := &updates{}
	unsubscribe, err := bridge.Subscribe(context.Background(), model.OrderFilter{CreatorIDs: []string{"s1"}}, got.record)
	require.NoError(t, err)
	defer unsubscribe()

	require.Equal(t, 1, got.count())
	assert.Len(t, got.last(), 1)
}

func TestBridgeCoalescesBurst(t *testing.T) {
	e := newEnv(t)
	bridge := NewBridge(e.orderRepo, e.feed, testDebounce, zap.NewNop())

	got := &updates{}
	unsubscribe, err := bridge.Subscribe(context.Background(), model.OrderFilter{CreatorIDs: []string{"s1"}}, got.record)
	require.NoError(t, err)
	defer unsubscribe()
	require.Equal(t, 1, got.count())
	assert.Empty(t, got.last())

	// write silently, then announce all three at once
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		o := &model.Order{Status: model.OrderStatusConfirmed, CreatorID: "s1"}
		o.SetItems(model.OrderItems{testutil.Item("X", 1, 10)})
		require.NoError(t, e.orderRepo.Create(ctx, o))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, e.feed.Publish(ctx, changefeed.Event{OrderID: uuid.New(), At: time.Now()}))
	}

	require.Eventually(t, func() bool { return got.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 2, got.count())
	assert.Len(t, got.last(), 3)
}

func TestBridgeSkipsUnchangedLists(t *testing.T) {
	e := newEnv(t)
	mine := e.create(t, "s1", testutil.Item("X", 1, 10))
	bridge := NewBridge(e.orderRepo, e.feed, testDebounce, zap.NewNop())

	got := &updates{}
	unsubscribe, err := bridge.Subscribe(context.Background(), model.OrderFilter{CreatorIDs: []string{"s1"}}, got.record)
	require.NoError(t, err)
	defer unsubscribe()

	// a change outside the view triggers a refetch with the same result
	e.create(t, "s3", testutil.Item("X", 1, 10))
	time.Sleep(4 * testDebounce)
	assert.Equal(t, 1, got.count())

	_, err = e.orders.UpdateOrder(context.Background(), testutil.Actor("s1"), mine.ID, UpdateOrderRequest{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return got.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, got.last()[0].Version)
}

func TestBridgeUnsubscribeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	bridge := NewBridge(e.orderRepo, e.feed, testDebounce, zap.NewNop())

	got := &updates{}
	unsubscribe, err := bridge.Subscribe(context.Background(), model.OrderFilter{All: true}, got.record)
	require.NoError(t, err)
	assert.Equal(t, 1, e.feed.Subscribers())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, e.feed.Subscribers())

	e.create(t, "s1", testutil.Item("X", 1, 10))
	time.Sleep(4 * testDebounce)
	assert.Equal(t, 1, got.count())
}

type failingLister struct{}

func (failingLister) ListAll(context.Context, model.OrderFilter) ([]model.Order, error) {
	return nil, errors.New("connection refused")
}

func TestBridgeInitialFetchFailure(t *testing.T) {
	feed := changefeed.NewLocalFeed()
	bridge := NewBridge(failingLister{}, feed, testDebounce, zap.NewNop())

	_, err := bridge.Subscribe(context.Background(), model.OrderFilter{All: true}, func([]model.Order) {
		t.Fatal("unexpected delivery")
	})
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 0, feed.Subscribers())
}

func TestSignature(t *testing.T) {
	a := model.Order{ID: uuid.New(), Version: 1}
	b := model.Order{ID: uuid.New(), Version: 1}

	assert.Equal(t, signature([]model.Order{a, b}), signature([]model.Order{a, b}))
	assert.NotEqual(t, signature([]model.Order{a, b}), signature([]model.Order{b, a}))
	bumped := a
	bumped.Version = 2
	assert.NotEqual(t, signature([]model.Order{a}), signature([]model.Order{bumped}))
}
