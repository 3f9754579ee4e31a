package stock

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live redis only when REDIS_ADDR is set.
func newRedisLedger(t *testing.T) (*RedisLedger, *rd.Client) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := rd.NewClient(&rd.Options{Addr: addr, DB: 15})
	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	return NewRedisLedger(rdb), rdb
}

func TestRedisLedgerDecrementOncePerOrder(t *testing.T) {
	ledger, rdb := newRedisLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Sync(ctx, key("X"), 5))

	ref := uuid.New()
	lines := []Line{{Key: key("X"), Qty: 3}}

	mv, err := ledger.Decrement(ctx, ref, lines)
	require.NoError(t, err)
	assert.Equal(t, 2, mv[0].After)

	mv, err = ledger.Decrement(ctx, ref, lines)
	require.NoError(t, err)
	assert.Equal(t, 2, mv[0].After)

	require.NoError(t, ledger.Restore(ctx, ref, lines))
	require.NoError(t, ledger.Restore(ctx, ref, lines))
	n, err := rdb.Get(ctx, StockKey(key("X"))).Int()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestRedisLedgerShortageIsAllOrNothing(t *testing.T) {
	ledger, rdb := newRedisLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Sync(ctx, key("X"), 5))
	require.NoError(t, ledger.Sync(ctx, key("Y"), 1))

	_, err := ledger.Decrement(ctx, uuid.New(), []Line{{Key: key("X"), Qty: 3}, {Key: key("Y"), Qty: 2}})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	x, _ := rdb.Get(ctx, StockKey(key("X"))).Int()
	y, _ := rdb.Get(ctx, StockKey(key("Y"))).Int()
	assert.Equal(t, 5, x)
	assert.Equal(t, 1, y)
}

func TestRedisLedgerSeedLeavesExistingCounters(t *testing.T) {
	ledger, rdb := newRedisLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Sync(ctx, key("X"), 5))

	created, err := ledger.Seed(ctx, key("X"), 7)
	require.NoError(t, err)
	assert.False(t, created)
	created, err = ledger.Seed(ctx, key("Y"), 3)
	require.NoError(t, err)
	assert.True(t, created)

	x, _ := rdb.Get(ctx, StockKey(key("X"))).Int()
	y, _ := rdb.Get(ctx, StockKey(key("Y"))).Int()
	assert.Equal(t, 5, x)
	assert.Equal(t, 3, y)
}
