package stock

import (
	"context"
	"fmt"
	"time"

	"orderflow/internal/model"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaDecrementAll checks every counter before touching any of them, then
// decrements all and marks the order as applied.
// KEYS[1]=applied marker, KEYS[2..]=stock keys; ARGV[1]=marker ttl, ARGV[2..]=quantities.
// Returns {1, after...} on success, {2} if already applied, {0, i} when key i
// is short and {-1, i} when key i does not exist.
var luaDecrementAll = rd.NewScript(`
local ttl = tonumber(ARGV[1])
if redis.call('EXISTS', KEYS[1]) == 1 then
  return {2}
end
for i = 2, #KEYS do
  local raw = redis.call('GET', KEYS[i])
  if not raw then
    return {-1, i - 1}
  end
  if tonumber(raw) < tonumber(ARGV[i]) then
    return {0, i - 1, tonumber(raw)}
  end
end
local out = {1}
for i = 2, #KEYS do
  out[i] = redis.call('DECRBY', KEYS[i], ARGV[i])
end
redis.call('SET', KEYS[1], '1', 'EX', ttl)
return out
`)

// luaRestoreOnce gives quantities back only if the applied marker is still
// present; deleting it makes a second restore a no-op.
var luaRestoreOnce = rd.NewScript(`
if redis.call('DEL', KEYS[1]) == 1 then
  for i = 2, #KEYS do
    redis.call('INCRBY', KEYS[i], ARGV[i - 1])
  end
  return 1
end
return 0
`)

const appliedTTL = 7 * 24 * time.Hour

// RedisLedger keeps counters in redis. Decrement is idempotent per order.
type RedisLedger struct {
	rdb rd.Scripter
}

func NewRedisLedger(rdb rd.Scripter) *RedisLedger {
	return &RedisLedger{rdb: rdb}
}

func (l *RedisLedger) Transactional() bool { return false }

func (l *RedisLedger) Decrement(ctx context.Context, ref uuid.UUID, lines []Line) ([]Movement, error) {
	keys, args := decrementArgs(ref, lines)
	res, err := luaDecrementAll.Run(ctx, l.rdb, keys, args...).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis stock decrement: %w", err)
	}
	return interpretDecrement(ctx, l.rdb, lines, res)
}

func (l *RedisLedger) Restore(ctx context.Context, ref uuid.UUID, lines []Line) error {
	keys := make([]string, 0, len(lines)+1)
	args := make([]interface{}, 0, len(lines))
	keys = append(keys, AppliedKey(ref))
	for _, line := range lines {
		keys = append(keys, StockKey(line.Key))
		args = append(args, line.Qty)
	}
	if err := luaRestoreOnce.Run(ctx, l.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis stock restore: %w", err)
	}
	return nil
}

// Sync overwrites a counter after a manual adjustment
func (l *RedisLedger) Sync(ctx context.Context, key model.VariantKey, quantity int) error {
	return l.rdb.Eval(ctx, "return redis.call('SET', KEYS[1], ARGV[1])", []string{StockKey(key)}, quantity).Err()
}

// Seed creates a counter only when it is missing
func (l *RedisLedger) Seed(ctx context.Context, key model.VariantKey, quantity int) (bool, error) {
	n, err := l.rdb.Eval(ctx, "if redis.call('SET', KEYS[1], ARGV[1], 'NX') then return 1 end return 0",
		[]string{StockKey(key)}, quantity).Int()
	if err != nil {
		return false, fmt.Errorf("redis stock seed: %w", err)
	}
	return n == 1, nil
}

func decrementArgs(ref uuid.UUID, lines []Line) ([]string, []interface{}) {
	keys := make([]string, 0, len(lines)+1)
	args := make([]interface{}, 0, len(lines)+1)
	keys = append(keys, AppliedKey(ref))
	args = append(args, int64(appliedTTL/time.Second))
	for _, line := range lines {
		keys = append(keys, StockKey(line.Key))
		args = append(args, line.Qty)
	}
	return keys, args
}

func interpretDecrement(ctx context.Context, rdb rd.Scripter, lines []Line, res []int64) ([]Movement, error) {
	if len(res) == 0 {
		return nil, fmt.Errorf("redis stock decrement: empty reply")
	}
	switch res[0] {
	case 1:
		if len(res) != len(lines)+1 {
			return nil, fmt.Errorf("redis stock decrement: unexpected reply length %d", len(res))
		}
		movements := make([]Movement, len(lines))
		for i, line := range lines {
			movements[i] = Movement{Key: line.Key, Qty: line.Qty, After: int(res[i+1])}
		}
		return movements, nil
	case 2:
		// already applied for this order; report current quantities
		movements := make([]Movement, len(lines))
		for i, line := range lines {
			after, err := rdb.Eval(ctx, "return tonumber(redis.call('GET', KEYS[1]) or '0')", []string{StockKey(line.Key)}).Int()
			if err != nil {
				return nil, fmt.Errorf("redis stock read: %w", err)
			}
			movements[i] = Movement{Key: line.Key, Qty: line.Qty, After: after}
		}
		return movements, nil
	case 0, -1:
		if len(res) < 2 || res[1] < 1 || int(res[1]) > len(lines) {
			return nil, fmt.Errorf("redis stock decrement: malformed shortage reply")
		}
		line := lines[res[1]-1]
		serr := &ShortageError{Key: line.Key, Requested: line.Qty, Unknown: res[0] == -1}
		if len(res) > 2 {
			serr.Available = int(res[2])
		}
		return nil, serr
	}
	return nil, fmt.Errorf("redis stock decrement: unknown status %d", res[0])
}
