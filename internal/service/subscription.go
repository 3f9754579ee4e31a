package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"orderflow/internal/changefeed"
	"orderflow/internal/model"

	"go.uber.org/zap"
)

const DefaultDebounce = 300 * time.Millisecond

// OrderLister returns every order matching a filter, newest update first
type OrderLister interface {
	ListAll(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
}

// Unsubscribe stops a subscription. Safe to call more than once.
type Unsubscribe func()

// Bridge turns the coarse change feed into a debounced stream of full
// result lists for one filter.
type Bridge struct {
	orders   OrderLister
	feed     changefeed.Feed
	debounce time.Duration
	log      *zap.Logger
}

func NewBridge(orders OrderLister, feed changefeed.Feed, debounce time.Duration, log *zap.Logger) *Bridge {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Bridge{orders: orders, feed: feed, debounce: debounce, log: log}
}

// Subscribe delivers the current list before returning, then a fresh list
// after each burst of change events. A burst is the window of length
// debounce opening at its first event. Lists identical to the last one
// delivered are skipped. onUpdate runs on one goroutine at a time.
func (b *Bridge) Subscribe(ctx context.Context, filter model.OrderFilter, onUpdate func([]model.Order)) (Unsubscribe, error) {
	// subscribe first so no change between fetch and subscribe is lost
	sub, err := b.feed.Subscribe(ctx)
	if err != nil {
		return nil, classify(err, "change feed")
	}

	list, err := b.orders.ListAll(ctx, filter)
	if err != nil {
		_ = sub.Close()
		return nil, classify(err, "order")
	}
	onUpdate(list)

	runCtx, cancel := context.WithCancel(ctx)
	var (
		once   sync.Once
		closed atomic.Bool
	)
	unsubscribe := func() {
		once.Do(func() {
			closed.Store(true)
			cancel()
			if err := sub.Close(); err != nil {
				b.log.Debug("Change feed close failed", zap.Error(err))
			}
		})
	}

	go b.run(runCtx, sub, filter, signature(list), &closed, onUpdate)
	return unsubscribe, nil
}

func (b *Bridge) run(ctx context.Context, sub changefeed.Subscription, filter model.OrderFilter, last string, closed *atomic.Bool, onUpdate func([]model.Order)) {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	events := sub.C()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			if timerC == nil {
				timer = time.NewTimer(b.debounce)
				timerC = timer.C
			}
		case <-timerC:
			timerC = nil
			list, err := b.orders.ListAll(ctx, filter)
			if err != nil {
				if ctx.Err() == nil {
					b.log.Warn("Subscription refetch failed", zap.Error(err))
				}
				continue
			}
			sig := signature(list)
			if sig == last || closed.Load() {
				continue
			}
			last = sig
			onUpdate(list)
		}
	}
}

// signature identifies a list snapshot by ids and versions in order
func signature(list []model.Order) string {
	var sb strings.Builder
	for _, o := range list {
		sb.WriteString(o.ID.String())
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(o.Version))
		sb.WriteByte(';')
	}
	return sb.String()
}
