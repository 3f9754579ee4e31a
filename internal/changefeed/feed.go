// Package changefeed carries coarse "an order changed" notifications from
// writers to live subscribers. Events say which order changed, not how;
// subscribers refetch.
package changefeed

import (
	"context"
	"sync"
	"time"

	"orderflow/internal/model"

	"github.com/google/uuid"
)

// Event announces that an order was written
type Event struct {
	OrderID uuid.UUID         `json:"order_id"`
	Action  string            `json:"action"`
	Status  model.OrderStatus `json:"status,omitempty"`
	At      time.Time         `json:"at"`
}

// Subscription delivers events until closed. Close is idempotent.
type Subscription interface {
	C() <-chan Event
	Close() error
}

type Feed interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context) (Subscription, error)
}

const subscriberBuffer = 64

// LocalFeed is an in-process broker. A subscriber that falls behind loses
// events rather than blocking writers.
type LocalFeed struct {
	mu   sync.Mutex
	subs map[*localSub]struct{}
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[*localSub]struct{})}
}

func (f *LocalFeed) Publish(_ context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		select {
		case s.ch <- ev:
		default:
		}
	}
	return nil
}

func (f *LocalFeed) Subscribe(_ context.Context) (Subscription, error) {
	s := &localSub{feed: f, ch: make(chan Event, subscriberBuffer)}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	return s, nil
}

// Subscribers returns the number of open subscriptions
func (f *LocalFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type localSub struct {
	feed *LocalFeed
	ch   chan Event
	once sync.Once
}

func (s *localSub) C() <-chan Event { return s.ch }

func (s *localSub) Close() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		close(s.ch)
		s.feed.mu.Unlock()
	})
	return nil
}
