package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PubSubClient is the part of the redis client the feed uses
type PubSubClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *rd.IntCmd
	Subscribe(ctx context.Context, channels ...string) *rd.PubSub
}

// RedisFeed fans events out across instances over redis pub/sub
type RedisFeed struct {
	rdb     PubSubClient
	channel string
	log     *zap.Logger
}

func NewRedisFeed(rdb PubSubClient, channel string, log *zap.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, channel: channel, log: log}
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, b).Err()
}

// Subscribe returns once redis has confirmed the subscription, so events
// published afterwards are not missed.
func (f *RedisFeed) Subscribe(ctx context.Context) (Subscription, error) {
	ps := f.rdb.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	s := &redisSub{ps: ps, ch: make(chan Event, subscriberBuffer), done: make(chan struct{})}
	go s.pump(f.log)
	return s, nil
}

type redisSub struct {
	ps   *rd.PubSub
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *redisSub) C() <-chan Event { return s.ch }

func (s *redisSub) pump(log *zap.Logger) {
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn("Dropping malformed change event", zap.Error(err))
				continue
			}
			select {
			case s.ch <- ev:
			default:
			}
		}
	}
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
