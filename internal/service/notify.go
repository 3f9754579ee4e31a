package service

import (
	"context"
	"time"

	"orderflow/internal/changefeed"
	"orderflow/internal/events"
	"orderflow/internal/model"
	"orderflow/internal/policy"

	"go.uber.org/zap"
)

// Broadcaster pushes a named event to every live client
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

const (
	EventStockUpdated = "stock_updated"
	publishTimeout    = 5 * time.Second
)

// StockChange is the payload of a stock_updated broadcast
type StockChange struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Notifier fans committed changes out to the change feed, the event bus and
// websocket clients. Failures are logged; the write has already committed.
type Notifier struct {
	feed        changefeed.Feed
	publisher   events.Publisher
	broadcaster Broadcaster
	log         *zap.Logger
}

func NewNotifier(feed changefeed.Feed, publisher events.Publisher, broadcaster Broadcaster, log *zap.Logger) *Notifier {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Notifier{feed: feed, publisher: publisher, broadcaster: broadcaster, log: log}
}

func (n *Notifier) OrderChanged(ctx context.Context, actor model.Actor, action policy.Action, from model.OrderStatus, order *model.Order) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	now := time.Now().UTC()
	if n.feed != nil {
		if err := n.feed.Publish(ctx, changefeed.Event{OrderID: order.ID, Action: string(action), Status: order.Status, At: now}); err != nil {
			n.log.Warn("Failed to publish change notification", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}
	if err := n.publisher.Publish(ctx, events.OrderEvent{
		OrderID: order.ID,
		Action:  string(action),
		From:    from,
		To:      order.Status,
		ActorID: actor.UID,
		Version: order.Version,
		At:      now,
	}); err != nil {
		n.log.Warn("Failed to publish order event", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

func (n *Notifier) StockChanged(changes []StockChange) {
	if n == nil || n.broadcaster == nil || len(changes) == 0 {
		return
	}
	n.broadcaster.Broadcast(EventStockUpdated, changes)
}
