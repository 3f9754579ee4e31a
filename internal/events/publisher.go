// Package events publishes order lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"orderflow/internal/model"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// OrderEvent is one committed transition
type OrderEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	Action  string            `json:"action"`
	From    model.OrderStatus `json:"from,omitempty"`
	To      model.OrderStatus `json:"to,omitempty"`
	ActorID string            `json:"actor_id"`
	Version int               `json:"version"`
	At      time.Time         `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
	Close() error
}

// messageWriter is satisfied by *kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order id so one order's events stay
// in one partition and keep their order.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderID.String()),
		Value: b,
	})
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Noop discards events when no broker is configured
type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) error { return nil }
func (Noop) Close() error                              { return nil }
