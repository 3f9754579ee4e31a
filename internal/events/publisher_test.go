package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"orderflow/internal/model"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByOrder(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{w: w}
	ev := OrderEvent{
		OrderID: uuid.New(),
		Action:  "COMPLETE_ORDER",
		From:    model.OrderStatusProcessing,
		To:      model.OrderStatusCompleted,
		ActorID: "p1",
		Version: 3,
		At:      time.Now().UTC(),
	}

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, ev.OrderID.String(), string(w.msgs[0].Key))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "PROCESSING", got["from"])
	assert.Equal(t, "COMPLETED", got["to"])
	assert.Equal(t, "p1", got["actor_id"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), OrderEvent{}))
	assert.NoError(t, p.Close())
}
