package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"closed sentinel", amqp091.ErrClosed, true},
		{"wrapped closed sentinel", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"unexpected EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"other error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConnectionError(tt.err))
		})
	}
}

type fakeChannel struct {
	published []amqp091.Publishing
	keys      []string
	failNext  error
	closed    bool
	declared  []string
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp091.Table) error {
	f.declared = append(f.declared, "exchange:"+name+":"+kind)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp091.Table) (amqp091.Queue, error) {
	f.declared = append(f.declared, "queue:"+name)
	return amqp091.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp091.Table) error {
	f.declared = append(f.declared, "bind:"+name+":"+key+":"+exchange)
	return nil
}

func (f *fakeChannel) Qos(int, int, bool) error { return nil }

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp091.Table) (<-chan amqp091.Delivery, error) {
	return nil, errors.New("not supported")
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestClient(ch *fakeChannel) (*Client, *int) {
	dials := 0
	c := &Client{exchangeName: "foodgram", queueName: "events"}
	c.dial = func() (*amqp091.Connection, channel, error) {
		dials++
		return nil, ch, nil
	}
	return c, &dials
}

func TestClient_SetupDeclaresTopology(t *testing.T) {
	ch := &fakeChannel{}
	c, _ := newTestClient(ch)
	require.NoError(t, c.connect())

	assert.Equal(t, []string{
		"exchange:foodgram:direct",
		"queue:events",
		"bind:events:events:foodgram",
	}, ch.declared)
}

func TestClient_PublishRecipePublished(t *testing.T) {
	ch := &fakeChannel{}
	c, _ := newTestClient(ch)
	require.NoError(t, c.connect())

	require.NoError(t, c.PublishRecipePublished(context.Background(), 3, 9))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "events", ch.keys[0])
	assert.Equal(t, EventRecipePublished, msg.Type)
	assert.Equal(t, uint8(amqp091.Persistent), msg.DeliveryMode)

	e, err := EventFromJSON(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.RecipeID)
	assert.Equal(t, int64(9), e.AuthorID)
}

func TestClient_PublishReconnectsOnClosedChannel(t *testing.T) {
	ch := &fakeChannel{failNext: amqp091.ErrClosed}
	c, dials := newTestClient(ch)
	require.NoError(t, c.connect())

	require.NoError(t, c.PublishShoppingListExport(context.Background(), 5))
	assert.Equal(t, 2, *dials)
	assert.Len(t, ch.published, 1)
}

func TestClient_PublishRejectsInvalidEvent(t *testing.T) {
	ch := &fakeChannel{}
	c, _ := newTestClient(ch)
	require.NoError(t, c.connect())

	err := c.PublishShoppingListExport(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidEvent)
	assert.Empty(t, ch.published)
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}
func (a *fakeAck) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func TestHandleDelivery(t *testing.T) {
	good, _ := NewShoppingListExport(4).ToJSON()

	t.Run("ack on success", func(t *testing.T) {
		ack := &fakeAck{}
		var got Event
		handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: good}, func(_ context.Context, e Event) error {
			got = e
			return nil
		})
		assert.True(t, ack.acked)
		assert.Equal(t, int64(4), got.UserID)
	})

	t.Run("malformed is dropped", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte("{")}, func(context.Context, Event) error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})

	t.Run("handler failure requeues once", func(t *testing.T) {
		fail := func(context.Context, Event) error { return errors.New("boom") }

		ack := &fakeAck{}
		handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: good}, fail)
		assert.True(t, ack.requeued)

		ack = &fakeAck{}
		handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: good, Redelivered: true}, fail)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})
}

func TestClient_DrainStopsOnContext(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.drain(ctx, make(chan amqp091.Delivery), func(context.Context, Event) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
