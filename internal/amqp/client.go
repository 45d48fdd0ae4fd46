// Package amqp publishes and consumes foodgram events over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"foodgram/internal/metrics"
)

// channel is the subset of *amqp091.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Handler processes one event. Returning an error requeues the message.
type Handler func(ctx context.Context, e Event) error

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel channel
	dial    func() (*amqp091.Connection, channel, error)
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{url: url, exchangeName: exchangeName, queueName: queueName}
	c.dial = c.dialBroker
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) dialBroker() (*amqp091.Connection, channel, error) {
	conn, err := amqp091.DialConfig(c.url, amqp091.Config{Heartbeat: 10 * time.Second, Locale: "en_US"})
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

func (c *Client) connect() error {
	conn, ch, err := c.dial()
	if err != nil {
		return err
	}
	if err := setup(ch, c.exchangeName, c.queueName); err != nil {
		ch.Close()
		if conn != nil {
			conn.Close()
		}
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.conn, c.channel = conn, ch
	return nil
}

func setup(ch channel, exchangeName, queueName string) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// routing key is the queue name
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// reconnect replaces a dead connection, backing off between attempts.
func (c *Client) reconnect(ctx context.Context, maxAttempts int) error {
	c.closeLocked()
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = c.connect(); err == nil {
			slog.InfoContext(ctx, "Reconnected to AMQP", "attempt", attempt+1)
			return nil
		}
		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP reconnect failed", "attempt", attempt+1, "retry_in", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("reconnect after %d attempts: %w", maxAttempts, err)
}

// exponentialBackoff doubles from one second and caps at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "use of closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Publish sends an event, reconnecting once if the connection dropped.
func (c *Client) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.publishLocked(ctx, e.Type, body)
	if isConnectionError(err) {
		if rerr := c.reconnect(ctx, 3); rerr != nil {
			metrics.EventsPublished.WithLabelValues(e.Type, "error").Inc()
			return fmt.Errorf("publish message: %w", rerr)
		}
		err = c.publishLocked(ctx, e.Type, body)
	}
	if err != nil {
		metrics.EventsPublished.WithLabelValues(e.Type, "error").Inc()
		return fmt.Errorf("publish message: %w", err)
	}

	metrics.EventsPublished.WithLabelValues(e.Type, "ok").Inc()
	slog.InfoContext(ctx, "Published event", "type", e.Type, "exchange", c.exchangeName, "queue", c.queueName)
	return nil
}

func (c *Client) publishLocked(ctx context.Context, eventType string, body []byte) error {
	if c.channel == nil {
		return amqp091.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Type:         eventType,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (c *Client) PublishRecipePublished(ctx context.Context, recipeID, authorID int64) error {
	return c.Publish(ctx, NewRecipePublished(recipeID, authorID))
}

func (c *Client) PublishShoppingListExport(ctx context.Context, userID int64) error {
	return c.Publish(ctx, NewShoppingListExport(userID))
}

// Consume delivers events to handler until ctx is done. A closed delivery
// channel triggers a reconnect.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	for {
		msgs, err := c.startConsuming()
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Started consuming events", "queue", c.queueName)

		if err := c.drain(ctx, msgs, handler); err != nil {
			return err
		}

		slog.WarnContext(ctx, "Delivery channel closed, reconnecting", "queue", c.queueName)
		c.mu.Lock()
		err = c.reconnect(ctx, 10)
		c.mu.Unlock()
		if err != nil {
			return err
		}
	}
}

func (c *Client) startConsuming() (<-chan amqp091.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return nil, amqp091.ErrClosed
	}
	if err := c.channel.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	msgs, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("start consuming: %w", err)
	}
	return msgs, nil
}

// drain returns nil when msgs closes and ctx.Err() when ctx is done.
func (c *Client) drain(ctx context.Context, msgs <-chan amqp091.Delivery, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			handleDelivery(ctx, d, handler)
		}
	}
}

// handleDelivery acks on success, drops malformed messages and requeues
// messages whose handler failed.
func handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	e, err := EventFromJSON(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed event", "error", err)
		metrics.EventsConsumed.WithLabelValues("unknown", "malformed").Inc()
		d.Nack(false, false)
		return
	}

	if err := handler(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to handle event", "type", e.Type, "error", err)
		metrics.EventsConsumed.WithLabelValues(e.Type, "error").Inc()
		// a redelivered message that fails again is dropped
		d.Nack(false, !d.Redelivered)
		return
	}

	d.Ack(false)
	metrics.EventsConsumed.WithLabelValues(e.Type, "ok").Inc()
	slog.DebugContext(ctx, "Handled event", "type", e.Type)
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
