// AngelaMos | 2026
// amqp.go

package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
)

// AMQPPublisher publishes events to a durable queue on the default
// exchange, reopening the channel when the broker drops it.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(cfg config.AMQPConfig, logger *slog.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		url:    cfg.URL,
		queue:  cfg.Queue,
		logger: logger.With("component", "notification_publisher"),
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close() //nolint:errcheck
		return fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()   //nolint:errcheck
		_ = conn.Close() //nolint:errcheck
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connect(); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
		p.logger.Info("reconnected to broker")
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}

// Ping reports whether the broker connection is open.
func (p *AMQPPublisher) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("broker connection closed")
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	var errs []error
	if p.ch != nil && !p.ch.IsClosed() {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	p.ch = nil
	p.conn = nil
	return errors.Join(errs...)
}

// Storer persists a delivered event.
type Storer interface {
	Store(ctx context.Context, ev Event) error
}

// Consumer drains the notification queue into the database.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	store    Storer
	logger   *slog.Logger
}

func NewConsumer(cfg config.AMQPConfig, store Storer, logger *slog.Logger) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 20
	}

	return &Consumer{
		url:      cfg.URL,
		queue:    cfg.Queue,
		prefetch: prefetch,
		store:    store,
		logger:   logger.With("component", "notification_consumer"),
	}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// delay whenever the broker connection is lost.
func (c *Consumer) Run(ctx context.Context) error {
	wait := time.Second

	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("dial broker failed", "error", err, "retry_in", wait)
		} else {
			wait = time.Second
			err = c.consume(ctx, conn)
			_ = conn.Close() //nolint:errcheck
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("consume loop ended, reconnecting", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		if wait < 30*time.Second {
			wait *= 2
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consuming notifications", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.settle(d, c.handle(ctx, d.Body, d.Redelivered))
		}
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDrop
)

func (c *Consumer) handle(ctx context.Context, body []byte, redelivered bool) outcome {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		c.logger.Error("malformed notification event", "error", err)
		return outcomeDrop
	}

	if ev.UserID == "" || !IsValidCategory(ev.Category) {
		c.logger.Error("invalid notification event",
			"event_id", ev.ID,
			"category", ev.Category,
		)
		return outcomeDrop
	}

	if err := c.store.Store(ctx, ev); err != nil {
		if errors.Is(err, core.ErrNotFound) || redelivered {
			c.logger.Error("dropping notification event",
				"event_id", ev.ID,
				"error", err,
			)
			return outcomeDrop
		}
		c.logger.Warn("store notification failed, requeueing",
			"event_id", ev.ID,
			"error", err,
		)
		return outcomeRequeue
	}

	return outcomeAck
}

func (c *Consumer) settle(d amqp.Delivery, o outcome) {
	var err error
	switch o {
	case outcomeAck:
		err = d.Ack(false)
	case outcomeRequeue:
		err = d.Nack(false, true)
	case outcomeDrop:
		err = d.Nack(false, false)
	}
	if err != nil {
		c.logger.Error("settle delivery", "error", err)
	}
}
