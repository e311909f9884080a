// Package amqp fans mutation events out to a topic exchange. Publishing
// is best effort: the backend already accepted the change, so a broker
// outage is logged and never reported to the operator.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"astrofin/internal/api"
	"astrofin/internal/clock"
	applog "astrofin/internal/log"
)

const (
	exchangeKind   = "topic"
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// ErrBackingOff is returned while the publisher waits before redialing.
var ErrBackingOff = errors.New("amqp: waiting before reconnect")

// channel is the subset of *amqp091.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, io.Closer, error)

func dialBroker(url string) (channel, io.Closer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn, nil
}

// Publisher implements api.MutationObserver. The connection is opened
// lazily on the first event and reopened after connection errors, with
// exponential backoff between attempts.
type Publisher struct {
	url      string
	exchange string
	prefix   string
	logger   *applog.Logger
	clock    clock.Clock
	dial     dialFunc

	mu          sync.Mutex
	ch          channel
	conn        io.Closer
	failures    int
	nextAttempt time.Time
}

type Option func(*Publisher)

func WithLogger(l *applog.Logger) Option {
	return func(p *Publisher) { p.logger = l.WithComponent(applog.ComponentAMQP) }
}

func WithClock(clk clock.Clock) Option {
	return func(p *Publisher) { p.clock = clk }
}

// NewPublisher returns a publisher for the given broker and exchange.
// No connection is made until the first event.
func NewPublisher(url, exchange, routingPrefix string, opts ...Option) *Publisher {
	p := &Publisher{
		url:      url,
		exchange: exchange,
		prefix:   routingPrefix,
		logger:   applog.Discard(),
		clock:    clock.Real(),
		dial:     dialBroker,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mutated publishes m and logs any failure.
func (p *Publisher) Mutated(ctx context.Context, m api.Mutation) {
	msg := NewMutationEvent(m)
	if err := p.Publish(ctx, msg); err != nil {
		if errors.Is(err, ErrBackingOff) {
			p.logger.DebugContext(ctx, "Skipped mutation event while broker is unavailable",
				applog.FieldResource, msg.Resource, applog.FieldOperation, msg.Op)
			return
		}
		p.logger.WarnContext(ctx, "Failed to publish mutation event",
			applog.FieldError, err,
			applog.FieldResource, msg.Resource,
			applog.FieldOperation, msg.Op,
			applog.FieldRecordID, msg.ID)
	}
}

// Publish sends one event.
func (p *Publisher) Publish(ctx context.Context, msg *MutationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.connectLocked()
	if err != nil {
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	key := msg.RoutingKey(p.prefix)
	err = ch.PublishWithContext(pctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    p.clock.Now(),
		Body:         body,
	})
	if err != nil {
		if isConnectionError(err) {
			p.dropLocked()
			p.scheduleRetryLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.DebugContext(ctx, "Published mutation event",
		applog.FieldRoutingKey, key,
		applog.FieldRecordID, msg.ID)
	return nil
}

func (p *Publisher) connectLocked() (channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	if now := p.clock.Now(); now.Before(p.nextAttempt) {
		return nil, ErrBackingOff
	}

	ch, conn, err := p.dial(p.url)
	if err != nil {
		p.scheduleRetryLocked()
		return nil, err
	}
	if err := ch.ExchangeDeclare(p.exchange, exchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		if conn != nil {
			conn.Close()
		}
		p.scheduleRetryLocked()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if p.failures > 0 {
		p.logger.Info("Reconnected to broker", "attempts", p.failures)
	}
	p.ch, p.conn = ch, conn
	p.failures = 0
	p.nextAttempt = time.Time{}
	return ch, nil
}

func (p *Publisher) scheduleRetryLocked() {
	p.nextAttempt = p.clock.Now().Add(exponentialBackoff(p.failures))
	p.failures++
}

func (p *Publisher) dropLocked() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
	return err
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Subscribe binds a private queue to every event under the routing
// prefix and calls handler for each one until ctx is done.
func Subscribe(ctx context.Context, url, exchange, routingPrefix string, logger *applog.Logger, handler func(*MutationEvent) error) error {
	logger = logger.WithComponent(applog.ComponentAMQP)
	conn, err := amqp091.Dial(url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	pattern := "#"
	if routingPrefix != "" {
		pattern = routingPrefix + ".#"
	}
	if err := ch.QueueBind(q.Name, pattern, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	logger.InfoContext(ctx, "Listening for mutation events", applog.FieldRoutingKey, pattern)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			msg, err := MutationEventFromJSON(delivery.Body)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to unmarshal message", applog.FieldError, err)
				delivery.Nack(false, false)
				continue
			}
			if err := handler(msg); err != nil {
				logger.ErrorContext(ctx, "Failed to handle message", applog.FieldError, err, applog.FieldRecordID, msg.ID)
				delivery.Nack(false, false)
				continue
			}
			delivery.Ack(false)
		}
	}
}
