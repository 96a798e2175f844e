// Package service provides adapters that connect the reservation core to
// external infrastructure.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/queue"
)

const defaultDialTimeout = 5 * time.Second

// RabbitPublisher publishes reservation events to queue.QueueName.  The
// connection is opened lazily by a single background dial and re-dialled
// after it drops.  Callers never hold the lock while the broker is
// contacted, and each caller stops waiting when its context ends.
type RabbitPublisher struct {
	url         string
	log         *zap.Logger
	dialTimeout time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing chan struct{} // closed when the dial in flight finishes
	dialErr error
	closed  bool
}

// PublisherOption customises a RabbitPublisher.
type PublisherOption func(*RabbitPublisher)

// WithDialTimeout bounds the TCP connect and AMQP handshake.
func WithDialTimeout(d time.Duration) PublisherOption {
	return func(p *RabbitPublisher) {
		if d > 0 {
			p.dialTimeout = d
		}
	}
}

// NewRabbitPublisher returns a publisher for the broker at url.  No
// connection is made until the first Publish.
func NewRabbitPublisher(url string, log *zap.Logger, opts ...PublisherOption) *RabbitPublisher {
	p := &RabbitPublisher{url: url, log: log, dialTimeout: defaultDialTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends ev as a persistent JSON message.  A failed publish drops
// the channel so the next call reconnects.
func (p *RabbitPublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.QueueName, false, false, msg); err != nil {
		p.drop(ch)
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the broker connection.  A dial still in flight closes
// its connection when it finishes.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// channel returns an open channel.  When none exists it starts a dial, or
// joins the one in flight, and waits for it or for ctx.
func (p *RabbitPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("publisher closed")
	}
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	wait := p.dialing
	if wait == nil {
		if p.conn != nil {
			_ = p.conn.Close()
			p.conn, p.ch = nil, nil
		}
		wait = make(chan struct{})
		p.dialing = wait
		go p.dial(wait)
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for broker: %w", ctx.Err())
	case <-wait:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return p.ch, nil
	}
	if p.dialErr != nil {
		return nil, p.dialErr
	}
	return nil, fmt.Errorf("broker connection lost")
}

func (p *RabbitPublisher) dial(done chan struct{}) {
	conn, ch, err := p.connect()

	p.mu.Lock()
	if p.closed && conn != nil {
		_ = conn.Close()
		conn, ch = nil, nil
		err = fmt.Errorf("publisher closed")
	}
	p.conn, p.ch, p.dialErr = conn, ch, err
	p.dialing = nil
	p.mu.Unlock()
	close(done)

	if err != nil {
		p.log.Warn("event publisher dial failed", zap.Error(err))
		return
	}
	p.log.Info("event publisher connected", zap.String("queue", queue.QueueName))
}

func (p *RabbitPublisher) connect() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue.QueueName, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}
	return conn, ch, nil
}

// drop forgets ch after a failed publish unless another caller already
// replaced it.
func (p *RabbitPublisher) drop(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != ch {
		return
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}
