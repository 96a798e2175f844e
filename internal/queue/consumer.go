package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// QueueName is the durable queue reservation events are routed to.
const QueueName = "reservation.events"

const maxReconnectBackoff = 30 * time.Second

// StartConsumer consumes QueueName and appends one line per event to
// <logDir>/reservations.log.  It reconnects with exponential backoff when
// the broker is unreachable and returns only when ctx is cancelled.
func StartConsumer(ctx context.Context, url, logDir string, log *zap.Logger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxReconnectBackoff)
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logDir, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("event consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("event consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(logDir, d.Body); err != nil {
			log.Error("event consumer: handle message failed", zap.Error(err))
			_ = d.Nack(false, false) // reject without requeue
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(logDir string, body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.EntityID == "" {
		return errors.New("event without type or entity id")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", logDir, err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, "reservations.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev ReservationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | id=%s", ev.OccurredAt, ev.Type, ev.EntityID)
	if ev.BookingID != "" {
		fmt.Fprintf(&b, " | booking=%s", ev.BookingID)
	}
	if ev.ScreeningID != "" {
		fmt.Fprintf(&b, " | screening=%s", ev.ScreeningID)
	}
	if ev.TheatreID != "" {
		fmt.Fprintf(&b, " | theatre=%s", ev.TheatreID)
	}
	if ev.SeatRow > 0 || ev.SeatColumn > 0 {
		fmt.Fprintf(&b, " | seat=%d/%d", ev.SeatRow, ev.SeatColumn)
	}
	if ev.SeatsRemaining != nil {
		fmt.Fprintf(&b, " | seats_remaining=%d", *ev.SeatsRemaining)
	}
	b.WriteByte('\n')
	return b.String()
}
