// Package reservation holds the transactional core of the booking system:
// identifier minting, schedule conflict detection, seat inventory and the
// coordinator that combines them into atomic operations.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// Transactor runs fn as one atomic transaction, retrying it on optimistic
// conflicts.  *repository.Store implements it.
type Transactor interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx *repository.Tx) error) error
}

// EventPublisher receives an event for every committed change.  Failures
// are logged and never affect the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Coordinator exposes the booking, ticket and screening operations.  Every
// method runs in a single transaction: either all of its writes commit or
// none do.
type Coordinator struct {
	store    Transactor
	log      *zap.Logger
	validate *validator.Validate
	events   EventPublisher
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithPublisher(p EventPublisher) Option {
	return func(c *Coordinator) { c.events = p }
}

func WithValidator(v *validator.Validate) Option {
	return func(c *Coordinator) { c.validate = v }
}

func NewCoordinator(store Transactor, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: store,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.validate == nil {
		c.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return c
}

// run executes fn in a transaction and converts the outcome into a typed
// error.
func (c *Coordinator) run(ctx context.Context, op string, fn func(ctx context.Context, tx *repository.Tx) error) error {
	err := c.store.RunTransaction(ctx, fn)
	if err == nil {
		return nil
	}
	err = Wrap(err, op)
	switch KindOf(err) {
	case TransientConflict:
		c.log.Warn("transaction gave up after repeated conflicts", zap.String("op", op), zap.Error(err))
	case Internal:
		c.log.Error("transaction failed", zap.String("op", op), zap.Error(err))
	default:
		c.log.Debug("operation rejected", zap.String("op", op), zap.Error(err))
	}
	return err
}

// check validates a struct with the validator and reports the first
// failing field as InvalidArgument.
func (c *Coordinator) check(in any) error {
	err := c.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
		return invalid("%s", strings.Join(msgs, "; "))
	}
	return invalid("%v", err)
}

func (c *Coordinator) publish(ctx context.Context, ev queue.ReservationEvent) {
	if c.events == nil {
		return
	}
	ev.OccurredAt = c.now().UTC().Format(time.RFC3339)
	if err := c.events.Publish(ctx, ev); err != nil {
		c.log.Warn("publish event failed",
			zap.String("type", ev.Type),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err))
	}
}

func nonEmpty(field string, v *string) error {
	if v != nil && strings.TrimSpace(*v) == "" {
		return invalid("%s must not be empty", field)
	}
	return nil
}

func intPtr(v int) *int { return &v }
