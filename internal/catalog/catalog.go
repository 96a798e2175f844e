// Package catalog manages the reference data screenings and tickets point
// at: films, theatres and ticket types.  Reads resolve single records or
// batches; writes are plain transactional CRUD.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/reservation"
)

// Catalog is the collaborator store for Film, Theatre and TicketType.
type Catalog struct {
	store    reservation.Transactor
	log      *zap.Logger
	validate *validator.Validate
}

func New(store reservation.Transactor, log *zap.Logger, v *validator.Validate) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Catalog{store: store, log: log, validate: v}
}

func (c *Catalog) run(ctx context.Context, op string, fn func(ctx context.Context, tx *repository.Tx) error) error {
	if err := c.store.RunTransaction(ctx, fn); err != nil {
		err = reservation.Wrap(err, op)
		if reservation.KindOf(err) == reservation.Internal {
			c.log.Error("catalog transaction failed", zap.String("op", op), zap.Error(err))
		}
		return err
	}
	return nil
}

func (c *Catalog) check(in any) error {
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
		return reservation.Errorf(reservation.InvalidArgument, "%s", strings.Join(msgs, "; "))
	}
	return reservation.Errorf(reservation.InvalidArgument, "%v", err)
}

func notFound(what, id string) error {
	return reservation.Errorf(reservation.NotFound, "%s %s not found", what, id)
}

func exists(what, id string) error {
	return reservation.Errorf(reservation.InvalidArgument, "%s %q already exists", what, id)
}

// missing maps a store ErrNotFound to a typed NotFound error.
func missing(err error, what, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(what, id)
	}
	return err
}

// free turns the outcome of a lookup into an error when the record exists.
func free(err error, what, id string) error {
	switch {
	case err == nil:
		return exists(what, id)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return err
	}
}
