package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/reservation"
)

// TicketTypeInput creates a ticket type such as "Adult" with its price.
type TicketTypeInput struct {
	TicketTypeID string  `json:"TicketTypeID" validate:"required"`
	Cost         float64 `json:"Cost" validate:"gte=0"`
}

// TicketTypeUpdate changes the price; it is the only mutable field.
type TicketTypeUpdate struct {
	Cost *float64 `json:"Cost"`
}

func (c *Catalog) CreateTicketType(ctx context.Context, in TicketTypeInput) (string, error) {
	if err := c.check(in); err != nil {
		return "", err
	}
	err := c.run(ctx, "create ticket type", func(ctx context.Context, tx *repository.Tx) error {
		_, err := tx.TicketType(ctx, in.TicketTypeID)
		if err := free(err, "TicketTypeID", in.TicketTypeID); err != nil {
			return err
		}
		tx.PutTicketType(model.TicketType{ID: in.TicketTypeID, Cost: in.Cost})
		return nil
	})
	if err != nil {
		return "", err
	}
	c.log.Info("ticket type created", zap.String("ticket_type_id", in.TicketTypeID))
	return in.TicketTypeID, nil
}

func (c *Catalog) GetTicketType(ctx context.Context, id string) (*model.TicketType, error) {
	var t *model.TicketType
	err := c.run(ctx, "get ticket type", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		t, err = tx.TicketType(ctx, id)
		return missing(err, "TicketTypeID", id)
	})
	return t, err
}

func (c *Catalog) ListTicketTypes(ctx context.Context) ([]model.TicketType, error) {
	var out []model.TicketType
	err := c.run(ctx, "list ticket types", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		out, err = tx.TicketTypes(ctx)
		return err
	})
	return out, err
}

// GetTicketTypes resolves many ticket types in one read.  Unknown ids are
// skipped.
func (c *Catalog) GetTicketTypes(ctx context.Context, ids []string) ([]model.TicketType, error) {
	var out []model.TicketType
	err := c.run(ctx, "get ticket types", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		out, err = tx.TicketTypesByID(ctx, ids)
		return err
	})
	return out, err
}

func (c *Catalog) UpdateTicketType(ctx context.Context, id string, in TicketTypeUpdate) error {
	if in.Cost == nil {
		return reservation.Errorf(reservation.InvalidArgument, "missing required field: Cost")
	}
	if *in.Cost < 0 {
		return reservation.Errorf(reservation.InvalidArgument, "Cost must not be negative")
	}
	err := c.run(ctx, "update ticket type", func(ctx context.Context, tx *repository.Tx) error {
		t, err := tx.TicketType(ctx, id)
		if err != nil {
			return missing(err, "TicketTypeID", id)
		}
		t.Cost = *in.Cost
		tx.PutTicketType(*t)
		return nil
	})
	if err == nil {
		c.log.Info("ticket type updated", zap.String("ticket_type_id", id))
	}
	return err
}

func (c *Catalog) DeleteTicketType(ctx context.Context, id string) error {
	err := c.run(ctx, "delete ticket type", func(ctx context.Context, tx *repository.Tx) error {
		if _, err := tx.TicketType(ctx, id); err != nil {
			return missing(err, "TicketTypeID", id)
		}
		tx.DeleteTicketType(id)
		return nil
	})
	if err == nil {
		c.log.Info("ticket type deleted", zap.String("ticket_type_id", id))
	}
	return err
}
