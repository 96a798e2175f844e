package reservation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// CreateBookingInput holds the fields of a new booking.
type CreateBookingInput struct {
	NoOfSeats    int     `json:"NoOfSeats" validate:"gte=1"`
	Cost         float64 `json:"Cost" validate:"gt=0"`
	EmailAddress string  `json:"EmailAddress" validate:"required,email"`
}

// UpdateBookingInput holds a partial booking update; nil fields are kept.
type UpdateBookingInput struct {
	NoOfSeats    *int     `json:"NoOfSeats"`
	Cost         *float64 `json:"Cost"`
	EmailAddress *string  `json:"EmailAddress"`
}

// CreateBooking mints a Booking id and stores the booking.
func (c *Coordinator) CreateBooking(ctx context.Context, in CreateBookingInput) (string, error) {
	if err := c.check(in); err != nil {
		return "", err
	}
	var id string
	err := c.run(ctx, "create booking", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		id, err = NextID(ctx, tx, KindBooking)
		if err != nil {
			return err
		}
		tx.PutBooking(model.Booking{
			ID:           id,
			NoOfSeats:    in.NoOfSeats,
			Cost:         in.Cost,
			EmailAddress: in.EmailAddress,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	c.log.Info("booking created", zap.String("booking_id", id))
	c.publish(ctx, queue.ReservationEvent{Type: queue.BookingCreated, EntityID: id, BookingID: id})
	return id, nil
}

func (c *Coordinator) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	if err := CheckID(KindBooking, id); err != nil {
		return nil, err
	}
	var b *model.Booking
	err := c.run(ctx, "get booking", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		b, err = loadBooking(ctx, tx, id)
		return err
	})
	return b, err
}

func (c *Coordinator) ListBookings(ctx context.Context) ([]model.Booking, error) {
	var out []model.Booking
	err := c.run(ctx, "list bookings", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		out, err = tx.Bookings(ctx)
		return err
	})
	return out, err
}

// UpdateBooking applies the supplied fields.  At least one is required.
func (c *Coordinator) UpdateBooking(ctx context.Context, id string, in UpdateBookingInput) error {
	if err := CheckID(KindBooking, id); err != nil {
		return err
	}
	if in.NoOfSeats == nil && in.Cost == nil && in.EmailAddress == nil {
		return invalid("at least one field is required for update: NoOfSeats, Cost, EmailAddress")
	}
	if in.NoOfSeats != nil && *in.NoOfSeats < 1 {
		return invalid("NoOfSeats must be at least 1")
	}
	if in.Cost != nil && *in.Cost <= 0 {
		return invalid("Cost must be positive")
	}
	if in.EmailAddress != nil {
		if err := c.validate.Var(*in.EmailAddress, "required,email"); err != nil {
			return invalid("EmailAddress is not a valid address")
		}
	}
	err := c.run(ctx, "update booking", func(ctx context.Context, tx *repository.Tx) error {
		b, err := loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.NoOfSeats != nil {
			b.NoOfSeats = *in.NoOfSeats
		}
		if in.Cost != nil {
			b.Cost = *in.Cost
		}
		if in.EmailAddress != nil {
			b.EmailAddress = *in.EmailAddress
		}
		tx.PutBooking(*b)
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Info("booking updated", zap.String("booking_id", id))
	return nil
}

// DeleteBooking removes a booking.  Its tickets are left in place.
func (c *Coordinator) DeleteBooking(ctx context.Context, id string) error {
	if err := CheckID(KindBooking, id); err != nil {
		return err
	}
	err := c.run(ctx, "delete booking", func(ctx context.Context, tx *repository.Tx) error {
		if _, err := loadBooking(ctx, tx, id); err != nil {
			return err
		}
		tx.DeleteBooking(id)
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Info("booking deleted", zap.String("booking_id", id))
	return nil
}

func loadBooking(ctx context.Context, tx *repository.Tx, id string) (*model.Booking, error) {
	b, err := tx.Booking(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("BookingID %s not found", id)
	}
	return b, err
}
