package reservation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// DefaultTicketType is used when a ticket is created without a type.
const DefaultTicketType = "Adult"

// CreateTicketInput holds the fields of a new ticket.  Seats are 1-based.
type CreateTicketInput struct {
	BookingID    string `json:"BookingID" validate:"required"`
	ScreeningID  string `json:"ScreeningID" validate:"required"`
	TicketTypeID string `json:"TicketType"`
	SeatRow      int    `json:"SeatRow" validate:"gte=1"`
	SeatColumn   int    `json:"SeatColumn" validate:"gte=1"`
}

// UpdateTicketInput holds a partial ticket update; nil fields are kept.
type UpdateTicketInput struct {
	BookingID    *string `json:"BookingID"`
	ScreeningID  *string `json:"ScreeningID"`
	TicketTypeID *string `json:"TicketType"`
	SeatRow      *int    `json:"SeatRow"`
	SeatColumn   *int    `json:"SeatColumn"`
}

func (in UpdateTicketInput) empty() bool {
	return in.BookingID == nil && in.ScreeningID == nil && in.TicketTypeID == nil &&
		in.SeatRow == nil && in.SeatColumn == nil
}

// CreateTicket claims one seat of a screening for a booking.  It fails with
// NotFound when the booking, screening or ticket type is missing,
// SeatsExhausted when the screening is full and SeatTaken when another
// live ticket holds the same seat.
func (c *Coordinator) CreateTicket(ctx context.Context, in CreateTicketInput) (string, error) {
	if err := c.check(in); err != nil {
		return "", err
	}
	if in.TicketTypeID == "" {
		in.TicketTypeID = DefaultTicketType
	}

	var (
		id        string
		remaining int
	)
	err := c.run(ctx, "create ticket", func(ctx context.Context, tx *repository.Tx) error {
		if _, err := loadBooking(ctx, tx, in.BookingID); err != nil {
			return err
		}
		ledger := NewLedger()
		screening, err := loadScreening(ctx, tx, ledger, in.ScreeningID)
		if err != nil {
			return err
		}
		if err := checkTicketType(ctx, tx, in.TicketTypeID); err != nil {
			return err
		}
		theatre, err := optionalTheatre(ctx, tx, screening.TheatreID)
		if err != nil {
			return err
		}
		tickets, err := tx.TicketsForScreening(ctx, screening.ID)
		if err != nil {
			return err
		}
		seq, err := ReadSequence(ctx, tx, KindTicket)
		if err != nil {
			return err
		}

		if err := checkSeatInGrid(theatre, in.SeatRow, in.SeatColumn); err != nil {
			return err
		}
		if err := ledger.Reserve(screening.ID); err != nil {
			return err
		}
		if err := checkSeatFree(tickets, "", screening.ID, in.SeatRow, in.SeatColumn); err != nil {
			return err
		}

		ledger.Flush(tx)
		id = seq.Next(tx)
		tx.PutTicket(model.Ticket{
			ID:           id,
			BookingID:    in.BookingID,
			ScreeningID:  screening.ID,
			TicketTypeID: in.TicketTypeID,
			SeatRow:      in.SeatRow,
			SeatColumn:   in.SeatColumn,
		})
		remaining = ledger.Remaining(screening.ID)
		return nil
	})
	if err != nil {
		return "", err
	}
	c.log.Info("ticket created",
		zap.String("ticket_id", id),
		zap.String("screening_id", in.ScreeningID),
		zap.Int("seats_remaining", remaining))
	c.publish(ctx, queue.ReservationEvent{
		Type:           queue.TicketCreated,
		EntityID:       id,
		BookingID:      in.BookingID,
		ScreeningID:    in.ScreeningID,
		SeatRow:        in.SeatRow,
		SeatColumn:     in.SeatColumn,
		SeatsRemaining: intPtr(remaining),
	})
	return id, nil
}

func (c *Coordinator) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	if err := CheckID(KindTicket, id); err != nil {
		return nil, err
	}
	var t *model.Ticket
	err := c.run(ctx, "get ticket", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		t, err = loadTicket(ctx, tx, id)
		return err
	})
	return t, err
}

// ListTickets returns every ticket, or only those of screeningID when it is
// not empty.
func (c *Coordinator) ListTickets(ctx context.Context, screeningID string) ([]model.Ticket, error) {
	var out []model.Ticket
	err := c.run(ctx, "list tickets", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		if screeningID != "" {
			out, err = tx.TicketsForScreening(ctx, screeningID)
		} else {
			out, err = tx.Tickets(ctx)
		}
		return err
	})
	return out, err
}

// UpdateTicket applies the supplied fields.  Moving a ticket to another
// screening releases its old seat and reserves a new one; when the target
// is full nothing changes.  Any seat change is checked against the other
// live tickets of the target screening.
func (c *Coordinator) UpdateTicket(ctx context.Context, id string, in UpdateTicketInput) error {
	if err := CheckID(KindTicket, id); err != nil {
		return err
	}
	if in.empty() {
		return invalid("at least one field is required for update: BookingID, ScreeningID, TicketType, SeatRow, SeatColumn")
	}
	for _, f := range []struct {
		name string
		v    *string
	}{{"BookingID", in.BookingID}, {"ScreeningID", in.ScreeningID}, {"TicketType", in.TicketTypeID}} {
		if err := nonEmpty(f.name, f.v); err != nil {
			return err
		}
	}
	if (in.SeatRow != nil && *in.SeatRow < 1) || (in.SeatColumn != nil && *in.SeatColumn < 1) {
		return invalid("SeatRow and SeatColumn start at 1")
	}

	var (
		next      model.Ticket
		remaining *int
	)
	err := c.run(ctx, "update ticket", func(ctx context.Context, tx *repository.Tx) error {
		cur, err := loadTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		next = *cur
		if in.BookingID != nil {
			next.BookingID = *in.BookingID
		}
		if in.ScreeningID != nil {
			next.ScreeningID = *in.ScreeningID
		}
		if in.TicketTypeID != nil {
			next.TicketTypeID = *in.TicketTypeID
		}
		if in.SeatRow != nil {
			next.SeatRow = *in.SeatRow
		}
		if in.SeatColumn != nil {
			next.SeatColumn = *in.SeatColumn
		}
		screeningChanged := next.ScreeningID != cur.ScreeningID
		seatChanged := screeningChanged || next.SeatRow != cur.SeatRow || next.SeatColumn != cur.SeatColumn

		ledger := NewLedger()
		remaining = nil
		var (
			target  *model.Screening
			theatre *model.Theatre
			tickets []model.Ticket
		)
		if seatChanged {
			if _, err := ledger.Load(ctx, tx, cur.ScreeningID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if screeningChanged {
				if target, err = ledger.Load(ctx, tx, next.ScreeningID); errors.Is(err, repository.ErrNotFound) {
					return notFound("new ScreeningID %s not found", next.ScreeningID)
				} else if err != nil {
					return err
				}
			} else if s, err := ledger.Load(ctx, tx, next.ScreeningID); err == nil {
				target = s
			}
		}
		if next.BookingID != cur.BookingID {
			if _, err := loadBooking(ctx, tx, next.BookingID); err != nil {
				return err
			}
		}
		if next.TicketTypeID != cur.TicketTypeID {
			if err := checkTicketType(ctx, tx, next.TicketTypeID); err != nil {
				return err
			}
		}
		if seatChanged {
			if target != nil {
				if theatre, err = optionalTheatre(ctx, tx, target.TheatreID); err != nil {
					return err
				}
			}
			if tickets, err = tx.TicketsForScreening(ctx, next.ScreeningID); err != nil {
				return err
			}
		}

		if seatChanged {
			if err := checkSeatInGrid(theatre, next.SeatRow, next.SeatColumn); err != nil {
				return err
			}
			if screeningChanged {
				if err := ledger.Reassign(cur.ScreeningID, next.ScreeningID); err != nil {
					return err
				}
			} else {
				ledger.Touch(cur.ScreeningID)
			}
			if err := checkSeatFree(tickets, id, next.ScreeningID, next.SeatRow, next.SeatColumn); err != nil {
				return err
			}
			ledger.Flush(tx)
			if target != nil {
				remaining = intPtr(ledger.Remaining(target.ID))
			}
		}
		tx.PutTicket(next)
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Info("ticket updated", zap.String("ticket_id", id), zap.String("screening_id", next.ScreeningID))
	c.publish(ctx, queue.ReservationEvent{
		Type:           queue.TicketUpdated,
		EntityID:       id,
		BookingID:      next.BookingID,
		ScreeningID:    next.ScreeningID,
		SeatRow:        next.SeatRow,
		SeatColumn:     next.SeatColumn,
		SeatsRemaining: remaining,
	})
	return nil
}

// DeleteTicket removes a ticket and gives its seat back.  When the
// screening is already gone only the ticket is removed.
func (c *Coordinator) DeleteTicket(ctx context.Context, id string) error {
	if err := CheckID(KindTicket, id); err != nil {
		return err
	}
	var (
		deleted   model.Ticket
		remaining *int
	)
	err := c.run(ctx, "delete ticket", func(ctx context.Context, tx *repository.Tx) error {
		t, err := loadTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		deleted = *t
		remaining = nil
		ledger := NewLedger()
		s, err := ledger.Load(ctx, tx, t.ScreeningID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		ledger.Release(t.ScreeningID)
		ledger.Flush(tx)
		tx.DeleteTicket(id)
		if s != nil {
			remaining = intPtr(ledger.Remaining(s.ID))
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Info("ticket deleted", zap.String("ticket_id", id), zap.String("screening_id", deleted.ScreeningID))
	c.publish(ctx, queue.ReservationEvent{
		Type:           queue.TicketDeleted,
		EntityID:       id,
		BookingID:      deleted.BookingID,
		ScreeningID:    deleted.ScreeningID,
		SeatRow:        deleted.SeatRow,
		SeatColumn:     deleted.SeatColumn,
		SeatsRemaining: remaining,
	})
	return nil
}

func loadTicket(ctx context.Context, tx *repository.Tx, id string) (*model.Ticket, error) {
	t, err := tx.Ticket(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("TicketID %s not found", id)
	}
	return t, err
}

func loadScreening(ctx context.Context, tx *repository.Tx, ledger *Ledger, id string) (*model.Screening, error) {
	s, err := ledger.Load(ctx, tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("ScreeningID %s not found", id)
	}
	return s, err
}

func checkTicketType(ctx context.Context, tx *repository.Tx, id string) error {
	_, err := tx.TicketType(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("TicketType %q not found", id)
	}
	return err
}

// optionalTheatre returns nil without error when the theatre is missing.
func optionalTheatre(ctx context.Context, tx *repository.Tx, id string) (*model.Theatre, error) {
	t, err := tx.Theatre(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

func checkSeatInGrid(theatre *model.Theatre, row, col int) error {
	if row < 1 || col < 1 {
		return invalid("SeatRow and SeatColumn start at 1")
	}
	if theatre != nil && !theatre.Contains(row, col) {
		return invalid("seat %d/%d is outside theatre %s (%d rows, %d columns)",
			row, col, theatre.ID, theatre.Rows, theatre.Columns)
	}
	return nil
}

// checkSeatFree fails with SeatTaken when a live ticket other than self
// holds the seat.
func checkSeatFree(tickets []model.Ticket, self, screeningID string, row, col int) error {
	for _, t := range tickets {
		if t.ID != self && t.SameSeat(screeningID, row, col) {
			return newError(SeatTaken, "seat %d/%d of screening %s is held by ticket %s", row, col, screeningID, t.ID)
		}
	}
	return nil
}
