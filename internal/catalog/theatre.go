package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/reservation"
)

// TheatreInput describes the seating grid of a new theatre.  Capacity is
// Rows * Columns.
type TheatreInput struct {
	Rows    int `json:"Rows" validate:"gte=1"`
	Columns int `json:"Columns" validate:"gte=1"`
}

// TheatreUpdate changes the supplied fields.  Capacity is not recomputed
// from the grid.
type TheatreUpdate struct {
	Capacity *int `json:"Capacity"`
	Rows     *int `json:"Rows"`
	Columns  *int `json:"Columns"`
}

// CreateTheatre mints a Theatre id and stores the theatre.
func (c *Catalog) CreateTheatre(ctx context.Context, in TheatreInput) (string, error) {
	if err := c.check(in); err != nil {
		return "", err
	}
	var id string
	err := c.run(ctx, "create theatre", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		id, err = reservation.NextID(ctx, tx, reservation.KindTheatre)
		if err != nil {
			return err
		}
		tx.PutTheatre(model.Theatre{
			ID:       id,
			Capacity: in.Rows * in.Columns,
			Rows:     in.Rows,
			Columns:  in.Columns,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	c.log.Info("theatre created", zap.String("theatre_id", id), zap.Int("capacity", in.Rows*in.Columns))
	return id, nil
}

func (c *Catalog) GetTheatre(ctx context.Context, id string) (*model.Theatre, error) {
	if err := reservation.CheckID(reservation.KindTheatre, id); err != nil {
		return nil, err
	}
	var t *model.Theatre
	err := c.run(ctx, "get theatre", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		t, err = tx.Theatre(ctx, id)
		return missing(err, "TheatreID", id)
	})
	return t, err
}

func (c *Catalog) ListTheatres(ctx context.Context) ([]model.Theatre, error) {
	var out []model.Theatre
	err := c.run(ctx, "list theatres", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		out, err = tx.Theatres(ctx)
		return err
	})
	return out, err
}

// GetTheatres resolves many theatres in one read.  Unknown ids are skipped.
func (c *Catalog) GetTheatres(ctx context.Context, ids []string) ([]model.Theatre, error) {
	var out []model.Theatre
	err := c.run(ctx, "get theatres", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		out, err = tx.TheatresByID(ctx, ids)
		return err
	})
	return out, err
}

// UpdateTheatre changes the seating of a theatre and reconciles its
// screenings in the same transaction.  The update is rejected when a
// screening already sold more tickets than the new capacity or holds a
// ticket outside the new grid; otherwise every screening's SeatsRemaining
// becomes the new capacity minus its live tickets.
func (c *Catalog) UpdateTheatre(ctx context.Context, id string, in TheatreUpdate) error {
	if err := reservation.CheckID(reservation.KindTheatre, id); err != nil {
		return err
	}
	if in.Capacity == nil && in.Rows == nil && in.Columns == nil {
		return reservation.Errorf(reservation.InvalidArgument,
			"at least one field is required for update: Capacity, Rows, Columns")
	}
	for name, v := range map[string]*int{"Capacity": in.Capacity, "Rows": in.Rows, "Columns": in.Columns} {
		if v != nil && *v < 0 {
			return reservation.Errorf(reservation.InvalidArgument, "%s must not be negative", name)
		}
	}
	var resized int
	err := c.run(ctx, "update theatre", func(ctx context.Context, tx *repository.Tx) error {
		t, err := tx.Theatre(ctx, id)
		if err != nil {
			return missing(err, "TheatreID", id)
		}
		screenings, err := tx.ScreeningsInTheatre(ctx, id)
		if err != nil {
			return err
		}
		live := make(map[string][]model.Ticket, len(screenings))
		for _, s := range screenings {
			if live[s.ID], err = tx.TicketsForScreening(ctx, s.ID); err != nil {
				return err
			}
		}

		next := *t
		if in.Capacity != nil {
			next.Capacity = *in.Capacity
		}
		if in.Rows != nil {
			next.Rows = *in.Rows
		}
		if in.Columns != nil {
			next.Columns = *in.Columns
		}
		for _, s := range screenings {
			tickets := live[s.ID]
			if len(tickets) > next.Capacity {
				return reservation.Errorf(reservation.InvalidArgument,
					"capacity %d is below the %d tickets sold for screening %s", next.Capacity, len(tickets), s.ID)
			}
			for _, tk := range tickets {
				if !next.Contains(tk.SeatRow, tk.SeatColumn) {
					return reservation.Errorf(reservation.InvalidArgument,
						"ticket %s at row %d column %d lies outside a %dx%d grid",
						tk.ID, tk.SeatRow, tk.SeatColumn, next.Rows, next.Columns)
				}
			}
		}

		tx.PutTheatre(next)
		resized = 0
		for _, s := range screenings {
			if remaining := next.Capacity - len(live[s.ID]); remaining != s.SeatsRemaining {
				s.SeatsRemaining = remaining
				tx.PutScreening(s)
				resized++
			}
		}
		return nil
	})
	if err == nil {
		c.log.Info("theatre updated", zap.String("theatre_id", id), zap.Int("screenings_resized", resized))
	}
	return err
}

func (c *Catalog) DeleteTheatre(ctx context.Context, id string) error {
	if err := reservation.CheckID(reservation.KindTheatre, id); err != nil {
		return err
	}
	err := c.run(ctx, "delete theatre", func(ctx context.Context, tx *repository.Tx) error {
		if _, err := tx.Theatre(ctx, id); err != nil {
			return missing(err, "TheatreID", id)
		}
		tx.DeleteTheatre(id)
		return nil
	})
	if err == nil {
		c.log.Info("theatre deleted", zap.String("theatre_id", id))
	}
	return err
}
