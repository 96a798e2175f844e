package reservation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// CreateScreeningInput holds the fields of a new screening.  Date is
// compared as an opaque string; StartTime is 24h "HH:MM".
type CreateScreeningInput struct {
	FilmID    string `json:"FilmID" validate:"required"`
	TheatreID string `json:"TheatreID" validate:"required"`
	Date      string `json:"Date" validate:"required"`
	StartTime string `json:"StartTime" validate:"required"`
}

// UpdateScreeningInput holds a partial screening update; nil fields are kept.
type UpdateScreeningInput struct {
	FilmID    *string `json:"FilmID"`
	TheatreID *string `json:"TheatreID"`
	Date      *string `json:"Date"`
	StartTime *string `json:"StartTime"`
}

// CreateScreening schedules a film in a theatre.  The screening starts with
// every seat of the theatre free.
func (c *Coordinator) CreateScreening(ctx context.Context, in CreateScreeningInput) (string, error) {
	if err := c.check(in); err != nil {
		return "", err
	}
	if _, err := ParseClock(in.StartTime); err != nil {
		return "", invalid("StartTime: %v", err)
	}

	var created model.Screening
	err := c.run(ctx, "create screening", func(ctx context.Context, tx *repository.Tx) error {
		film, err := loadFilm(ctx, tx, in.FilmID)
		if err != nil {
			return err
		}
		theatre, err := loadTheatre(ctx, tx, in.TheatreID)
		if err != nil {
			return err
		}
		sched, err := ReadSchedule(ctx, tx, in.TheatreID, in.Date)
		if err != nil {
			return err
		}
		seq, err := ReadSequence(ctx, tx, KindScreening)
		if err != nil {
			return err
		}

		if err := sched.Check(in.StartTime, film.Duration, ""); err != nil {
			return err
		}
		created = model.Screening{
			ID:             seq.Next(tx),
			FilmID:         in.FilmID,
			TheatreID:      in.TheatreID,
			Date:           in.Date,
			StartTime:      in.StartTime,
			SeatsRemaining: theatre.Capacity,
		}
		sched.Bump(tx)
		// Rewriting the theatre makes a concurrent capacity change conflict
		// with this screening instead of missing it.
		tx.PutTheatre(*theatre)
		tx.PutScreening(created)
		return nil
	})
	if err != nil {
		return "", err
	}
	c.log.Info("screening created",
		zap.String("screening_id", created.ID),
		zap.String("theatre_id", created.TheatreID),
		zap.String("date", created.Date),
		zap.String("start_time", created.StartTime))
	c.publish(ctx, queue.ReservationEvent{
		Type:           queue.ScreeningCreated,
		EntityID:       created.ID,
		ScreeningID:    created.ID,
		TheatreID:      created.TheatreID,
		SeatsRemaining: intPtr(created.SeatsRemaining),
	})
	return created.ID, nil
}

func (c *Coordinator) GetScreening(ctx context.Context, id string) (*model.Screening, error) {
	if err := CheckID(KindScreening, id); err != nil {
		return nil, err
	}
	var s *model.Screening
	err := c.run(ctx, "get screening", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		s, err = tx.Screening(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("ScreeningID %s not found", id)
		}
		return err
	})
	return s, err
}

func (c *Coordinator) ListScreenings(ctx context.Context) ([]model.Screening, error) {
	var out []model.Screening
	err := c.run(ctx, "list screenings", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		out, err = tx.Screenings(ctx)
		return err
	})
	return out, err
}

// ScreeningsForFilm returns the screenings of a film, or an empty slice.
func (c *Coordinator) ScreeningsForFilm(ctx context.Context, filmID string) ([]model.Screening, error) {
	var out []model.Screening
	err := c.run(ctx, "screenings for film", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		out, err = tx.ScreeningsForFilm(ctx, filmID)
		return err
	})
	if out == nil && err == nil {
		out = []model.Screening{}
	}
	return out, err
}

// UpdateScreening applies the supplied fields.  A theatre change resets
// SeatsRemaining from the new capacity and the live ticket count.  Any
// change of film, theatre, date or start time re-runs conflict detection
// in the target theatre and date, ignoring the screening itself.
func (c *Coordinator) UpdateScreening(ctx context.Context, id string, in UpdateScreeningInput) error {
	if err := CheckID(KindScreening, id); err != nil {
		return err
	}
	if in.FilmID == nil && in.TheatreID == nil && in.Date == nil && in.StartTime == nil {
		return invalid("at least one field is required for update: FilmID, TheatreID, Date, StartTime")
	}
	for _, f := range []struct {
		name string
		v    *string
	}{{"FilmID", in.FilmID}, {"TheatreID", in.TheatreID}, {"Date", in.Date}, {"StartTime", in.StartTime}} {
		if err := nonEmpty(f.name, f.v); err != nil {
			return err
		}
	}
	if in.StartTime != nil {
		if _, err := ParseClock(*in.StartTime); err != nil {
			return invalid("StartTime: %v", err)
		}
	}

	var next model.Screening
	err := c.run(ctx, "update screening", func(ctx context.Context, tx *repository.Tx) error {
		cur, err := tx.Screening(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("ScreeningID %s not found", id)
		}
		if err != nil {
			return err
		}
		next = *cur
		if in.FilmID != nil {
			next.FilmID = *in.FilmID
		}
		if in.TheatreID != nil {
			next.TheatreID = *in.TheatreID
		}
		if in.Date != nil {
			next.Date = *in.Date
		}
		if in.StartTime != nil {
			next.StartTime = *in.StartTime
		}
		filmChanged := next.FilmID != cur.FilmID
		theatreChanged := next.TheatreID != cur.TheatreID
		moved := theatreChanged || next.Date != cur.Date
		reschedule := moved || filmChanged || next.StartTime != cur.StartTime

		var (
			film    *model.Film
			theatre *model.Theatre
			live    []model.Ticket
			sched   *Schedule
			left    *Schedule
		)
		if filmChanged {
			if film, err = loadFilm(ctx, tx, next.FilmID); err != nil {
				return err
			}
		}
		if theatreChanged {
			if theatre, err = loadTheatre(ctx, tx, next.TheatreID); err != nil {
				return err
			}
			if live, err = tx.TicketsForScreening(ctx, id); err != nil {
				return err
			}
		}
		if reschedule {
			if film == nil {
				film, err = tx.Film(ctx, next.FilmID)
				if errors.Is(err, repository.ErrNotFound) {
					return newError(ConflictingSchedule,
						"cannot verify schedule: film %s of screening %s not found", next.FilmID, id)
				}
				if err != nil {
					return err
				}
			}
			if sched, err = ReadSchedule(ctx, tx, next.TheatreID, next.Date); err != nil {
				return err
			}
			if moved {
				if left, err = ReadSlot(ctx, tx, cur.TheatreID, cur.Date); err != nil {
					return err
				}
			}
		}

		if theatreChanged {
			remaining := theatre.Capacity - len(live)
			if remaining < 0 {
				return newError(SeatsExhausted,
					"theatre %s holds %d seats but screening %s has %d tickets",
					theatre.ID, theatre.Capacity, id, len(live))
			}
			next.SeatsRemaining = remaining
			tx.PutTheatre(*theatre)
		}
		if reschedule {
			if err := sched.Check(next.StartTime, film.Duration, id); err != nil {
				return err
			}
			sched.Bump(tx)
			if left != nil {
				left.Bump(tx)
			}
		}
		tx.PutScreening(next)
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Info("screening updated",
		zap.String("screening_id", id),
		zap.String("theatre_id", next.TheatreID),
		zap.Int("seats_remaining", next.SeatsRemaining))
	c.publish(ctx, queue.ReservationEvent{
		Type:           queue.ScreeningUpdated,
		EntityID:       id,
		ScreeningID:    id,
		TheatreID:      next.TheatreID,
		SeatsRemaining: intPtr(next.SeatsRemaining),
	})
	return nil
}

// DeleteScreening removes a screening.  Its tickets stay; deleting them
// later no longer adjusts any seat count.
func (c *Coordinator) DeleteScreening(ctx context.Context, id string) error {
	if err := CheckID(KindScreening, id); err != nil {
		return err
	}
	err := c.run(ctx, "delete screening", func(ctx context.Context, tx *repository.Tx) error {
		cur, err := tx.Screening(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("ScreeningID %s not found", id)
		}
		if err != nil {
			return err
		}
		slot, err := ReadSlot(ctx, tx, cur.TheatreID, cur.Date)
		if err != nil {
			return err
		}
		slot.Bump(tx)
		tx.DeleteScreening(id)
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Info("screening deleted", zap.String("screening_id", id))
	return nil
}

func loadFilm(ctx context.Context, tx *repository.Tx, id string) (*model.Film, error) {
	f, err := tx.Film(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("FilmID %s not found", id)
	}
	return f, err
}

func loadTheatre(ctx context.Context, tx *repository.Tx, id string) (*model.Theatre, error) {
	t, err := tx.Theatre(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("TheatreID %s not found", id)
	}
	return t, err
}
