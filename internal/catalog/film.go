package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/reservation"
)

// FilmInput creates a film under a caller-chosen id.
type FilmInput struct {
	FilmID   string  `json:"FilmID" validate:"required"`
	Name     string  `json:"Name" validate:"required"`
	Category string  `json:"Category" validate:"required"`
	Genre    string  `json:"Genre" validate:"required"`
	Duration int     `json:"Duration" validate:"gte=1"`
	Trailer  *string `json:"Trailer"`
	Poster   *string `json:"Poster"`
}

// FilmUpdate changes the supplied fields of a film.
type FilmUpdate struct {
	Name     *string `json:"Name"`
	Category *string `json:"Category"`
	Genre    *string `json:"Genre"`
	Duration *int    `json:"Duration"`
	Trailer  *string `json:"Trailer"`
	Poster   *string `json:"Poster"`
}

func (c *Catalog) CreateFilm(ctx context.Context, in FilmInput) (string, error) {
	if err := c.check(in); err != nil {
		return "", err
	}
	err := c.run(ctx, "create film", func(ctx context.Context, tx *repository.Tx) error {
		_, err := tx.Film(ctx, in.FilmID)
		if err := free(err, "FilmID", in.FilmID); err != nil {
			return err
		}
		tx.PutFilm(model.Film{
			ID:       in.FilmID,
			Name:     in.Name,
			Category: in.Category,
			Genre:    in.Genre,
			Duration: in.Duration,
			Trailer:  in.Trailer,
			Poster:   in.Poster,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	c.log.Info("film created", zap.String("film_id", in.FilmID))
	return in.FilmID, nil
}

func (c *Catalog) GetFilm(ctx context.Context, id string) (*model.Film, error) {
	var f *model.Film
	err := c.run(ctx, "get film", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		f, err = tx.Film(ctx, id)
		return missing(err, "FilmID", id)
	})
	return f, err
}

func (c *Catalog) ListFilms(ctx context.Context) ([]model.Film, error) {
	var out []model.Film
	err := c.run(ctx, "list films", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		out, err = tx.Films(ctx)
		return err
	})
	return out, err
}

// GetFilms resolves many films in one read.  Unknown ids are skipped.
func (c *Catalog) GetFilms(ctx context.Context, ids []string) ([]model.Film, error) {
	var out []model.Film
	err := c.run(ctx, "get films", func(ctx context.Context, tx *repository.Tx) error {
		var err error
		out, err = tx.FilmsByID(ctx, ids)
		return err
	})
	return out, err
}

func (c *Catalog) UpdateFilm(ctx context.Context, id string, in FilmUpdate) error {
	if in.Name == nil && in.Category == nil && in.Genre == nil && in.Duration == nil && in.Trailer == nil && in.Poster == nil {
		return reservation.Errorf(reservation.InvalidArgument,
			"at least one field is required for update: Name, Category, Genre, Duration, Trailer, Poster")
	}
	if in.Duration != nil && *in.Duration < 1 {
		return reservation.Errorf(reservation.InvalidArgument, "Duration must be positive")
	}
	err := c.run(ctx, "update film", func(ctx context.Context, tx *repository.Tx) error {
		f, err := tx.Film(ctx, id)
		if err != nil {
			return missing(err, "FilmID", id)
		}
		if in.Name != nil {
			f.Name = *in.Name
		}
		if in.Category != nil {
			f.Category = *in.Category
		}
		if in.Genre != nil {
			f.Genre = *in.Genre
		}
		if in.Duration != nil {
			f.Duration = *in.Duration
		}
		if in.Trailer != nil {
			f.Trailer = in.Trailer
		}
		if in.Poster != nil {
			f.Poster = in.Poster
		}
		tx.PutFilm(*f)
		return nil
	})
	if err == nil {
		c.log.Info("film updated", zap.String("film_id", id))
	}
	return err
}

func (c *Catalog) DeleteFilm(ctx context.Context, id string) error {
	err := c.run(ctx, "delete film", func(ctx context.Context, tx *repository.Tx) error {
		if _, err := tx.Film(ctx, id); err != nil {
			return missing(err, "FilmID", id)
		}
		tx.DeleteFilm(id)
		return nil
	})
	if err == nil {
		c.log.Info("film deleted", zap.String("film_id", id))
	}
	return err
}
