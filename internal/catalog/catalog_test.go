package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/reservation"
)

func newStore() *repository.Store {
	return repository.NewMemoryStore(repository.Options{
		MaxAttempts:    50,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Millisecond,
	})
}

func newCatalog() *Catalog {
	return New(newStore(), nil, nil)
}

func TestFilmCRUD(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()
	poster := "heat.jpg"

	id, err := c.CreateFilm(ctx, FilmInput{FilmID: "Film1", Name: "Heat", Category: "15", Genre: "Crime", Duration: 170, Poster: &poster})
	require.NoError(t, err)
	assert.Equal(t, "Film1", id)

	_, err = c.CreateFilm(ctx, FilmInput{FilmID: "Film1", Name: "Again", Category: "PG", Genre: "Drama", Duration: 90})
	assert.ErrorIs(t, err, reservation.ErrInvalidArgument, "duplicate ids are rejected")
	_, err = c.CreateFilm(ctx, FilmInput{FilmID: "Film2", Name: "No duration", Category: "PG", Genre: "Drama"})
	assert.ErrorIs(t, err, reservation.ErrInvalidArgument)

	d := 171
	require.NoError(t, c.UpdateFilm(ctx, "Film1", FilmUpdate{Duration: &d}))
	f, err := c.GetFilm(ctx, "Film1")
	require.NoError(t, err)
	assert.Equal(t, 171, f.Duration)
	assert.Equal(t, "Heat", f.Name)
	require.NotNil(t, f.Poster)
	assert.Equal(t, poster, *f.Poster)

	assert.ErrorIs(t, c.UpdateFilm(ctx, "Film1", FilmUpdate{}), reservation.ErrInvalidArgument)
	assert.ErrorIs(t, c.UpdateFilm(ctx, "Film9", FilmUpdate{Duration: &d}), reservation.ErrNotFound)

	require.NoError(t, c.DeleteFilm(ctx, "Film1"))
	_, err = c.GetFilm(ctx, "Film1")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
	assert.ErrorIs(t, c.DeleteFilm(ctx, "Film1"), reservation.ErrNotFound)
}

func TestTheatreCapacityAndIDs(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()

	first, err := c.CreateTheatre(ctx, TheatreInput{Rows: 5, Columns: 8})
	require.NoError(t, err)
	second, err := c.CreateTheatre(ctx, TheatreInput{Rows: 2, Columns: 5})
	require.NoError(t, err)
	assert.Equal(t, "Theatre1", first)
	assert.Equal(t, "Theatre2", second)

	th, err := c.GetTheatre(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 40, th.Capacity)

	_, err = c.CreateTheatre(ctx, TheatreInput{Rows: 0, Columns: 5})
	assert.ErrorIs(t, err, reservation.ErrInvalidArgument)
	_, err = c.GetTheatre(ctx, "Screen1")
	assert.ErrorIs(t, err, reservation.ErrInvalidArgument)

	capacity := 30
	require.NoError(t, c.UpdateTheatre(ctx, first, TheatreUpdate{Capacity: &capacity}))
	th, err = c.GetTheatre(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 30, th.Capacity)
	assert.Equal(t, 5, th.Rows)

	many, err := c.GetTheatres(ctx, []string{second, "Theatre99", first})
	require.NoError(t, err)
	assert.Len(t, many, 2)

	require.NoError(t, c.DeleteTheatre(ctx, first))
	third, err := c.CreateTheatre(ctx, TheatreInput{Rows: 1, Columns: 1})
	require.NoError(t, err)
	assert.Equal(t, "Theatre3", third, "deleted ids are not reused")
}

func TestTicketTypes(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()

	_, err := c.CreateTicketType(ctx, TicketTypeInput{TicketTypeID: "Adult", Cost: 12.5})
	require.NoError(t, err)
	_, err = c.CreateTicketType(ctx, TicketTypeInput{TicketTypeID: "Child", Cost: 6})
	require.NoError(t, err)
	_, err = c.CreateTicketType(ctx, TicketTypeInput{TicketTypeID: "Adult", Cost: 1})
	assert.ErrorIs(t, err, reservation.ErrInvalidArgument)

	cost := 13.0
	require.NoError(t, c.UpdateTicketType(ctx, "Adult", TicketTypeUpdate{Cost: &cost}))
	assert.ErrorIs(t, c.UpdateTicketType(ctx, "Adult", TicketTypeUpdate{}), reservation.ErrInvalidArgument)

	all, err := c.ListTicketTypes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Adult", all[0].ID)
	assert.InDelta(t, 13.0, all[0].Cost, 0.001)

	some, err := c.GetTicketTypes(ctx, []string{"Child"})
	require.NoError(t, err)
	require.Len(t, some, 1)

	require.NoError(t, c.DeleteTicketType(ctx, "Child"))
	_, err = c.GetTicketType(ctx, "Child")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestUpdateTheatreReconcilesScreenings(t *testing.T) {
	store := newStore()
	c := New(store, nil, nil)
	coord := reservation.NewCoordinator(store)
	ctx := context.Background()

	_, err := c.CreateFilm(ctx, FilmInput{FilmID: "F1", Name: "Heat", Category: "15", Genre: "Crime", Duration: 90})
	require.NoError(t, err)
	_, err = c.CreateTicketType(ctx, TicketTypeInput{TicketTypeID: "Adult", Cost: 9})
	require.NoError(t, err)
	theatreID, err := c.CreateTheatre(ctx, TheatreInput{Rows: 2, Columns: 5})
	require.NoError(t, err)
	screeningID, err := coord.CreateScreening(ctx, reservation.CreateScreeningInput{
		FilmID: "F1", TheatreID: theatreID, Date: "2026-03-01", StartTime: "18:00",
	})
	require.NoError(t, err)
	bookingID, err := coord.CreateBooking(ctx, reservation.CreateBookingInput{NoOfSeats: 3, Cost: 27, EmailAddress: "a@b.io"})
	require.NoError(t, err)
	for col := 1; col <= 3; col++ {
		_, err := coord.CreateTicket(ctx, reservation.CreateTicketInput{
			BookingID: bookingID, ScreeningID: screeningID, SeatRow: 2, SeatColumn: col,
		})
		require.NoError(t, err)
	}

	one, two, six := 1, 2, 6
	assert.ErrorIs(t, c.UpdateTheatre(ctx, theatreID, TheatreUpdate{Rows: &one}), reservation.ErrInvalidArgument,
		"sold seats would fall outside the grid")
	assert.ErrorIs(t, c.UpdateTheatre(ctx, theatreID, TheatreUpdate{Capacity: &two}), reservation.ErrInvalidArgument,
		"capacity below the sold tickets")

	th, err := c.GetTheatre(ctx, theatreID)
	require.NoError(t, err)
	assert.Equal(t, 2, th.Rows)
	assert.Equal(t, 10, th.Capacity)
	s, err := coord.GetScreening(ctx, screeningID)
	require.NoError(t, err)
	assert.Equal(t, 7, s.SeatsRemaining)

	require.NoError(t, c.UpdateTheatre(ctx, theatreID, TheatreUpdate{Capacity: &six}))
	s, err = coord.GetScreening(ctx, screeningID)
	require.NoError(t, err)
	assert.Equal(t, 3, s.SeatsRemaining)

	tickets, err := coord.ListTickets(ctx, screeningID)
	require.NoError(t, err)
	assert.Equal(t, six-s.SeatsRemaining, len(tickets))
}

func TestUpdateTheatreRejectsMalformedID(t *testing.T) {
	c := newCatalog()
	capacity := 5
	err := c.UpdateTheatre(context.Background(), "Screen1", TheatreUpdate{Capacity: &capacity})
	assert.ErrorIs(t, err, reservation.ErrInvalidArgument)
}

func TestUpdateTheatreRacesScreeningCreation(t *testing.T) {
	store := repository.NewMemoryStore(repository.Options{
		MaxAttempts:    1000,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Millisecond,
	})
	c := New(store, nil, nil)
	coord := reservation.NewCoordinator(store)
	ctx := context.Background()

	_, err := c.CreateFilm(ctx, FilmInput{FilmID: "F1", Name: "Heat", Category: "15", Genre: "Crime", Duration: 90})
	require.NoError(t, err)
	theatreID, err := c.CreateTheatre(ctx, TheatreInput{Rows: 4, Columns: 5})
	require.NoError(t, err)

	capacity := 12
	var g errgroup.Group
	for day := 1; day <= 10; day++ {
		date := fmt.Sprintf("2026-04-%02d", day)
		g.Go(func() error {
			_, err := coord.CreateScreening(ctx, reservation.CreateScreeningInput{
				FilmID: "F1", TheatreID: theatreID, Date: date, StartTime: "10:00",
			})
			return err
		})
	}
	g.Go(func() error {
		return c.UpdateTheatre(ctx, theatreID, TheatreUpdate{Capacity: &capacity})
	})
	require.NoError(t, g.Wait())

	screenings, err := coord.ListScreenings(ctx)
	require.NoError(t, err)
	require.Len(t, screenings, 10)
	for _, s := range screenings {
		assert.Equal(t, capacity, s.SeatsRemaining, s.ID)
	}
}
