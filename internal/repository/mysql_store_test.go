package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-booking/internal/database"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// openTestDB connects to the database named by TEST_MYSQL_DSN and resets
// the reservation tables.  The test is skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))
	for _, tbl := range []string{"tickets", "screenings", "bookings", "films", "theatres", "ticket_types", "counters", "schedule_slots"} {
		_, err := db.ExecContext(ctx, "DELETE FROM "+tbl)
		require.NoError(t, err)
	}
	return db
}

func TestMySQLRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := NewMySQLStore(db, Options{})
	ctx := context.Background()
	trailer := "https://example.com/t.mp4"

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutFilm(model.Film{ID: "F1", Name: "Heat", Category: "15", Genre: "Crime", Duration: 170, Trailer: &trailer})
		tx.PutScreening(model.Screening{ID: "Screening1", FilmID: "F1", TheatreID: "Theatre1", Date: "2024-05-01", StartTime: "10:00", SeatsRemaining: 10})
		tx.PutTicket(model.Ticket{ID: "Ticket1", BookingID: "Booking1", ScreeningID: "Screening1", TicketTypeID: "Adult", SeatRow: 1, SeatColumn: 2})
		return nil
	}))

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		f, err := tx.Film(ctx, "F1")
		require.NoError(t, err)
		require.NotNil(t, f.Trailer)
		assert.Equal(t, trailer, *f.Trailer)
		assert.Nil(t, f.Poster)

		on, err := tx.ScreeningsOn(ctx, "Theatre1", "2024-05-01")
		require.NoError(t, err)
		require.Len(t, on, 1)
		assert.Equal(t, "10:00", on[0].StartTime)

		tickets, err := tx.TicketsForScreening(ctx, "Screening1")
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		assert.Equal(t, 2, tickets[0].SeatColumn)
		return nil
	}))

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.DeleteTicket("Ticket1")
		return nil
	}))
	err := s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		_, err := tx.Ticket(ctx, "Ticket1")
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMySQLConcurrentIncrements(t *testing.T) {
	db := openTestDB(t)
	s := NewMySQLStore(db, Options{MaxAttempts: 100, InitialBackoff: time.Millisecond, MaxBackoff: 20 * time.Millisecond})
	const workers = 20

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return s.RunTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
				n, err := tx.Counter(ctx, "Booking")
				if err != nil {
					return err
				}
				tx.PutCounter("Booking", n+1)
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, s.RunTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		n, err := tx.Counter(ctx, "Booking")
		assert.EqualValues(t, workers, n)
		return err
	}))
}

func TestMySQLSeatKeyRejectsSecondTicket(t *testing.T) {
	db := openTestDB(t)
	s := NewMySQLStore(db, Options{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	ctx := context.Background()

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutTicket(model.Ticket{ID: "Ticket1", BookingID: "Booking1", ScreeningID: "Screening1", TicketTypeID: "Adult", SeatRow: 3, SeatColumn: 4})
		return nil
	}))

	err := s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutTicket(model.Ticket{ID: "Ticket2", BookingID: "Booking2", ScreeningID: "Screening1", TicketTypeID: "Adult", SeatRow: 3, SeatColumn: 4})
		return nil
	})
	assert.ErrorIs(t, err, ErrRetriesExhausted)

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		first, err := tx.Ticket(ctx, "Ticket1")
		require.NoError(t, err)
		assert.Equal(t, "Booking1", first.BookingID)
		_, err = tx.Ticket(ctx, "Ticket2")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestMySQLUpdateBumpsExistingRow(t *testing.T) {
	db := openTestDB(t)
	s := NewMySQLStore(db, Options{})
	ctx := context.Background()

	for _, n := range []int64{1, 2} {
		n := n
		require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
			tx.PutCounter("Ticket", n)
			return nil
		}))
	}
	var version, last int64
	require.NoError(t, db.QueryRowContext(ctx, "SELECT version, last_value FROM counters WHERE kind = ?", "Ticket").Scan(&version, &last))
	assert.Equal(t, int64(2), version)
	assert.Equal(t, int64(2), last)
}
