package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-booking/internal/model"
)

func newTestStore() *Store {
	return NewMemoryStore(Options{
		MaxAttempts:    200,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Millisecond,
	})
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore()
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		_, err := tx.Booking(ctx, "Booking1")
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommittedWritesAreVisible(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutBooking(model.Booking{ID: "Booking1", NoOfSeats: 2, Cost: 20, EmailAddress: "a@b.c"})
		return nil
	}))

	var got *model.Booking
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		got, err = tx.Booking(ctx, "Booking1")
		return err
	}))
	assert.Equal(t, 2, got.NoOfSeats)
	assert.Equal(t, "a@b.c", got.EmailAddress)
}

func TestFailedTransactionWritesNothing(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutCounter("Booking", 1)
		tx.PutBooking(model.Booking{ID: "Booking1"})
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		n, err := tx.Counter(ctx, "Booking")
		require.NoError(t, err)
		assert.Zero(t, n)
		_, err = tx.Booking(ctx, "Booking1")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestReadAfterWriteIsRejected(t *testing.T) {
	s := newTestStore()
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		tx.PutCounter("Ticket", 1)
		_, err := tx.Counter(ctx, "Ticket")
		return err
	})
	assert.ErrorIs(t, err, ErrReadAfterWrite)
}

func TestLastStagedWriteWins(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutCounter("Ticket", 1)
		tx.PutCounter("Ticket", 7)
		return nil
	}))
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		n, err := tx.Counter(ctx, "Ticket")
		assert.EqualValues(t, 7, n)
		return err
	}))
}

func TestStaleReadFailsCommit(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	sess, err := s.engine.begin(ctx)
	require.NoError(t, err)
	stale := newTx(sess)
	n, err := stale.Counter(ctx, "Booking")
	require.NoError(t, err)
	require.Zero(t, n)

	// Another transaction mints the first value in between.
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutCounter("Booking", 1)
		return nil
	}))

	stale.PutCounter("Booking", 1)
	err = sess.commit(ctx, stale.reads, stale.writes)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRecreatedDocumentDoesNotReuseVersion(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutFilm(model.Film{ID: "F1", Duration: 90})
		return nil
	}))

	sess, err := s.engine.begin(ctx)
	require.NoError(t, err)
	stale := newTx(sess)
	_, err = stale.Film(ctx, "F1")
	require.NoError(t, err)

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.DeleteFilm("F1")
		return nil
	}))
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutFilm(model.Film{ID: "F1", Duration: 120})
		return nil
	}))

	stale.PutFilm(model.Film{ID: "F1", Duration: 95})
	assert.ErrorIs(t, sess.commit(ctx, stale.reads, stale.writes), ErrConflict)
}

func TestConflictsAreRetriedThenExhausted(t *testing.T) {
	s := NewMemoryStore(Options{MaxAttempts: 3, InitialBackoff: time.Microsecond, MaxBackoff: time.Microsecond})
	var calls int32
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		atomic.AddInt32(&calls, 1)
		return fmt.Errorf("lost race: %w", ErrConflict)
	})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.EqualValues(t, 3, calls)
}

func TestBusinessErrorsAreNotRetried(t *testing.T) {
	s := newTestStore()
	var calls int
	boom := errors.New("no seats")
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestCancelledContextAbandonsTransaction(t *testing.T) {
	s := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		t.Fatal("transaction body must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentIncrementsAreSerialized(t *testing.T) {
	s := newTestStore()
	const workers = 50

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

func TestQueriesFilterAndOrder(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutScreening(model.Screening{ID: "Screening10", FilmID: "F1", TheatreID: "Theatre1", Date: "2024-05-01"})
		tx.PutScreening(model.Screening{ID: "Screening2", FilmID: "F2", TheatreID: "Theatre1", Date: "2024-05-01"})
		tx.PutScreening(model.Screening{ID: "Screening3", FilmID: "F1", TheatreID: "Theatre1", Date: "2024-05-02"})
		tx.PutScreening(model.Screening{ID: "Screening4", FilmID: "F1", TheatreID: "Theatre2", Date: "2024-05-01"})
		tx.PutTicket(model.Ticket{ID: "Ticket1", ScreeningID: "Screening2"})
		tx.PutTicket(model.Ticket{ID: "Ticket2", ScreeningID: "Screening3"})
		return nil
	}))

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		on, err := tx.ScreeningsOn(ctx, "Theatre1", "2024-05-01")
		require.NoError(t, err)
		require.Len(t, on, 2)
		assert.Equal(t, "Screening2", on[0].ID)
		assert.Equal(t, "Screening10", on[1].ID)

		forFilm, err := tx.ScreeningsForFilm(ctx, "F1")
		require.NoError(t, err)
		assert.Len(t, forFilm, 3)

		tickets, err := tx.TicketsForScreening(ctx, "Screening2")
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		assert.Equal(t, "Ticket1", tickets[0].ID)

		all, err := tx.Screenings(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		return nil
	}))
}

func TestBatchReadSkipsUnknownIDs(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tx.PutFilm(model.Film{ID: "F1"})
		tx.PutFilm(model.Film{ID: "F2"})
		return nil
	}))
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		films, err := tx.FilmsByID(ctx, []string{"F2", "missing", "F1", "F2"})
		require.NoError(t, err)
		assert.Len(t, films, 2)
		return nil
	}))
}

func TestBackoffIsBounded(t *testing.T) {
	s := NewMemoryStore(Options{MaxAttempts: 10, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond})
	first := s.backoff(1)
	assert.InDelta(t, float64(10*time.Millisecond), float64(first), float64(time.Millisecond)+1)
	for attempt := 1; attempt <= 40; attempt++ {
		assert.LessOrEqual(t, s.backoff(attempt), 50*time.Millisecond)
	}
}
