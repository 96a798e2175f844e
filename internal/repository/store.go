package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Collection names a family of documents.  The names match the entity
// kinds used when minting identifiers.
type Collection string

const (
	Bookings      Collection = "Booking"
	Screenings    Collection = "Screening"
	Tickets       Collection = "Ticket"
	Films         Collection = "Film"
	Theatres      Collection = "Theatre"
	TicketTypes   Collection = "TicketType"
	Counters      Collection = "counters"
	ScheduleSlots Collection = "schedule_slots"
)

// Counter is the persisted state of a sequence: the last value minted for
// an entity kind.
type Counter struct {
	Kind  string
	Count int64
}

// ScheduleSlot guards one (theatre, date) bucket of screenings.  Its
// revision is bumped whenever a screening enters or leaves the bucket.
type ScheduleSlot struct {
	ID       string
	Revision int64
}

type docKey struct {
	coll Collection
	id   string
}

func (k docKey) String() string { return string(k.coll) + "/" + k.id }

// mutation is a staged write.  A nil doc with del set removes the document.
type mutation struct {
	key docKey
	doc any
	del bool
}

// versioned is a document together with the version it was read at.
type versioned struct {
	key     docKey
	doc     any
	version int64
}

// filter restricts a query to documents whose field equals value.
type filter struct {
	field string
	value string
}

type query struct {
	coll    Collection
	filters []filter
}

// engine is a storage backend able to run optimistic transactions.
type engine interface {
	begin(ctx context.Context) (session, error)
}

// session is one attempt of a transaction against an engine.
type session interface {
	// load returns ErrNotFound together with the tombstone version (0 if
	// the document never existed) when the document is absent.
	load(ctx context.Context, key docKey) (any, int64, error)
	loadMany(ctx context.Context, coll Collection, ids []string) ([]versioned, error)
	query(ctx context.Context, q query) ([]versioned, error)
	commit(ctx context.Context, reads map[docKey]int64, writes []mutation) error
	rollback()
}

// Options tunes the retry loop of RunTransaction.
type Options struct {
	MaxAttempts    int           // total attempts including the first one
	InitialBackoff time.Duration // wait before the second attempt
	MaxBackoff     time.Duration // upper bound for a single wait
	Logger         *zap.Logger
}

// DefaultOptions returns the retry settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    5,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxAttempts < 1 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = def.InitialBackoff
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Store runs transactions against a storage engine and retries them when
// they lose an optimistic race.
type Store struct {
	engine engine
	opts   Options
	log    *zap.Logger
}

func newStore(e engine, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{engine: e, opts: opts, log: opts.Logger}
}

// RunTransaction executes fn inside a transaction and commits its staged
// writes.  When fn returns an error the transaction is discarded and the
// error is returned unchanged, so no partial write is ever visible.
// Conflicts are retried with exponential backoff up to MaxAttempts; after
// that ErrRetriesExhausted is returned.  fn may run several times and must
// not have side effects outside the transaction.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		lastErr = err
		if attempt == s.opts.MaxAttempts {
			break
		}
		wait := s.backoff(attempt)
		s.log.Debug("transaction conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, s.opts.MaxAttempts, lastErr)
}

func (s *Store) attempt(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	sess, err := s.engine.begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			sess.rollback()
		}
	}()
	tx := newTx(sess)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := sess.commit(ctx, tx.reads, tx.writes); err != nil {
		return err
	}
	committed = true
	return nil
}

// backoff returns InitialBackoff * 2^(attempt-1) with ±10% jitter, capped
// at MaxBackoff.
func (s *Store) backoff(attempt int) time.Duration {
	d := float64(s.opts.InitialBackoff) * float64(uint64(1)<<min(attempt-1, 30))
	d += d * 0.1 * (rand.Float64()*2 - 1)
	if d > float64(s.opts.MaxBackoff) {
		d = float64(s.opts.MaxBackoff)
	}
	return time.Duration(d)
}
