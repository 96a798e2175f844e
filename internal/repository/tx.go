package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// Tx is a single attempt of a transaction.  Reads go to the engine and
// record the observed document versions; writes are only staged and reach
// the engine when the surrounding RunTransaction commits.  Once a write
// has been staged, further reads fail with ErrReadAfterWrite.
type Tx struct {
	sess   session
	reads  map[docKey]int64
	writes []mutation
	staged map[docKey]int // index into writes
}

func newTx(sess session) *Tx {
	return &Tx{
		sess:   sess,
		reads:  make(map[docKey]int64),
		staged: make(map[docKey]int),
	}
}

// observe records the version a document was read at.  Reading the same
// document twice at different versions means the engine does not offer a
// stable snapshot and another transaction got in between.
func (tx *Tx) observe(key docKey, version int64) error {
	if prev, ok := tx.reads[key]; ok && prev != version {
		return fmt.Errorf("%w: %s changed during transaction", ErrConflict, key)
	}
	tx.reads[key] = version
	return nil
}

func (tx *Tx) readable() error {
	if len(tx.writes) > 0 {
		return ErrReadAfterWrite
	}
	return nil
}

func (tx *Tx) stage(m mutation) {
	if i, ok := tx.staged[m.key]; ok {
		tx.writes[i] = m
		return
	}
	tx.staged[m.key] = len(tx.writes)
	tx.writes = append(tx.writes, m)
}

func get[T any](ctx context.Context, tx *Tx, coll Collection, id string) (*T, error) {
	if err := tx.readable(); err != nil {
		return nil, err
	}
	key := docKey{coll: coll, id: id}
	doc, version, err := tx.sess.load(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if oerr := tx.observe(key, version); oerr != nil {
		return nil, oerr
	}
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", coll, id, err)
	}
	v, ok := doc.(T)
	if !ok {
		return nil, fmt.Errorf("repository: %s holds %T", key, doc)
	}
	return &v, nil
}

func collect[T any](tx *Tx, docs []versioned) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		if err := tx.observe(d.key, d.version); err != nil {
			return nil, err
		}
		v, ok := d.doc.(T)
		if !ok {
			return nil, fmt.Errorf("repository: %s holds %T", d.key, d.doc)
		}
		out = append(out, v)
	}
	return out, nil
}

func find[T any](ctx context.Context, tx *Tx, q query) ([]T, error) {
	if err := tx.readable(); err != nil {
		return nil, err
	}
	docs, err := tx.sess.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return collect[T](tx, docs)
}

func getMany[T any](ctx context.Context, tx *Tx, coll Collection, ids []string) ([]T, error) {
	if err := tx.readable(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []T{}, nil
	}
	docs, err := tx.sess.loadMany(ctx, coll, ids)
	if err != nil {
		return nil, err
	}
	return collect[T](tx, docs)
}

// Booking returns the booking with the given id or ErrNotFound.
func (tx *Tx) Booking(ctx context.Context, id string) (*model.Booking, error) {
	return get[model.Booking](ctx, tx, Bookings, id)
}

// Screening returns the screening with the given id or ErrNotFound.
func (tx *Tx) Screening(ctx context.Context, id string) (*model.Screening, error) {
	return get[model.Screening](ctx, tx, Screenings, id)
}

// Ticket returns the ticket with the given id or ErrNotFound.
func (tx *Tx) Ticket(ctx context.Context, id string) (*model.Ticket, error) {
	return get[model.Ticket](ctx, tx, Tickets, id)
}

// Film returns the film with the given id or ErrNotFound.
func (tx *Tx) Film(ctx context.Context, id string) (*model.Film, error) {
	return get[model.Film](ctx, tx, Films, id)
}

// Theatre returns the theatre with the given id or ErrNotFound.
func (tx *Tx) Theatre(ctx context.Context, id string) (*model.Theatre, error) {
	return get[model.Theatre](ctx, tx, Theatres, id)
}

// TicketType returns the ticket type with the given id or ErrNotFound.
func (tx *Tx) TicketType(ctx context.Context, id string) (*model.TicketType, error) {
	return get[model.TicketType](ctx, tx, TicketTypes, id)
}

// Counter returns the last value minted for kind, or 0 when nothing was
// minted yet.  The read is recorded even when the counter is absent, so
// two transactions minting the first value still conflict.
func (tx *Tx) Counter(ctx context.Context, kind string) (int64, error) {
	c, err := get[Counter](ctx, tx, Counters, kind)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Count, nil
}

// ScheduleSlot returns the current revision of a schedule slot (0 when the
// slot was never touched).
func (tx *Tx) ScheduleSlot(ctx context.Context, id string) (int64, error) {
	s, err := get[ScheduleSlot](ctx, tx, ScheduleSlots, id)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.Revision, nil
}

// ScreeningsOn returns the screenings scheduled in a theatre on a date.
func (tx *Tx) ScreeningsOn(ctx context.Context, theatreID, date string) ([]model.Screening, error) {
	return find[model.Screening](ctx, tx, query{coll: Screenings, filters: []filter{
		{field: "TheatreID", value: theatreID},
		{field: "Date", value: date},
	}})
}

// ScreeningsInTheatre returns every screening hosted by a theatre.
func (tx *Tx) ScreeningsInTheatre(ctx context.Context, theatreID string) ([]model.Screening, error) {
	return find[model.Screening](ctx, tx, query{coll: Screenings, filters: []filter{{field: "TheatreID", value: theatreID}}})
}

// ScreeningsForFilm returns every screening of a film.
func (tx *Tx) ScreeningsForFilm(ctx context.Context, filmID string) ([]model.Screening, error) {
	return find[model.Screening](ctx, tx, query{coll: Screenings, filters: []filter{{field: "FilmID", value: filmID}}})
}

// TicketsForScreening returns the live tickets of a screening.
func (tx *Tx) TicketsForScreening(ctx context.Context, screeningID string) ([]model.Ticket, error) {
	return find[model.Ticket](ctx, tx, query{coll: Tickets, filters: []filter{{field: "ScreeningID", value: screeningID}}})
}

func (tx *Tx) Bookings(ctx context.Context) ([]model.Booking, error) {
	return find[model.Booking](ctx, tx, query{coll: Bookings})
}

func (tx *Tx) Screenings(ctx context.Context) ([]model.Screening, error) {
	return find[model.Screening](ctx, tx, query{coll: Screenings})
}

func (tx *Tx) Tickets(ctx context.Context) ([]model.Ticket, error) {
	return find[model.Ticket](ctx, tx, query{coll: Tickets})
}

func (tx *Tx) Films(ctx context.Context) ([]model.Film, error) {
	return find[model.Film](ctx, tx, query{coll: Films})
}

func (tx *Tx) Theatres(ctx context.Context) ([]model.Theatre, error) {
	return find[model.Theatre](ctx, tx, query{coll: Theatres})
}

func (tx *Tx) TicketTypes(ctx context.Context) ([]model.TicketType, error) {
	return find[model.TicketType](ctx, tx, query{coll: TicketTypes})
}

// FilmsByID batch-loads films in one round trip.  Unknown ids are skipped.
func (tx *Tx) FilmsByID(ctx context.Context, ids []string) ([]model.Film, error) {
	return getMany[model.Film](ctx, tx, Films, ids)
}

// TheatresByID batch-loads theatres in one round trip.  Unknown ids are skipped.
func (tx *Tx) TheatresByID(ctx context.Context, ids []string) ([]model.Theatre, error) {
	return getMany[model.Theatre](ctx, tx, Theatres, ids)
}

// TicketTypesByID batch-loads ticket types in one round trip.  Unknown ids are skipped.
func (tx *Tx) TicketTypesByID(ctx context.Context, ids []string) ([]model.TicketType, error) {
	return getMany[model.TicketType](ctx, tx, TicketTypes, ids)
}

// Staged writes.  None of these touch the engine until commit.

func (tx *Tx) PutBooking(b model.Booking) { tx.put(Bookings, b.ID, b) }

func (tx *Tx) PutScreening(s model.Screening) { tx.put(Screenings, s.ID, s) }

func (tx *Tx) PutTicket(t model.Ticket) { tx.put(Tickets, t.ID, t) }

func (tx *Tx) PutFilm(f model.Film) { tx.put(Films, f.ID, f) }

func (tx *Tx) PutTheatre(t model.Theatre) { tx.put(Theatres, t.ID, t) }

func (tx *Tx) PutTicketType(t model.TicketType) { tx.put(TicketTypes, t.ID, t) }

func (tx *Tx) PutCounter(kind string, count int64) {
	tx.put(Counters, kind, Counter{Kind: kind, Count: count})
}

func (tx *Tx) PutScheduleSlot(id string, revision int64) {
	tx.put(ScheduleSlots, id, ScheduleSlot{ID: id, Revision: revision})
}

func (tx *Tx) DeleteBooking(id string) { tx.remove(Bookings, id) }

func (tx *Tx) DeleteScreening(id string) { tx.remove(Screenings, id) }

func (tx *Tx) DeleteTicket(id string) { tx.remove(Tickets, id) }

func (tx *Tx) DeleteFilm(id string) { tx.remove(Films, id) }

func (tx *Tx) DeleteTheatre(id string) { tx.remove(Theatres, id) }

func (tx *Tx) DeleteTicketType(id string) { tx.remove(TicketTypes, id) }

func (tx *Tx) put(coll Collection, id string, doc any) {
	tx.stage(mutation{key: docKey{coll: coll, id: id}, doc: doc})
}

func (tx *Tx) remove(coll Collection, id string) {
	tx.stage(mutation{key: docKey{coll: coll, id: id}, del: true})
}
