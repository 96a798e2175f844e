package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// MySQL error numbers that mean "another transaction won".
const (
	errLockDeadlock = 1213
	errLockWait     = 1205
	errDupEntry     = 1062
)

type scanner interface {
	Scan(dest ...any) error
}

// table maps a collection onto a MySQL table.  Every table carries a
// version column that is bumped on each write.
type table struct {
	name   string
	key    string
	cols   []string          // non-key columns, in args/scan order
	fields map[string]string // filterable document field -> column
	scan   func(row scanner) (id string, doc any, version int64, err error)
	args   func(doc any) []any
}

func (t table) selectList() string {
	return t.key + ", " + strings.Join(t.cols, ", ") + ", version"
}

var tables = map[Collection]table{
	Bookings: {
		name: "bookings",
		key:  "id",
		cols: []string{"no_of_seats", "cost", "email_address"},
		scan: func(row scanner) (string, any, int64, error) {
			var b model.Booking
			var v int64
			err := row.Scan(&b.ID, &b.NoOfSeats, &b.Cost, &b.EmailAddress, &v)
			return b.ID, b, v, err
		},
		args: func(doc any) []any {
			b := doc.(model.Booking)
			return []any{b.NoOfSeats, b.Cost, b.EmailAddress}
		},
	},
	Screenings: {
		name: "screenings",
		key:  "id",
		cols: []string{"film_id", "theatre_id", "show_date", "start_time", "seats_remaining"},
		fields: map[string]string{
			"FilmID":    "film_id",
			"TheatreID": "theatre_id",
			"Date":      "show_date",
		},
		scan: func(row scanner) (string, any, int64, error) {
			var s model.Screening
			var v int64
			err := row.Scan(&s.ID, &s.FilmID, &s.TheatreID, &s.Date, &s.StartTime, &s.SeatsRemaining, &v)
			return s.ID, s, v, err
		},
		args: func(doc any) []any {
			s := doc.(model.Screening)
			return []any{s.FilmID, s.TheatreID, s.Date, s.StartTime, s.SeatsRemaining}
		},
	},
	Tickets: {
		name: "tickets",
		key:  "id",
		cols: []string{"booking_id", "screening_id", "ticket_type_id", "seat_row", "seat_column"},
		fields: map[string]string{
			"BookingID":   "booking_id",
			"ScreeningID": "screening_id",
		},
		scan: func(row scanner) (string, any, int64, error) {
			var t model.Ticket
			var v int64
			err := row.Scan(&t.ID, &t.BookingID, &t.ScreeningID, &t.TicketTypeID, &t.SeatRow, &t.SeatColumn, &v)
			return t.ID, t, v, err
		},
		args: func(doc any) []any {
			t := doc.(model.Ticket)
			return []any{t.BookingID, t.ScreeningID, t.TicketTypeID, t.SeatRow, t.SeatColumn}
		},
	},
	Films: {
		name: "films",
		key:  "id",
		cols: []string{"name", "category", "genre", "duration", "trailer", "poster"},
		scan: func(row scanner) (string, any, int64, error) {
			var f model.Film
			var trailer, poster sql.NullString
			var v int64
			err := row.Scan(&f.ID, &f.Name, &f.Category, &f.Genre, &f.Duration, &trailer, &poster, &v)
			if trailer.Valid {
				f.Trailer = &trailer.String
			}
			if poster.Valid {
				f.Poster = &poster.String
			}
			return f.ID, f, v, err
		},
		args: func(doc any) []any {
			f := doc.(model.Film)
			return []any{f.Name, f.Category, f.Genre, f.Duration, f.Trailer, f.Poster}
		},
	},
	Theatres: {
		name: "theatres",
		key:  "id",
		cols: []string{"capacity", "seat_rows", "seat_columns"},
		scan: func(row scanner) (string, any, int64, error) {
			var t model.Theatre
			var v int64
			err := row.Scan(&t.ID, &t.Capacity, &t.Rows, &t.Columns, &v)
			return t.ID, t, v, err
		},
		args: func(doc any) []any {
			t := doc.(model.Theatre)
			return []any{t.Capacity, t.Rows, t.Columns}
		},
	},
	TicketTypes: {
		name: "ticket_types",
		key:  "id",
		cols: []string{"cost"},
		scan: func(row scanner) (string, any, int64, error) {
			var t model.TicketType
			var v int64
			err := row.Scan(&t.ID, &t.Cost, &v)
			return t.ID, t, v, err
		},
		args: func(doc any) []any {
			return []any{doc.(model.TicketType).Cost}
		},
	},
	Counters: {
		name: "counters",
		key:  "kind",
		cols: []string{"last_value"},
		scan: func(row scanner) (string, any, int64, error) {
			var c Counter
			var v int64
			err := row.Scan(&c.Kind, &c.Count, &v)
			return c.Kind, c, v, err
		},
		args: func(doc any) []any {
			return []any{doc.(Counter).Count}
		},
	},
	ScheduleSlots: {
		name: "schedule_slots",
		key:  "slot_key",
		cols: []string{"revision"},
		scan: func(row scanner) (string, any, int64, error) {
			var s ScheduleSlot
			var v int64
			err := row.Scan(&s.ID, &s.Revision, &v)
			return s.ID, s, v, err
		},
		args: func(doc any) []any {
			return []any{doc.(ScheduleSlot).Revision}
		},
	},
}

func tableFor(coll Collection) (table, error) {
	t, ok := tables[coll]
	if !ok {
		return table{}, fmt.Errorf("repository: no table for collection %q", coll)
	}
	return t, nil
}

type mysqlEngine struct {
	db *sql.DB
}

// NewMySQLStore returns a Store persisting documents in MySQL.  The schema
// is created by database.Migrate.
func NewMySQLStore(db *sql.DB, opts Options) *Store {
	return newStore(&mysqlEngine{db: db}, opts)
}

func (e *mysqlEngine) begin(ctx context.Context) (session, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, classify(err)
	}
	return &mysqlSession{tx: tx}, nil
}

// mysqlSession reads from a consistent snapshot without taking locks.  The
// commit re-reads every recorded version with SELECT ... FOR UPDATE, so a
// row that moved since the snapshot fails the commit instead of being
// overwritten.
type mysqlSession struct {
	tx *sql.Tx
}

func (s *mysqlSession) load(ctx context.Context, key docKey) (any, int64, error) {
	t, err := tableFor(key.coll)
	if err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + t.selectList() + ` FROM ` + t.name + ` WHERE ` + t.key + ` = ?`
	_, doc, version, err := t.scan(s.tx.QueryRowContext(ctx, q, key.id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, classify(err)
	}
	return doc, version, nil
}

func (s *mysqlSession) loadMany(ctx context.Context, coll Collection, ids []string) ([]versioned, error) {
	t, err := tableFor(coll)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT ` + t.selectList() + ` FROM ` + t.name +
		` WHERE ` + t.key + ` IN (` + placeholders(len(ids)) + `)`
	return s.collect(ctx, coll, t, q, args...)
}

func (s *mysqlSession) query(ctx context.Context, q query) ([]versioned, error) {
	t, err := tableFor(q.coll)
	if err != nil {
		return nil, err
	}
	var where []string
	var args []any
	for _, f := range q.filters {
		col, ok := t.fields[f.field]
		if !ok {
			return nil, fmt.Errorf("repository: cannot filter %s on %s", q.coll, f.field)
		}
		where = append(where, col+" = ?")
		args = append(args, f.value)
	}
	stmt := `SELECT ` + t.selectList() + ` FROM ` + t.name
	if len(where) > 0 {
		stmt += ` WHERE ` + strings.Join(where, " AND ")
	}
	stmt += ` ORDER BY CHAR_LENGTH(` + t.key + `), ` + t.key
	return s.collect(ctx, q.coll, t, stmt, args...)
}

func (s *mysqlSession) collect(ctx context.Context, coll Collection, t table, q string, args ...any) ([]versioned, error) {
	rows, err := s.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []versioned
	for rows.Next() {
		id, doc, version, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, versioned{key: docKey{coll: coll, id: id}, doc: doc, version: version})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *mysqlSession) commit(ctx context.Context, reads map[docKey]int64, writes []mutation) error {
	if len(writes) == 0 {
		return classify(s.tx.Commit())
	}
	// Lock in a stable order to keep deadlocks between validators rare.
	keys := make([]docKey, 0, len(reads))
	for k := range reads {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		current, err := s.lockedVersion(ctx, k)
		if err != nil {
			return err
		}
		if current != reads[k] {
			return fmt.Errorf("%w: %s", ErrConflict, k)
		}
	}
	for _, m := range writes {
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return classify(s.tx.Commit())
}

func (s *mysqlSession) lockedVersion(ctx context.Context, key docKey) (int64, error) {
	t, err := tableFor(key.coll)
	if err != nil {
		return 0, err
	}
	var v int64
	q := `SELECT version FROM ` + t.name + ` WHERE ` + t.key + ` = ? FOR UPDATE`
	err = s.tx.QueryRowContext(ctx, q, key.id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return v, nil
}

func (s *mysqlSession) apply(ctx context.Context, m mutation) error {
	t, err := tableFor(m.key.coll)
	if err != nil {
		return err
	}
	if m.del {
		_, err := s.tx.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE `+t.key+` = ?`, m.key.id)
		return classify(err)
	}
	args := t.args(m.doc)
	sets := make([]string, 0, len(t.cols)+1)
	for _, c := range t.cols {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "version = version + 1")
	res, err := s.tx.ExecContext(ctx,
		`UPDATE `+t.name+` SET `+strings.Join(sets, ", ")+` WHERE `+t.key+` = ?`,
		append(append([]any{}, args...), m.key.id)...)
	if err != nil {
		return classify(err)
	}
	// version always changes, so an existing row is always counted.
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}
	// A plain insert lets every unique key, not only the primary key,
	// reject the row with a duplicate entry error.
	_, err = s.tx.ExecContext(ctx,
		`INSERT INTO `+t.name+` (`+t.key+`, `+strings.Join(t.cols, ", ")+`, version)`+
			` VALUES (`+placeholders(len(t.cols)+1)+`, 1)`,
		append([]any{m.key.id}, args...)...)
	return classify(err)
}

func (s *mysqlSession) rollback() {
	_ = s.tx.Rollback()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// classify maps lock and uniqueness failures onto ErrConflict so the
// transaction is retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errLockDeadlock, errLockWait, errDupEntry:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
