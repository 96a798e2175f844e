package reservation

import (
	"context"
	"errors"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// Ledger accumulates seat inventory changes for the screenings one
// transaction touches.  It never writes on its own: Flush stages the
// adjusted screenings once every check has passed, so a rejected operation
// leaves SeatsRemaining untouched.
type Ledger struct {
	entries map[string]*ledgerEntry
	order   []string
}

type ledgerEntry struct {
	screening *model.Screening // nil when the screening does not exist
	delta     int
	touched   bool
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*ledgerEntry)}
}

// Load reads a screening into the ledger.  A missing screening is tracked
// as absent and reported with repository.ErrNotFound.
func (l *Ledger) Load(ctx context.Context, tx *repository.Tx, screeningID string) (*model.Screening, error) {
	if e, ok := l.entries[screeningID]; ok {
		if e.screening == nil {
			return nil, repository.ErrNotFound
		}
		return e.screening, nil
	}
	s, err := tx.Screening(ctx, screeningID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	l.entries[screeningID] = &ledgerEntry{screening: s}
	l.order = append(l.order, screeningID)
	if s == nil {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

// Remaining returns the seat count of a loaded screening including the
// changes recorded so far.
func (l *Ledger) Remaining(screeningID string) int {
	e, ok := l.entries[screeningID]
	if !ok || e.screening == nil {
		return 0
	}
	return e.screening.SeatsRemaining + e.delta
}

// Reserve takes one seat from a loaded screening.
func (l *Ledger) Reserve(screeningID string) error {
	e, ok := l.entries[screeningID]
	if !ok || e.screening == nil {
		return notFound("ScreeningID %s not found", screeningID)
	}
	if e.screening.SeatsRemaining+e.delta <= 0 {
		return newError(SeatsExhausted, "no seats available in screening %s", screeningID)
	}
	e.delta--
	return nil
}

// Release gives one seat back.  Releasing a seat of a screening that no
// longer exists is a no-op.
func (l *Ledger) Release(screeningID string) {
	e, ok := l.entries[screeningID]
	if !ok || e.screening == nil {
		return
	}
	e.delta++
}

// Reassign moves a seat between screenings.  The new seat is reserved
// first, so a full target screening leaves the old seat held.
func (l *Ledger) Reassign(oldID, newID string) error {
	if err := l.Reserve(newID); err != nil {
		return err
	}
	l.Release(oldID)
	return nil
}

// Touch makes Flush rewrite a screening even when its count is unchanged.
// Transactions that touch the same screening then conflict with each other.
func (l *Ledger) Touch(screeningID string) {
	if e, ok := l.entries[screeningID]; ok && e.screening != nil {
		e.touched = true
	}
}

// Flush stages every changed or touched screening.
func (l *Ledger) Flush(tx *repository.Tx) {
	for _, id := range l.order {
		e := l.entries[id]
		if e.screening == nil || (e.delta == 0 && !e.touched) {
			continue
		}
		s := *e.screening
		s.SeatsRemaining += e.delta
		tx.PutScreening(s)
	}
}
