package reservation

import (
	"context"
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-booking/internal/repository"
)

// Entity kinds that get their identifiers from a counter.
const (
	KindBooking   = "Booking"
	KindScreening = "Screening"
	KindTicket    = "Ticket"
	KindTheatre   = "Theatre"
)

// Sequence is a counter read inside a transaction.  Values handed out by
// Next only exist if the transaction commits; an aborted transaction
// discards them together with everything else it staged.
type Sequence struct {
	kind  string
	count int64
}

// ReadSequence reads the counter of kind.  Call it together with the other
// reads of the transaction, before anything is staged.
func ReadSequence(ctx context.Context, tx *repository.Tx, kind string) (*Sequence, error) {
	n, err := tx.Counter(ctx, kind)
	if err != nil {
		return nil, err
	}
	return &Sequence{kind: kind, count: n}, nil
}

// Next stages the incremented counter and returns the new identifier.
// The first identifier of a kind ends in 1.
func (s *Sequence) Next(tx *repository.Tx) string {
	s.count++
	tx.PutCounter(s.kind, s.count)
	return FormatID(s.kind, s.count)
}

// NextID reads the counter of kind and mints one identifier.  It must be
// the last read of the transaction.
func NextID(ctx context.Context, tx *repository.Tx, kind string) (string, error) {
	seq, err := ReadSequence(ctx, tx, kind)
	if err != nil {
		return "", err
	}
	return seq.Next(tx), nil
}

// FormatID renders an identifier such as Booking12.
func FormatID(kind string, n int64) string {
	return kind + strconv.FormatInt(n, 10)
}

// ParseID returns the numeric part of an identifier minted for kind.
func ParseID(kind, id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, kind)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// CheckID rejects identifiers that do not carry the kind prefix.
func CheckID(kind, id string) error {
	if !strings.HasPrefix(id, kind) || len(id) == len(kind) {
		return invalid("invalid %sID format: %q", kind, id)
	}
	return nil
}
