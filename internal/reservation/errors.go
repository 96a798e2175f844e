package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-booking/internal/repository"
)

// Kind classifies a failure so that callers can react to it without
// inspecting messages.
type Kind int

const (
	Internal Kind = iota
	InvalidArgument
	NotFound
	SeatsExhausted
	SeatTaken
	ConflictingSchedule
	TransientConflict
	Canceled // the caller gave up: context cancelled or deadline exceeded
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case NotFound:
		return "not found"
	case SeatsExhausted:
		return "seats exhausted"
	case SeatTaken:
		return "seat taken"
	case ConflictingSchedule:
		return "conflicting schedule"
	case TransientConflict:
		return "transient conflict"
	case Canceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by every coordinator operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" && e.Err == nil {
		return e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against another *Error of the same kind, which lets
// the sentinels below be used with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.  They carry only a kind.
var (
	ErrInvalidArgument     = &Error{Kind: InvalidArgument}
	ErrNotFound            = &Error{Kind: NotFound}
	ErrSeatsExhausted      = &Error{Kind: SeatsExhausted}
	ErrSeatTaken           = &Error{Kind: SeatTaken}
	ErrConflictingSchedule = &Error{Kind: ConflictingSchedule}
	ErrTransientConflict   = &Error{Kind: TransientConflict}
	ErrCanceled            = &Error{Kind: Canceled}
)

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func newError(kind Kind, format string, args ...any) *Error {
	return Errorf(kind, format, args...)
}

func invalid(format string, args ...any) *Error {
	return newError(InvalidArgument, format, args...)
}

func notFound(format string, args ...any) *Error {
	return newError(NotFound, format, args...)
}

// KindOf returns the kind of err.  Store failures that are not already
// typed map to Canceled, NotFound, TransientConflict or Internal.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Canceled
	case errors.Is(err, repository.ErrNotFound):
		return NotFound
	case errors.Is(err, repository.ErrRetriesExhausted), errors.Is(err, repository.ErrConflict):
		return TransientConflict
	}
	return Internal
}

// Wrap turns whatever came out of a transaction into an *Error.  Errors
// that are already typed pass through unchanged.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindOf(err), Msg: op, Err: err}
}
