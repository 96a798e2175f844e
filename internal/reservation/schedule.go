package reservation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// BufferMinutes is the gap kept free after every screening in a theatre.
const BufferMinutes = 60

// ParseClock converts a 24h "HH:MM" time into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("time %q has an invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q has an invalid minute", s)
	}
	return h*60 + m, nil
}

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Block returns the interval a screening occupies: its running time plus
// the buffer.
func Block(startTime string, duration int) (Interval, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: start + duration + BufferMinutes}, nil
}

// Overlaps reports whether two half-open intervals share a minute.  A block
// that starts exactly where another ends does not overlap it.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// SlotKey names the schedule slot of a theatre on a date.
func SlotKey(theatreID, date string) string {
	return theatreID + "|" + date
}

// Schedule is the set of screenings sharing one theatre and date, read
// inside a transaction together with the durations of their films.
type Schedule struct {
	TheatreID  string
	Date       string
	revision   int64
	screenings []model.Screening
	durations  map[string]int
}

// ReadSchedule loads the slot revision, the screenings and the durations of
// their films.  Films are fetched in one batch.
func ReadSchedule(ctx context.Context, tx *repository.Tx, theatreID, date string) (*Schedule, error) {
	rev, err := tx.ScheduleSlot(ctx, SlotKey(theatreID, date))
	if err != nil {
		return nil, err
	}
	screenings, err := tx.ScreeningsOn(ctx, theatreID, date)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(screenings))
	for _, s := range screenings {
		ids = append(ids, s.FilmID)
	}
	films, err := tx.FilmsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	durations := make(map[string]int, len(films))
	for _, f := range films {
		durations[f.ID] = f.Duration
	}
	return &Schedule{
		TheatreID:  theatreID,
		Date:       date,
		revision:   rev,
		screenings: screenings,
		durations:  durations,
	}, nil
}

// Check returns a ConflictingSchedule error when a screening starting at
// startTime and running duration minutes would overlap another screening
// of the schedule.  excludeID skips the screening being moved.  A screening
// whose film or start time cannot be resolved blocks the check.
func (s *Schedule) Check(startTime string, duration int, excludeID string) error {
	proposed, err := Block(startTime, duration)
	if err != nil {
		return invalid("StartTime: %v", err)
	}
	for _, other := range s.screenings {
		if other.ID == excludeID {
			continue
		}
		d, ok := s.durations[other.FilmID]
		if !ok {
			return newError(ConflictingSchedule,
				"cannot verify schedule: film %s of screening %s not found", other.FilmID, other.ID)
		}
		existing, err := Block(other.StartTime, d)
		if err != nil {
			return newError(ConflictingSchedule,
				"cannot verify schedule: screening %s: %v", other.ID, err)
		}
		if proposed.Overlaps(existing) {
			return newError(ConflictingSchedule,
				"screening at %s conflicts with screening %s at %s in theatre %s on %s",
				startTime, other.ID, other.StartTime, s.TheatreID, s.Date)
		}
	}
	return nil
}

// Bump stages a new slot revision so that transactions that read the slot
// concurrently fail to commit.
func (s *Schedule) Bump(tx *repository.Tx) {
	s.revision++
	tx.PutScheduleSlot(SlotKey(s.TheatreID, s.Date), s.revision)
}

// ReadSlot reads only the slot revision of a theatre and date.  It is used
// for the bucket a screening leaves, where no conflict check is needed.
func ReadSlot(ctx context.Context, tx *repository.Tx, theatreID, date string) (*Schedule, error) {
	rev, err := tx.ScheduleSlot(ctx, SlotKey(theatreID, date))
	if err != nil {
		return nil, err
	}
	return &Schedule{TheatreID: theatreID, Date: date, revision: rev}, nil
}
