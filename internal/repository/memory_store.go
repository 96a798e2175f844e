package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// memoryEngine keeps every document in process memory.  Versions come from
// a single clock, so a document that is deleted and re-created never
// returns to a version a concurrent reader has already seen.
type memoryEngine struct {
	mu       sync.RWMutex
	docs     map[Collection]map[string]any
	versions map[docKey]int64
	clock    int64
}

// NewMemoryStore returns a Store backed by process memory.  It is used by
// tests and by the server when STORE_BACKEND=memory.
func NewMemoryStore(opts Options) *Store {
	return newStore(&memoryEngine{
		docs:     make(map[Collection]map[string]any),
		versions: make(map[docKey]int64),
	}, opts)
}

func (e *memoryEngine) begin(ctx context.Context) (session, error) {
	return &memorySession{e: e}, nil
}

type memorySession struct {
	e *memoryEngine
}

func (s *memorySession) load(ctx context.Context, key docKey) (any, int64, error) {
	s.e.mu.RLock()
	defer s.e.mu.RUnlock()
	v := s.e.versions[key]
	doc, ok := s.e.docs[key.coll][key.id]
	if !ok {
		return nil, v, ErrNotFound
	}
	return doc, v, nil
}

func (s *memorySession) loadMany(ctx context.Context, coll Collection, ids []string) ([]versioned, error) {
	s.e.mu.RLock()
	defer s.e.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	out := make([]versioned, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		doc, ok := s.e.docs[coll][id]
		if !ok {
			continue
		}
		key := docKey{coll: coll, id: id}
		out = append(out, versioned{key: key, doc: doc, version: s.e.versions[key]})
	}
	return out, nil
}

func (s *memorySession) query(ctx context.Context, q query) ([]versioned, error) {
	s.e.mu.RLock()
	defer s.e.mu.RUnlock()
	var out []versioned
	for id, doc := range s.e.docs[q.coll] {
		match := true
		for _, f := range q.filters {
			v, err := fieldValue(doc, f.field)
			if err != nil {
				return nil, err
			}
			if v != f.value {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		key := docKey{coll: q.coll, id: id}
		out = append(out, versioned{key: key, doc: doc, version: s.e.versions[key]})
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].key.id, out[j].key.id) })
	return out, nil
}

// commit validates every recorded read against the current versions and,
// when none moved, applies the writes as one step under the write lock.
func (s *memorySession) commit(ctx context.Context, reads map[docKey]int64, writes []mutation) error {
	if len(writes) == 0 {
		return nil
	}
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	for key, seen := range reads {
		if s.e.versions[key] != seen {
			return fmt.Errorf("%w: %s", ErrConflict, key)
		}
	}
	for _, m := range writes {
		s.e.clock++
		s.e.versions[m.key] = s.e.clock
		if m.del {
			delete(s.e.docs[m.key.coll], m.key.id)
			continue
		}
		coll := s.e.docs[m.key.coll]
		if coll == nil {
			coll = make(map[string]any)
			s.e.docs[m.key.coll] = coll
		}
		coll[m.key.id] = m.doc
	}
	return nil
}

func (s *memorySession) rollback() {}

// fieldValue extracts the value of a filterable field from a document.
func fieldValue(doc any, field string) (string, error) {
	switch d := doc.(type) {
	case model.Screening:
		switch field {
		case "TheatreID":
			return d.TheatreID, nil
		case "Date":
			return d.Date, nil
		case "FilmID":
			return d.FilmID, nil
		}
	case model.Ticket:
		switch field {
		case "ScreeningID":
			return d.ScreeningID, nil
		case "BookingID":
			return d.BookingID, nil
		}
	}
	return "", fmt.Errorf("repository: cannot filter %T on %s", doc, field)
}

// lessID orders identifiers so that Booking2 sorts before Booking10.
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
