// Package memory provides the in-memory Store used by tests and dry runs.
// It mirrors the postgres store's matching and update semantics without any
// backing service.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/adjudex/adjudex/internal/storage"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
)

// Store is an in-memory storage.Store. Safe for concurrent readers and
// writers within one process.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*storage.Auction
	byHash map[string]string // identity hash -> id
	byURL  map[string]string // listing URL -> id
	runs   []auctions.RunRecord
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		byID:   make(map[string]*storage.Auction),
		byHash: make(map[string]string),
		byURL:  make(map[string]string),
	}
}

// Upsert implements storage.Store.
func (s *Store) Upsert(_ context.Context, rec *auctions.Record) (storage.UpsertOutcome, error) {
	if rec == nil {
		return storage.Inserted, fmt.Errorf("upsert: %w", errors.New("nil record"))
	}
	rec.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := utc.Now()

	// identity hash match takes precedence over URL match
	id, ok := s.byHash[rec.IdentityHash]
	if !ok && rec.URL != "" {
		id, ok = s.byURL[rec.URL]
	}
	if ok {
		stored := s.byID[id]
		storage.ApplyUpdate(stored, rec, now)
		return storage.Updated, nil
	}

	a := &storage.Auction{
		ID:          uuid.NewString(),
		Record:      cloneRecord(rec),
		Geohash:     rec.Geohash(),
		FirstSeenAt: now,
		UpdatedAt:   now,
	}
	s.byID[a.ID] = a
	s.byHash[a.IdentityHash] = a.ID
	if a.URL != "" {
		s.byURL[a.URL] = a.ID
	}
	return storage.Inserted, nil
}

// MissingCoordinates implements storage.Store. Results are ordered oldest
// first by first-seen time, id as tie-break, so the geocoding pass is
// deterministic.
func (s *Store) MissingCoordinates(_ context.Context, limit int) ([]storage.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.Auction
	for _, a := range s.byID {
		if !a.HasCoordinates() {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b storage.Auction) int {
		if c := a.FirstSeenAt.Compare(b.FirstSeenAt.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetCoordinates implements storage.Store.
func (s *Store) SetCoordinates(_ context.Context, id string, lat, lon float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("auction %s: %w", id, errors.ErrNotFound)
	}
	a.Latitude = &lat
	a.Longitude = &lon
	a.Geohash = a.Record.Geohash()
	a.UpdatedAt = utc.Now()
	return nil
}

// SaveRun implements storage.Store.
func (s *Store) SaveRun(_ context.Context, rec auctions.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.runs {
		if r.RunID == rec.RunID && r.Source == rec.Source {
			s.runs[i] = rec
			return nil
		}
	}
	s.runs = append(s.runs, rec)
	return nil
}

// RecentRuns implements storage.Store.
func (s *Store) RecentRuns(_ context.Context, limit int) ([]auctions.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.runs)
	slices.SortFunc(out, func(a, b auctions.RunRecord) int {
		return b.StartedAt.Compare(a.StartedAt.Time)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements storage.Store.
func (s *Store) Close() error { return nil }

// Len returns the number of stored auctions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Get returns a copy of one stored auction by id.
func (s *Store) Get(id string) (storage.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return storage.Auction{}, false
	}
	return *a, true
}

// GetByURL returns a copy of one stored auction by listing URL.
func (s *Store) GetByURL(url string) (storage.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[url]
	if !ok {
		return storage.Auction{}, false
	}
	return *s.byID[id], true
}

func cloneRecord(r *auctions.Record) auctions.Record {
	c := *r
	c.VisitDates = slices.Clone(r.VisitDates)
	c.Photos = slices.Clone(r.Photos)
	c.Documents = slices.Clone(r.Documents)
	c.ContributingSources = slices.Clone(r.ContributingSources)
	return c
}
