package historyclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finlog/backend/internal/ledger"
	"github.com/finlog/backend/internal/logger"
	"github.com/finlog/backend/internal/models"
	"github.com/finlog/backend/internal/services"
)

// ErrPendingAppend is returned when a second append starts before the first settles.
var ErrPendingAppend = errors.New("another history append is in flight")

// API is the subset of Client used by Store.
type API interface {
	List(ctx context.Context, f ledger.Filter) ([]models.ActionRecord, error)
	Record(ctx context.Context, in services.RecordInput) (*models.ActionRecord, error)
	Undo(ctx context.Context, id uint) (*UndoResponse, error)
}

// Store caches the full ledger once and derives the filtered view on read.
type Store struct {
	api API
	now func() time.Time

	mu      sync.RWMutex
	records []models.ActionRecord
	filter  ledger.Filter
	pending *services.RecordInput
	stale   bool
	// ids removed locally while a Refresh is in flight; nil otherwise
	removedDuringRefresh map[uint]struct{}
}

// NewStore returns an empty, stale Store; call Refresh to load it.
func NewStore(api API) *Store {
	return &Store{api: api, now: time.Now, stale: true}
}

// Refresh replaces the cache with the server's full ledger. Records committed
// or undone locally while the fetch was in flight are carried over.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.removedDuringRefresh = map[uint]struct{}{}
	s.mu.Unlock()

	fetched, err := s.api.List(ctx, ledger.Filter{DateRange: ledger.RangeAll})

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removedDuringRefresh
	s.removedDuringRefresh = nil
	if err != nil {
		return err
	}

	var newest uint
	merged := make([]models.ActionRecord, 0, len(fetched))
	for _, r := range fetched {
		if r.ID > newest {
			newest = r.ID
		}
		if _, gone := removed[r.ID]; !gone {
			merged = append(merged, r)
		}
	}
	// ids grow monotonically, so anything newer than the fetch was
	// committed locally after the server answered.
	for _, r := range s.records {
		if r.ID > newest {
			merged = append(merged, r)
		}
	}
	ledger.Sort(merged)
	s.records = merged
	s.stale = false
	return nil
}

// Visible returns the cached records that pass the current filter.
func (s *Store) Visible() []models.ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter.Apply(s.records, s.now())
}

// Filter returns the active filter.
func (s *Store) Filter() ledger.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SetFilter switches the view. An invalid filter is rejected and the current
// one stays in place.
func (s *Store) SetFilter(f ledger.Filter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	return nil
}

// Stale reports whether the cache may disagree with the server.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// Pending reports whether an append is staged but not yet confirmed.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending != nil
}

// Record stages in, sends it, and commits the server's copy to the head of
// the cache. Nothing becomes visible unless the server confirms. A failure
// that may have reached the server marks the cache stale.
func (s *Store) Record(ctx context.Context, in services.RecordInput) (*models.ActionRecord, error) {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, ErrPendingAppend
	}
	staged := in
	s.pending = &staged
	s.mu.Unlock()

	rec, err := s.api.Record(ctx, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			s.stale = true
		}
		logger.Log().WithError(err).Warn("history append discarded")
		return nil, err
	}

	// a Refresh that ran during the call may already hold the record
	if !s.contains(rec.ID) {
		s.records = append([]models.ActionRecord{*rec}, s.records...)
		ledger.Sort(s.records)
	}
	return rec, nil
}

// Undo asks the server to reverse id and drops the entry once confirmed. A
// 404 also drops it since the record no longer exists server-side.
func (s *Store) Undo(ctx context.Context, id uint) (*UndoResponse, error) {
	resp, err := s.api.Undo(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			s.remove(id)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			s.mu.Lock()
			s.stale = true
			s.mu.Unlock()
		}
		return nil, err
	}
	s.remove(id)
	return resp, nil
}

func (s *Store) contains(id uint) bool {
	for _, r := range s.records {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) remove(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removedDuringRefresh != nil {
		s.removedDuringRefresh[id] = struct{}{}
	}
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			return
		}
	}
}
