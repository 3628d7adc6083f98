// Package termstore persists the renderings entries of biblical terms.
//
// A Store is the durable copy. A labeling session works on a Snapshot and
// writes changed entries back.
package termstore

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/renderings"
	"github.com/FocuswithJustin/MapLabeler/internal/logging"
)

// Store holds one renderings entry per term ID.
type Store interface {
	// Get returns a copy of the entry, or an error wrapping
	// apperrors.ErrNotFound.
	Get(ctx context.Context, termID string) (*renderings.Entry, error)
	// Put creates or replaces the entry, denials included.
	Put(ctx context.Context, termID string, entry *renderings.Entry) error
	// Delete removes the entry.
	Delete(ctx context.Context, termID string) error
	// List returns every term ID in sorted order.
	List(ctx context.Context) ([]string, error)
	// SetDenied adds or removes a denial of ref on an existing entry.
	SetDenied(ctx context.Context, termID, ref string, denied bool) error
	// Approve clears the guessed flag of an existing entry.
	Approve(ctx context.Context, termID string) error
}

// Snapshot loads every entry of store.
func Snapshot(ctx context.Context, store Store) (map[string]*renderings.Entry, error) {
	ids, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*renderings.Entry, len(ids))
	for _, id := range ids {
		e, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = e
	}
	return out, nil
}

// WriteAll puts every entry of entries into store.
func WriteAll(ctx context.Context, store Store, entries map[string]*renderings.Entry) error {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := store.Put(ctx, id, entries[id]); err != nil {
			return err
		}
	}
	return nil
}

func notFound(termID string) error {
	return apperrors.NewNotFound("term", termID)
}

func validateID(termID string) error {
	if termID == "" {
		return apperrors.NewValidation("termID", "must not be empty")
	}
	return nil
}

// MemoryStore is a Store kept in memory. The zero value is not usable; call
// NewMemoryStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*renderings.Entry
}

// NewMemoryStore returns a store holding copies of entries.
func NewMemoryStore(entries map[string]*renderings.Entry) *MemoryStore {
	s := &MemoryStore{entries: make(map[string]*renderings.Entry, len(entries))}
	for id, e := range entries {
		if e != nil {
			s.entries[id] = e.Clone()
		}
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, termID string) (*renderings.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[termID]
	if !ok {
		return nil, notFound(termID)
	}
	return e.Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, termID string, entry *renderings.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateID(termID); err != nil {
		return err
	}
	if entry == nil {
		return apperrors.NewValidation("entry", "must not be nil")
	}
	s.mu.Lock()
	s.entries[termID] = entry.Clone()
	s.mu.Unlock()
	logging.StoreEvent("put", termID, "store", "memory")
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, termID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[termID]; !ok {
		return notFound(termID)
	}
	delete(s.entries, termID)
	logging.StoreEvent("delete", termID, "store", "memory")
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SetDenied implements Store.
func (s *MemoryStore) SetDenied(ctx context.Context, termID, ref string, denied bool) error {
	return s.update(ctx, termID, "set_denied", func(e *renderings.Entry) {
		if denied {
			e.Deny(ref)
		} else {
			e.Undeny(ref)
		}
	})
}

// Approve implements Store.
func (s *MemoryStore) Approve(ctx context.Context, termID string) error {
	return s.update(ctx, termID, "approve", func(e *renderings.Entry) {
		e.IsGuessed = false
	})
}

func (s *MemoryStore) update(ctx context.Context, termID, op string, fn func(*renderings.Entry)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[termID]
	if !ok {
		return notFound(termID)
	}
	fn(e)
	logging.StoreEvent(op, termID, "store", "memory")
	return nil
}
