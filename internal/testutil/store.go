package testutil

import (
	"context"
	"sort"
	"sync"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(ctx context.Context, item T, filter interface{}) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// CopyFunc returns a copy of an item that shares no mutable state with it
type CopyFunc[T any] func(item T) T

// InMemoryStore implements a generic in-memory store. Mutations made inside
// an InMemoryTxClient transaction are journaled and undone on rollback.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	copy  CopyFunc[T]
}

// NewInMemoryStore creates a new InMemoryStore. Items are copied on the way
// in and out when copyFn is set.
func NewInMemoryStore[T any](copyFn CopyFunc[T]) *InMemoryStore[T] {
	if copyFn == nil {
		copyFn = func(item T) T { return item }
	}
	return &InMemoryStore[T]{
		items: make(map[string]T),
		copy:  copyFn,
	}
}

// Create adds a new item to the store
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ierr.NewErrorf("item %s already exists", id).
			WithHint("Item already exists").
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[id] = s.copy(item)
	s.journal(ctx, func() {
		delete(s.items, id)
	})
	return nil
}

// Get retrieves an item by ID
func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return s.copy(item), nil
	}

	var zero T
	return zero, ierr.NewErrorf("item %s not found", id).
		WithHint("Item not found").
		Mark(ierr.ErrNotFound)
}

// Find returns copies of every item matching fn, unsorted and unpaginated
func (s *InMemoryStore[T]) Find(fn func(item T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []T
	for _, item := range s.items {
		if fn(item) {
			result = append(result, s.copy(item))
		}
	}
	return result
}

// List retrieves items based on filter
func (s *InMemoryStore[T]) List(ctx context.Context, filter interface{}, filterFn FilterFunc[T], sortFn SortFunc[T]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []T{}
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item, filter) {
			result = append(result, s.copy(item))
		}
	}

	if sortFn != nil {
		sort.SliceStable(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}

	// Apply pagination if filter implements BaseFilter
	if f, ok := filter.(types.BaseFilter); ok && !f.IsUnlimited() {
		start := f.GetOffset()
		if start >= len(result) {
			return []T{}, nil
		}

		end := start + f.GetLimit()
		if end > len(result) {
			end = len(result)
		}
		return result[start:end], nil
	}

	return result, nil
}

// Count returns the total number of items matching the filter
func (s *InMemoryStore[T]) Count(ctx context.Context, filter interface{}, filterFn FilterFunc[T]) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item, filter) {
			count++
		}
	}

	return count, nil
}

// Update updates an existing item
func (s *InMemoryStore[T]) Update(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.items[id]
	if !exists {
		return ierr.NewErrorf("item %s not found", id).
			WithHint("Item not found").
			Mark(ierr.ErrNotFound)
	}

	s.items[id] = s.copy(item)
	s.journal(ctx, func() {
		s.items[id] = prev
	})
	return nil
}

// Mutate applies fn to every stored item matching match under one write lock
// and returns how many items changed. fn reports whether it changed the item.
func (s *InMemoryStore[T]) Mutate(ctx context.Context, match func(item T) bool, fn func(item T) (T, bool)) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for id, item := range s.items {
		if !match(item) {
			continue
		}
		next, ok := fn(s.copy(item))
		if !ok {
			continue
		}
		prev := item
		s.items[id] = next
		s.journal(ctx, func() {
			s.items[id] = prev
		})
		changed++
	}
	return changed
}

// Delete removes an item from the store
func (s *InMemoryStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.items[id]
	if !exists {
		return ierr.NewErrorf("item %s not found", id).
			WithHint("Item not found").
			Mark(ierr.ErrNotFound)
	}

	delete(s.items, id)
	s.journal(ctx, func() {
		s.items[id] = prev
	})
	return nil
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}

// journal registers undo with the transaction carried by ctx, if any.
// Undo runs under the store's write lock.
func (s *InMemoryStore[T]) journal(ctx context.Context, undo func()) {
	scope, ok := scopeFromContext(ctx)
	if !ok {
		return
	}
	scope.record(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		undo()
	})
}
