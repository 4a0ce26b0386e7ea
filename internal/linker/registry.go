package linker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/starford/careerlink/internal/apperr"

	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/store"
)

type managerKey struct {
	kind models.Kind
	id   string
}

// Registry hands out one Manager per entity so that operations on the same
// entity are serialized across callers.
type Registry struct {
	store store.Store
	opts  []Option

	mu       sync.Mutex
	managers map[managerKey]*Manager
}

// NewRegistry creates a Registry whose managers share opts.
func NewRegistry(s store.Store, opts ...Option) *Registry {
	return &Registry{
		store:    s,
		opts:     opts,
		managers: make(map[managerKey]*Manager),
	}
}

// Manager returns the manager for (kind, id), creating it on first use.
func (r *Registry) Manager(kind models.Kind, id string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := managerKey{kind, id}
	if m, ok := r.managers[k]; ok {
		return m
	}
	m := New(r.store, kind, id, r.opts...)
	r.managers[k] = m
	return m
}

// Lookup returns the manager for (kind, id) once the entity is known to
// exist. A missing entity returns apperr.ErrNotFound and nothing is cached.
func (r *Registry) Lookup(ctx context.Context, kind models.Kind, id string) (*Manager, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: kind %q", apperr.ErrInvalid, kind)
	}
	r.mu.Lock()
	m, ok := r.managers[managerKey{kind, id}]
	r.mu.Unlock()
	if ok {
		return m, nil
	}
	if _, err := r.store.Get(ctx, store.TableFor(kind), id, store.FieldID); err != nil {
		return nil, err
	}
	return r.Manager(kind, id), nil
}

// ForgetMissing drops the cached manager for (kind, id) when the entity no
// longer exists. It reports whether the manager was dropped.
func (r *Registry) ForgetMissing(ctx context.Context, kind models.Kind, id string) bool {
	if !kind.Valid() {
		return false
	}
	_, err := r.store.Get(ctx, store.TableFor(kind), id, store.FieldID)
	if !errors.Is(err, apperr.ErrNotFound) {
		return false
	}
	r.Forget(kind, id)
	return true
}

// Forget drops the cached manager for (kind, id).
func (r *Registry) Forget(kind models.Kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, managerKey{kind, id})
}

// Len returns the number of cached managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}
