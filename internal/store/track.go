package store

import (
	"context"
	"sync/atomic"
	"time"
)

// Tracked wraps a Store and records when its last write finished, so a
// process can tell its own database writes from those of other processes.
type Tracked struct {
	Store

	last atomic.Int64
}

// Track wraps s.
func Track(s Store) *Tracked {
	return &Tracked{Store: s}
}

// LastWrite returns when the last write through t finished, or the zero
// time if there was none.
func (t *Tracked) LastWrite() time.Time {
	n := t.last.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (t *Tracked) touch() {
	t.last.Store(time.Now().UnixNano())
}

// Update implements Accessor.
func (t *Tracked) Update(ctx context.Context, table Table, id, field, value string) error {
	defer t.touch()
	return t.Store.Update(ctx, table, id, field, value)
}

// Create implements Store.
func (t *Tracked) Create(ctx context.Context, table Table, row Row) (string, error) {
	defer t.touch()
	return t.Store.Create(ctx, table, row)
}

// Delete implements Store.
func (t *Tracked) Delete(ctx context.Context, table Table, id string) error {
	defer t.touch()
	return t.Store.Delete(ctx, table, id)
}

// Transaction implements Store. The clock moves once the transaction has
// committed or rolled back.
func (t *Tracked) Transaction(ctx context.Context, f func(tx Accessor) error) error {
	defer t.touch()
	return t.Store.Transaction(ctx, f)
}
