package linker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/store"
)

// step is one single-field write of a link operation.
type step struct {
	table store.Table
	id    string
	field string
	value string
}

// writer issues the reads and writes of one link operation, in order.
// In atomic mode it runs on a transaction and leaves rollback to the store.
// Otherwise it keeps a journal of applied steps and compensates the forward
// write of a pair when the reverse write fails.
type writer struct {
	acc     store.Accessor
	atomic  bool
	logger  *slog.Logger
	journal []step
}

func newWriter(acc store.Accessor, atomic bool, logger *slog.Logger) *writer {
	return &writer{acc: acc, atomic: atomic, logger: logger}
}

func (w *writer) get(ctx context.Context, table store.Table, id string, fields ...string) (store.Row, error) {
	return w.acc.Get(ctx, table, id, fields...)
}

// optional reads a row that may be absent. ok is false for an empty id or
// a missing row.
func (w *writer) optional(ctx context.Context, table store.Table, id string, fields ...string) (store.Row, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	row, err := w.acc.Get(ctx, table, id, fields...)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

func (w *writer) query(ctx context.Context, table store.Table, field, value string, fields ...string) ([]store.Row, error) {
	return w.acc.Query(ctx, table, field, value, fields...)
}

func (w *writer) set(ctx context.Context, s step) error {
	if err := w.acc.Update(ctx, s.table, s.id, s.field, s.value); err != nil {
		return err
	}
	w.journal = append(w.journal, s)
	return nil
}

// pair writes a forward link and its reverse. If the reverse write fails the
// forward field is restored to prev.
func (w *writer) pair(ctx context.Context, fwd step, prev string, rev step) error {
	if err := w.set(ctx, fwd); err != nil {
		return err
	}
	err := w.set(ctx, rev)
	if err == nil || w.atomic {
		return err
	}
	undo := step{table: fwd.table, id: fwd.id, field: fwd.field, value: prev}
	if cerr := w.set(ctx, undo); cerr != nil {
		w.logger.Error("compensation failed",
			slog.String("table", string(fwd.table)),
			slog.String("id", fwd.id),
			slog.String("field", fwd.field),
			slog.String("error", cerr.Error()))
	} else {
		w.logger.Warn("compensated forward link",
			slog.String("table", string(fwd.table)),
			slog.String("id", fwd.id),
			slog.String("field", fwd.field))
	}
	return err
}

// release clears field on (table, id) when it still holds expect. Missing
// rows and empty ids are ignored.
func (w *writer) release(ctx context.Context, table store.Table, id, field, expect string) error {
	return w.releaseIf(ctx, table, id, field, func(cur string) bool { return cur == expect })
}

func (w *writer) releaseIf(ctx context.Context, table store.Table, id, field string, match func(string) bool) error {
	row, ok, err := w.optional(ctx, table, id, field)
	if err != nil || !ok {
		return err
	}
	if cur := row.Str(field); cur == "" || !match(cur) {
		return nil
	}
	return w.set(ctx, step{table: table, id: id, field: field})
}

// logTorn reports writes left behind by a failed non-atomic operation.
func (w *writer) logTorn(op string) {
	if w.atomic || len(w.journal) == 0 {
		return
	}
	for _, s := range w.journal {
		w.logger.Warn("partial write left for audit",
			slog.String("operation", op),
			slog.String("table", string(s.table)),
			slog.String("id", s.id),
			slog.String("field", s.field),
			slog.String("value", s.value))
	}
}
