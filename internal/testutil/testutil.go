// Package testutil provides shared test helpers for stores and fixtures.
package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/careerlink/internal/store"
)

// ErrInjected is returned by FaultStore for matching writes.
var ErrInjected = errors.New("injected store failure")

// TestStore opens a SQLite store in a temporary directory that is removed
// when the test ends.
func TestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "careerlink-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Seed inserts row into table, failing the test on error.
func Seed(t *testing.T, s store.Store, table store.Table, row store.Row) string {
	t.Helper()
	id, err := s.Create(context.Background(), table, row)
	if err != nil {
		t.Fatalf("seed %s: %v", table, err)
	}
	return id
}

// Resume seeds a resume with the given id and job link.
func Resume(t *testing.T, s store.Store, id, jobID string) {
	t.Helper()
	Seed(t, s, store.Resumes, store.Row{
		store.FieldID: id, store.FieldTitle: "Resume " + id, store.FieldTemplate: "modern",
		store.FieldJobApplicationID: jobID,
	})
}

// CoverLetter seeds a cover letter with the given id and links.
func CoverLetter(t *testing.T, s store.Store, id, resumeID, jobID string) {
	t.Helper()
	Seed(t, s, store.CoverLetters, store.Row{
		store.FieldID: id, store.FieldTitle: "Letter " + id, store.FieldCompanyName: "Acme",
		store.FieldJobTitle: "Engineer", store.FieldResumeID: resumeID, store.FieldJobApplicationID: jobID,
	})
}

// Job seeds a job application with the given id and links.
func Job(t *testing.T, s store.Store, id, resumeID, coverLetterID string) {
	t.Helper()
	Seed(t, s, store.JobApplications, store.Row{
		store.FieldID: id, store.FieldCompanyName: "Acme", store.FieldJobTitle: "Engineer",
		store.FieldLocation: "Remote", store.FieldStatus: "saved",
		store.FieldResumeID: resumeID, store.FieldCoverLetterID: coverLetterID,
	})
}

// Field reads one column, failing the test on error.
func Field(t *testing.T, s store.Accessor, table store.Table, id, field string) string {
	t.Helper()
	row, err := s.Get(context.Background(), table, id, field)
	if err != nil {
		t.Fatalf("get %s %s: %v", table, id, err)
	}
	return row.Str(field)
}

// Write describes a single-field update seen by FaultStore.
type Write struct {
	Table store.Table
	ID    string
	Field string
	Value string
}

// FaultStore wraps a Store and fails updates matched by a rule. Writes made
// inside transactions are subject to the same rules.
type FaultStore struct {
	store.Store

	mu     sync.Mutex
	rules  []func(Write) bool
	writes []Write
}

// NewFaultStore wraps s.
func NewFaultStore(s store.Store) *FaultStore {
	return &FaultStore{Store: s}
}

// FailWhen makes every update matching match return ErrInjected.
func (f *FaultStore) FailWhen(match func(Write) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, match)
}

// FailUpdate fails updates of field on the given row.
func (f *FaultStore) FailUpdate(table store.Table, id, field string) {
	f.FailWhen(func(w Write) bool {
		return w.Table == table && w.ID == id && w.Field == field
	})
}

// Reset clears all rules and the write log.
func (f *FaultStore) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
	f.writes = nil
}

// Writes returns the successful updates observed so far.
func (f *FaultStore) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// Update implements store.Accessor.
func (f *FaultStore) Update(ctx context.Context, table store.Table, id, field, value string) error {
	return f.update(ctx, f.Store, table, id, field, value)
}

// Transaction implements store.Store.
func (f *FaultStore) Transaction(ctx context.Context, fn func(tx store.Accessor) error) error {
	return f.Store.Transaction(ctx, func(tx store.Accessor) error {
		return fn(&faultTx{Accessor: tx, f: f})
	})
}

func (f *FaultStore) update(ctx context.Context, acc store.Accessor, table store.Table, id, field, value string) error {
	w := Write{Table: table, ID: id, Field: field, Value: value}
	f.mu.Lock()
	for _, match := range f.rules {
		if match(w) {
			f.mu.Unlock()
			return ErrInjected
		}
	}
	f.mu.Unlock()

	if err := acc.Update(ctx, table, id, field, value); err != nil {
		return err
	}
	f.mu.Lock()
	f.writes = append(f.writes, w)
	f.mu.Unlock()
	return nil
}

type faultTx struct {
	store.Accessor
	f *FaultStore
}

func (t *faultTx) Update(ctx context.Context, table store.Table, id, field, value string) error {
	return t.f.update(ctx, t.Accessor, table, id, field, value)
}
