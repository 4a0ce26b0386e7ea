// Package linker keeps the links between resumes, cover letters and job
// applications consistent.
//
// An Auditor inspects one entity's neighbourhood and repairs broken links.
// A Manager is scoped to one entity and performs the multi-record link and
// unlink operations, refetching and auditing after each success.
package linker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/checksum"
	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/store"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAtomicWrites runs each operation inside a single store transaction.
// When disabled, writes are issued one by one with best-effort compensation.
func WithAtomicWrites(atomic bool) Option {
	return func(m *Manager) {
		m.atomic = atomic
	}
}

// WithNotifier registers a callback for change and repair events.
func WithNotifier(fn func(Event)) Option {
	return func(m *Manager) {
		m.notify = fn
	}
}

// Manager performs link operations on behalf of one entity. Operations on
// the same Manager are serialized; State may be read at any time.
type Manager struct {
	store   store.Store
	auditor *Auditor
	kind    models.Kind
	id      string
	logger  *slog.Logger
	atomic  bool
	notify  func(Event)

	opMu   sync.Mutex
	mu     sync.RWMutex
	state  State
	loaded bool
}

// New creates a Manager for the entity (kind, id). Writes are atomic unless
// WithAtomicWrites(false) is given.
func New(s store.Store, kind models.Kind, id string, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		kind:   kind,
		id:     id,
		logger: slog.New(slog.DiscardHandler),
		atomic: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(
		slog.String("component", "linker"),
		slog.String("entity_type", string(kind)),
		slog.String("entity_id", id))
	m.auditor = NewAuditor(s, m.logger)
	m.state = State{EntityType: kind, EntityID: id}
	return m
}

// Kind returns the managed entity kind.
func (m *Manager) Kind() models.Kind { return m.kind }

// ID returns the managed entity id.
func (m *Manager) ID() string { return m.id }

// State returns the latest snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Activate performs the initial refresh once. Later calls return the
// current snapshot.
func (m *Manager) Activate(ctx context.Context) State {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return m.State()
	}
	return m.refresh(ctx)
}

// Refresh audits the entity, applies repairs and reloads the display
// projections.
func (m *Manager) Refresh(ctx context.Context) State {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.refresh(ctx)
}

// Version returns the optimistic-lock tag of the entity's link fields.
func (m *Manager) Version(ctx context.Context) (string, error) {
	return Version(ctx, m.store, m.kind, m.id)
}

// Version returns a checksum over the link fields of (kind, id).
func Version(ctx context.Context, acc store.Accessor, kind models.Kind, id string) (string, error) {
	fields := linkFields(kind)
	row, err := acc.Get(ctx, store.TableFor(kind), id, fields...)
	if err != nil {
		return "", err
	}
	refs := make([]string, len(fields))
	for i, f := range fields {
		refs[i] = row.Str(f)
	}
	return checksum.Links(id, refs...), nil
}

func linkFields(k models.Kind) []string {
	switch k {
	case models.KindResume:
		return []string{store.FieldJobApplicationID}
	case models.KindCoverLetter:
		return []string{store.FieldResumeID, store.FieldJobApplicationID}
	default:
		return []string{store.FieldResumeID, store.FieldCoverLetterID}
	}
}

type expectKey struct{}

// ExpectVersion returns a context under which the next operation fails with
// apperr.ErrConflict unless the entity's links still match version.
func ExpectVersion(ctx context.Context, version string) context.Context {
	if version == "" {
		return ctx
	}
	return context.WithValue(ctx, expectKey{}, version)
}

func (m *Manager) refresh(ctx context.Context) State {
	m.begin()

	rep, err := m.auditor.Check(ctx, m.kind, m.id)
	switch {
	case err != nil:
		m.logger.Warn("audit failed", slog.String("error", err.Error()))
	case rep.Applied > 0:
		m.emit(Event{Type: EventLinksRepaired, Categories: rep.Categories()})
	}

	st, err := m.fetch(ctx)
	if err != nil {
		m.logger.Error("fetch linked entities failed", slog.String("error", err.Error()))
		return m.fail(MsgFetchFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
	m.loaded = true
	return m.state.clone()
}

// run executes one link operation. fn reports whether it wrote anything;
// a no-op skips the refetch.
func (m *Manager) run(ctx context.Context, op, failMsg string, fn func(ctx context.Context, w *writer) (bool, error)) State {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.begin()

	var changed bool
	apply := func(acc store.Accessor) error {
		if want, ok := ctx.Value(expectKey{}).(string); ok {
			have, err := Version(ctx, acc, m.kind, m.id)
			if err != nil {
				return err
			}
			if have != want {
				return fmt.Errorf("%w: links of %s %s changed", apperr.ErrConflict, m.kind, m.id)
			}
		}
		w := newWriter(acc, m.atomic, m.logger)
		var err error
		changed, err = fn(ctx, w)
		if err != nil {
			w.logTorn(op)
		}
		return err
	}

	var err error
	if m.atomic {
		err = m.store.Transaction(ctx, apply)
	} else {
		err = apply(m.store)
	}
	if err != nil {
		m.logger.Error("link operation failed",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return m.fail(failMsg, err)
	}
	if !changed {
		return m.end()
	}
	m.emit(Event{Type: EventLinksChanged, Operation: op})
	return m.refresh(ctx)
}

// rejectSelf handles an operation targeting the entity's own kind: logged,
// nothing written.
func (m *Manager) rejectSelf(op string) State {
	m.logger.Warn("ignoring self link", slog.String("operation", op),
		slog.String("error", apperr.ErrSelfLink.Error()))
	return m.State()
}

func (m *Manager) begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsLoading = true
	m.state.Error = ""
	m.state.cause = nil
}

func (m *Manager) end() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsLoading = false
	return m.state.clone()
}

func (m *Manager) fail(msg string, cause error) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsLoading = false
	m.state.Error = msg
	m.state.cause = cause
	return m.state.clone()
}

func (m *Manager) emit(ev Event) {
	if m.notify == nil {
		return
	}
	ev.EntityType = m.kind
	ev.EntityID = m.id
	m.notify(ev)
}

var (
	jobDisplay         = []string{store.FieldID, store.FieldCompanyName, store.FieldJobTitle, store.FieldLocation, store.FieldStatus}
	resumeDisplay      = []string{store.FieldID, store.FieldTitle, store.FieldTemplate}
	coverLetterDisplay = []string{store.FieldID, store.FieldTitle, store.FieldCompanyName, store.FieldJobTitle}
)

// fetch loads the display projections. Neighbours that vanished since the
// audit are shown as unlinked.
func (m *Manager) fetch(ctx context.Context) (State, error) {
	st := State{EntityType: m.kind, EntityID: m.id, LinkedCoverLetters: []models.LinkedCoverLetter{}}

	switch m.kind {
	case models.KindResume:
		r, err := m.store.Get(ctx, store.Resumes, m.id, store.FieldJobApplicationID)
		if err != nil {
			return st, err
		}
		if st.LinkedJob, err = m.linkedJob(ctx, r.Str(store.FieldJobApplicationID)); err != nil {
			return st, err
		}
		rows, err := m.store.Query(ctx, store.CoverLetters, store.FieldResumeID, m.id, coverLetterDisplay...)
		if err != nil {
			return st, err
		}
		for _, row := range rows {
			st.LinkedCoverLetters = append(st.LinkedCoverLetters, toLinkedCoverLetter(row))
		}

	case models.KindCoverLetter:
		cl, err := m.store.Get(ctx, store.CoverLetters, m.id, store.FieldResumeID, store.FieldJobApplicationID)
		if err != nil {
			return st, err
		}
		if st.LinkedResume, err = m.linkedResume(ctx, cl.Str(store.FieldResumeID)); err != nil {
			return st, err
		}
		if st.LinkedJob, err = m.linkedJob(ctx, cl.Str(store.FieldJobApplicationID)); err != nil {
			return st, err
		}

	case models.KindJobApplication:
		fields := append(append([]string{}, jobDisplay...), store.FieldResumeID, store.FieldCoverLetterID)
		j, err := m.store.Get(ctx, store.JobApplications, m.id, fields...)
		if err != nil {
			return st, err
		}
		self := toLinkedJob(j)
		st.LinkedJob = &self
		if st.LinkedResume, err = m.linkedResume(ctx, j.Str(store.FieldResumeID)); err != nil {
			return st, err
		}
		clID := j.Str(store.FieldCoverLetterID)
		if clID != "" {
			row, err := m.store.Get(ctx, store.CoverLetters, clID, coverLetterDisplay...)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
			case err != nil:
				return st, err
			default:
				st.LinkedCoverLetters = append(st.LinkedCoverLetters, toLinkedCoverLetter(row))
			}
		}

	default:
		return st, fmt.Errorf("%w: kind %q", apperr.ErrInvalid, m.kind)
	}
	return st, nil
}

func (m *Manager) linkedJob(ctx context.Context, id string) (*models.LinkedJob, error) {
	if id == "" {
		return nil, nil
	}
	row, err := m.store.Get(ctx, store.JobApplications, id, jobDisplay...)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j := toLinkedJob(row)
	return &j, nil
}

func (m *Manager) linkedResume(ctx context.Context, id string) (*models.LinkedResume, error) {
	if id == "" {
		return nil, nil
	}
	row, err := m.store.Get(ctx, store.Resumes, id, resumeDisplay...)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.LinkedResume{
		ID:       row.Str(store.FieldID),
		Title:    row.Str(store.FieldTitle),
		Template: models.Template(row.Str(store.FieldTemplate)),
	}, nil
}

func toLinkedJob(row store.Row) models.LinkedJob {
	return models.LinkedJob{
		ID:          row.Str(store.FieldID),
		CompanyName: row.Str(store.FieldCompanyName),
		JobTitle:    row.Str(store.FieldJobTitle),
		Location:    row.Str(store.FieldLocation),
		Status:      models.JobStatus(row.Str(store.FieldStatus)),
	}
}

func toLinkedCoverLetter(row store.Row) models.LinkedCoverLetter {
	return models.LinkedCoverLetter{
		ID:          row.Str(store.FieldID),
		Title:       row.Str(store.FieldTitle),
		CompanyName: row.Str(store.FieldCompanyName),
		JobTitle:    row.Str(store.FieldJobTitle),
	}
}
