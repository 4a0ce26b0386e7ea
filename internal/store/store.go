// Package store provides point access to the resumes, cover_letters and
// job_applications tables.
//
// Link columns carry no foreign-key constraints: a reference may dangle and
// is repaired by the linker's auditor. At this boundary a NULL column is the
// empty string.
package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/models"
)

// Table names a record collection.
type Table string

const (
	Resumes         Table = "resumes"
	CoverLetters    Table = "cover_letters"
	JobApplications Table = "job_applications"
)

// Column names.
const (
	FieldID               = "id"
	FieldTitle            = "title"
	FieldTemplate         = "template"
	FieldCompanyName      = "company_name"
	FieldJobTitle         = "job_title"
	FieldLocation         = "location"
	FieldStatus           = "status"
	FieldAppliedDate      = "applied_date"
	FieldJobApplicationID = "job_application_id"
	FieldResumeID         = "resume_id"
	FieldCoverLetterID    = "cover_letter_id"
	FieldCreatedAt        = "created_at"
	FieldUpdatedAt        = "updated_at"
)

var columns = map[Table][]string{
	Resumes: {
		FieldID, FieldTitle, FieldTemplate, FieldJobApplicationID,
		FieldCreatedAt, FieldUpdatedAt,
	},
	CoverLetters: {
		FieldID, FieldTitle, FieldCompanyName, FieldJobTitle, FieldResumeID,
		FieldJobApplicationID, FieldCreatedAt, FieldUpdatedAt,
	},
	JobApplications: {
		FieldID, FieldCompanyName, FieldJobTitle, FieldLocation, FieldStatus,
		FieldAppliedDate, FieldResumeID, FieldCoverLetterID, FieldCreatedAt, FieldUpdatedAt,
	},
}

// TimeLayout is the fixed-width UTC timestamp format stored in created_at
// and updated_at, so lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Now returns the current time formatted with TimeLayout.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp, returning the zero time on failure.
func ParseTime(s string) time.Time {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// TableFor maps an entity kind to its table.
func TableFor(k models.Kind) Table {
	switch k {
	case models.KindResume:
		return Resumes
	case models.KindCoverLetter:
		return CoverLetters
	case models.KindJobApplication:
		return JobApplications
	}
	panic(fmt.Sprintf("store: no table for kind %q", k))
}

// Kind maps a table back to its entity kind.
func (t Table) Kind() models.Kind {
	switch t {
	case Resumes:
		return models.KindResume
	case CoverLetters:
		return models.KindCoverLetter
	default:
		return models.KindJobApplication
	}
}

// Columns returns every column of t.
func Columns(t Table) []string {
	return slices.Clone(columns[t])
}

// checkFields rejects unknown tables and columns. Column names are
// interpolated into SQL, so this is the only guard against injection.
func checkFields(t Table, fields ...string) error {
	cols, ok := columns[t]
	if !ok {
		return fmt.Errorf("%w: unknown table %q", apperr.ErrInvalid, t)
	}
	for _, f := range fields {
		if !slices.Contains(cols, f) {
			return fmt.Errorf("%w: unknown column %s.%s", apperr.ErrInvalid, t, f)
		}
	}
	return nil
}

// projection returns fields, or every column when fields is empty.
func projection(t Table, fields []string) ([]string, error) {
	if len(fields) == 0 {
		return Columns(t), nil
	}
	if err := checkFields(t, fields...); err != nil {
		return nil, err
	}
	return fields, nil
}

// Row is a projected record. Values are strings, or nil for NULL.
type Row map[string]any

// Str returns field as a string, mapping NULL to "".
func (r Row) Str(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case *string:
		if v != nil {
			return *v
		}
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// normalize converts driver values into the string-or-nil form of Row.
func normalize(row map[string]any) Row {
	out := make(Row, len(row))
	for k, v := range row {
		switch val := v.(type) {
		case nil:
			out[k] = nil
		case string:
			out[k] = val
		case []byte:
			out[k] = string(val)
		case *string:
			if val == nil {
				out[k] = nil
			} else {
				out[k] = *val
			}
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// nullable maps the empty string to NULL.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// Accessor is the point read/write contract the linker depends on.
// Not-found conditions wrap apperr.ErrNotFound.
type Accessor interface {
	// Get reads a projection of one row.
	Get(ctx context.Context, table Table, id string, fields ...string) (Row, error)
	// Query returns the rows whose field equals value, ordered by creation.
	// An empty value matches NULL.
	Query(ctx context.Context, table Table, field, value string, fields ...string) ([]Row, error)
	// Update sets a single field and bumps updated_at. An empty value stores NULL.
	Update(ctx context.Context, table Table, id, field, value string) error
}

// Store is the full record store used by services.
type Store interface {
	Accessor
	// Create inserts row and returns its id. A missing id is generated.
	Create(ctx context.Context, table Table, row Row) (string, error)
	// List returns every row of table ordered by creation.
	List(ctx context.Context, table Table, fields ...string) ([]Row, error)
	// Delete removes one row. References to it are left dangling.
	Delete(ctx context.Context, table Table, id string) error
	// Transaction runs f against a transactional accessor. Any error rolls
	// back every write made through tx.
	Transaction(ctx context.Context, f func(tx Accessor) error) error
	Close() error
}

// prepareRow validates row for insertion into table and fills the id and
// timestamps when absent. Empty strings become NULL.
func prepareRow(table Table, row Row) (Row, error) {
	out := make(Row, len(row)+3)
	for k, v := range row {
		if err := checkFields(table, k); err != nil {
			return nil, err
		}
		out[k] = v
		if s, ok := v.(string); ok {
			out[k] = nullable(s)
		}
	}
	if out.Str(FieldID) == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("store: generate id: %w", err)
		}
		out[FieldID] = id.String()
	}
	now := Now()
	if out.Str(FieldCreatedAt) == "" {
		out[FieldCreatedAt] = now
	}
	if out.Str(FieldUpdatedAt) == "" {
		out[FieldUpdatedAt] = now
	}
	return out, nil
}
