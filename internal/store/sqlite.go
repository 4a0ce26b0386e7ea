package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/careerlink/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS resumes (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL DEFAULT '',
	template           TEXT NOT NULL DEFAULT 'modern',
	job_application_id TEXT,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cover_letters (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL DEFAULT '',
	company_name       TEXT,
	job_title          TEXT,
	resume_id          TEXT,
	job_application_id TEXT,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS job_applications (
	id              TEXT PRIMARY KEY,
	company_name    TEXT NOT NULL DEFAULT '',
	job_title       TEXT NOT NULL DEFAULT '',
	location        TEXT,
	status          TEXT NOT NULL DEFAULT 'saved',
	applied_date    TEXT,
	resume_id       TEXT,
	cover_letter_id TEXT,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resumes_job ON resumes(job_application_id);
CREATE INDEX IF NOT EXISTS idx_cover_letters_resume ON cover_letters(resume_id);
CREATE INDEX IF NOT EXISTS idx_cover_letters_job ON cover_letters(job_application_id);
CREATE INDEX IF NOT EXISTS idx_job_applications_resume ON job_applications(resume_id);
CREATE INDEX IF NOT EXISTS idx_job_applications_cover_letter ON job_applications(cover_letter_id);
`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLite is a Store backed by mattn/go-sqlite3.
type SQLite struct {
	db *sql.DB
	q  querier
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Transactions take the write lock up front so concurrent link operations
// serialize instead of failing on lock upgrade.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{db: conn, q: conn}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

// Close closes the underlying connection. It is a no-op inside a transaction.
func (s *SQLite) Close() error {
	if _, ok := s.q.(*sql.Tx); ok {
		return nil
	}
	return s.db.Close()
}

// Get implements Accessor.
func (s *SQLite) Get(ctx context.Context, table Table, id string, fields ...string) (Row, error) {
	cols, err := projection(table, fields)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? LIMIT 1`, strings.Join(cols, ", "), table)
	rows, err := s.query(ctx, cols, q, id)
	if err != nil {
		return nil, fmt.Errorf("store: get %s %s: %w", table, id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("store: %s %s: %w", table, id, apperr.ErrNotFound)
	}
	return rows[0], nil
}

// Query implements Accessor.
func (s *SQLite) Query(ctx context.Context, table Table, field, value string, fields ...string) ([]Row, error) {
	cols, err := projection(table, fields)
	if err != nil {
		return nil, err
	}
	if err := checkFields(table, field); err != nil {
		return nil, err
	}
	var (
		where string
		args  []any
	)
	if value == "" {
		where = field + " IS NULL"
	} else {
		where = field + " = ?"
		args = append(args, value)
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at, id`, strings.Join(cols, ", "), table, where)
	rows, err := s.query(ctx, cols, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query %s by %s: %w", table, field, err)
	}
	return rows, nil
}

// List implements Store.
func (s *SQLite) List(ctx context.Context, table Table, fields ...string) ([]Row, error) {
	cols, err := projection(table, fields)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, strings.Join(cols, ", "), table)
	rows, err := s.query(ctx, cols, q)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", table, err)
	}
	return rows, nil
}

// Update implements Accessor.
func (s *SQLite) Update(ctx context.Context, table Table, id, field, value string) error {
	if err := checkFields(table, field); err != nil {
		return err
	}
	if field == FieldID || field == FieldCreatedAt || field == FieldUpdatedAt {
		return fmt.Errorf("%w: column %s is not writable", apperr.ErrInvalid, field)
	}
	q := fmt.Sprintf(`UPDATE %s SET %s = ?, updated_at = ? WHERE id = ?`, table, field)
	res, err := s.q.ExecContext(ctx, q, nullable(value), Now(), id)
	if err != nil {
		return fmt.Errorf("store: update %s.%s for %s: %w", table, field, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s %s: %w", table, id, apperr.ErrNotFound)
	}
	return nil
}

// Create implements Store.
func (s *SQLite) Create(ctx context.Context, table Table, row Row) (string, error) {
	row, err := prepareRow(table, row)
	if err != nil {
		return "", err
	}
	cols := make([]string, 0, len(row))
	marks := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	for _, c := range columns[table] {
		v, ok := row[c]
		if !ok {
			continue
		}
		cols = append(cols, c)
		marks = append(marks, "?")
		args = append(args, v)
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := s.q.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("store: %s %s: %w", table, row.Str(FieldID), apperr.ErrAlreadyExists)
		}
		return "", fmt.Errorf("store: insert %s: %w", table, err)
	}
	return row.Str(FieldID), nil
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, table Table, id string) error {
	if err := checkFields(table); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return fmt.Errorf("store: delete %s %s: %w", table, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: %s %s: %w", table, id, apperr.ErrNotFound)
	}
	return nil
}

// Transaction implements Store. Nested calls join the open transaction.
func (s *SQLite) Transaction(ctx context.Context, f func(tx Accessor) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return f(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := f(&SQLite{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *SQLite) query(ctx context.Context, cols []string, q string, args ...any) ([]Row, error) {
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if vals[i].Valid {
				row[c] = vals[i].String
			} else {
				row[c] = nil
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
}
