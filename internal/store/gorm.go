package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/starford/careerlink/internal/apperr"
)

// Schema records for AutoMigrate. Reads and writes go through column maps
// so both backends share the Row contract.
type resumeRecord struct {
	ID               string  `gorm:"primaryKey;column:id"`
	Title            string  `gorm:"column:title;not null;default:''"`
	Template         string  `gorm:"column:template;not null;default:'modern'"`
	JobApplicationID *string `gorm:"column:job_application_id;index"`
	CreatedAt        string  `gorm:"column:created_at;not null"`
	UpdatedAt        string  `gorm:"column:updated_at;not null"`
}

func (resumeRecord) TableName() string { return string(Resumes) }

type coverLetterRecord struct {
	ID               string  `gorm:"primaryKey;column:id"`
	Title            string  `gorm:"column:title;not null;default:''"`
	CompanyName      *string `gorm:"column:company_name"`
	JobTitle         *string `gorm:"column:job_title"`
	ResumeID         *string `gorm:"column:resume_id;index"`
	JobApplicationID *string `gorm:"column:job_application_id;index"`
	CreatedAt        string  `gorm:"column:created_at;not null"`
	UpdatedAt        string  `gorm:"column:updated_at;not null"`
}

func (coverLetterRecord) TableName() string { return string(CoverLetters) }

type jobApplicationRecord struct {
	ID            string  `gorm:"primaryKey;column:id"`
	CompanyName   string  `gorm:"column:company_name;not null;default:''"`
	JobTitle      string  `gorm:"column:job_title;not null;default:''"`
	Location      *string `gorm:"column:location"`
	Status        string  `gorm:"column:status;not null;default:'saved'"`
	AppliedDate   *string `gorm:"column:applied_date"`
	ResumeID      *string `gorm:"column:resume_id;index"`
	CoverLetterID *string `gorm:"column:cover_letter_id;index"`
	CreatedAt     string  `gorm:"column:created_at;not null"`
	UpdatedAt     string  `gorm:"column:updated_at;not null"`
}

func (jobApplicationRecord) TableName() string { return string(JobApplications) }

func recordFor(t Table) any {
	switch t {
	case Resumes:
		return &resumeRecord{}
	case CoverLetters:
		return &coverLetterRecord{}
	default:
		return &jobApplicationRecord{}
	}
}

// Gorm is a Store backed by gorm, used for PostgreSQL deployments and the
// gorm SQLite driver.
type Gorm struct {
	db *gorm.DB
}

var _ Store = (*Gorm)(nil)

// OpenGorm opens a gorm connection through dialector and migrates the schema.
func OpenGorm(dialector gorm.Dialector) (*Gorm, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open gorm: %w", err)
	}
	if err := db.AutoMigrate(&resumeRecord{}, &coverLetterRecord{}, &jobApplicationRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Gorm{db: db}, nil
}

// Close closes the pooled connection.
func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get implements Accessor.
func (g *Gorm) Get(ctx context.Context, table Table, id string, fields ...string) (Row, error) {
	cols, err := projection(table, fields)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	err = g.db.WithContext(ctx).Model(recordFor(table)).
		Select(cols).Where("id = ?", id).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: get %s %s: %w", table, id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("store: %s %s: %w", table, id, apperr.ErrNotFound)
	}
	return project(rows[0], cols), nil
}

// Query implements Accessor.
func (g *Gorm) Query(ctx context.Context, table Table, field, value string, fields ...string) ([]Row, error) {
	cols, err := projection(table, fields)
	if err != nil {
		return nil, err
	}
	if err := checkFields(table, field); err != nil {
		return nil, err
	}
	q := g.db.WithContext(ctx).Model(recordFor(table)).Select(cols)
	if value == "" {
		q = q.Where(field + " IS NULL")
	} else {
		q = q.Where(field+" = ?", value)
	}
	var rows []map[string]any
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: query %s by %s: %w", table, field, err)
	}
	return projectAll(rows, cols), nil
}

// List implements Store.
func (g *Gorm) List(ctx context.Context, table Table, fields ...string) ([]Row, error) {
	cols, err := projection(table, fields)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	err = g.db.WithContext(ctx).Model(recordFor(table)).Select(cols).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", table, err)
	}
	return projectAll(rows, cols), nil
}

// Update implements Accessor.
func (g *Gorm) Update(ctx context.Context, table Table, id, field, value string) error {
	if err := checkFields(table, field); err != nil {
		return err
	}
	if field == FieldID || field == FieldCreatedAt || field == FieldUpdatedAt {
		return fmt.Errorf("%w: column %s is not writable", apperr.ErrInvalid, field)
	}
	res := g.db.WithContext(ctx).Model(recordFor(table)).Where("id = ?", id).
		Updates(map[string]any{field: nullable(value), FieldUpdatedAt: Now()})
	if res.Error != nil {
		return fmt.Errorf("store: update %s.%s for %s: %w", table, field, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: %s %s: %w", table, id, apperr.ErrNotFound)
	}
	return nil
}

// Create implements Store.
func (g *Gorm) Create(ctx context.Context, table Table, row Row) (string, error) {
	row, err := prepareRow(table, row)
	if err != nil {
		return "", err
	}
	if err := g.db.WithContext(ctx).Model(recordFor(table)).Create(map[string]any(row)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", fmt.Errorf("store: %s %s: %w", table, row.Str(FieldID), apperr.ErrAlreadyExists)
		}
		return "", fmt.Errorf("store: insert %s: %w", table, err)
	}
	return row.Str(FieldID), nil
}

// Delete implements Store.
func (g *Gorm) Delete(ctx context.Context, table Table, id string) error {
	if err := checkFields(table); err != nil {
		return err
	}
	res := g.db.WithContext(ctx).Where("id = ?", id).Delete(recordFor(table))
	if res.Error != nil {
		return fmt.Errorf("store: delete %s %s: %w", table, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: %s %s: %w", table, id, apperr.ErrNotFound)
	}
	return nil
}

// Transaction implements Store.
func (g *Gorm) Transaction(ctx context.Context, f func(tx Accessor) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&Gorm{db: tx})
	})
}

// project keeps only cols, filling absent ones with NULL.
func project(raw map[string]any, cols []string) Row {
	n := normalize(raw)
	out := make(Row, len(cols))
	for _, c := range cols {
		out[c] = n[c]
	}
	return out
}

func projectAll(raws []map[string]any, cols []string) []Row {
	out := make([]Row, 0, len(raws))
	for _, r := range raws {
		out = append(out, project(r, cols))
	}
	return out
}
