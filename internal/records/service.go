// Package records implements create, read, list and delete of resumes, cover
// letters and job applications. Links between them are changed only through
// the linker package.
package records

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/store"
)

// Service coordinates record operations on a store.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a record service.
func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
}

// CreateResume validates and stores a resume.
func (s *Service) CreateResume(ctx context.Context, in NewResume) (*models.Resume, error) {
	if err := validation.Validate(in); err != nil {
		return nil, invalid(err)
	}
	if in.Template == "" {
		in.Template = models.TemplateModern
	}
	id, err := s.store.Create(ctx, store.Resumes, store.Row{
		store.FieldID:       in.ID,
		store.FieldTitle:    in.Title,
		store.FieldTemplate: string(in.Template),
	})
	if err != nil {
		return nil, err
	}
	return s.GetResume(ctx, id)
}

// CreateCoverLetter validates and stores a cover letter.
func (s *Service) CreateCoverLetter(ctx context.Context, in NewCoverLetter) (*models.CoverLetter, error) {
	if err := validation.Validate(in); err != nil {
		return nil, invalid(err)
	}
	id, err := s.store.Create(ctx, store.CoverLetters, store.Row{
		store.FieldID:          in.ID,
		store.FieldTitle:       in.Title,
		store.FieldCompanyName: in.CompanyName,
		store.FieldJobTitle:    in.JobTitle,
	})
	if err != nil {
		return nil, err
	}
	return s.GetCoverLetter(ctx, id)
}

// CreateJobApplication validates and stores a job application. The status
// defaults to saved; an applied job without a date is dated today.
func (s *Service) CreateJobApplication(ctx context.Context, in NewJobApplication) (*models.JobApplication, error) {
	if err := validation.Validate(in); err != nil {
		return nil, invalid(err)
	}
	if in.Status == "" {
		in.Status = models.StatusSaved
	}
	if in.Status == models.StatusApplied && in.AppliedDate == "" {
		in.AppliedDate = s.today()
	}
	id, err := s.store.Create(ctx, store.JobApplications, store.Row{
		store.FieldID:          in.ID,
		store.FieldCompanyName: in.CompanyName,
		store.FieldJobTitle:    in.JobTitle,
		store.FieldLocation:    in.Location,
		store.FieldStatus:      string(in.Status),
		store.FieldAppliedDate: in.AppliedDate,
	})
	if err != nil {
		return nil, err
	}
	return s.GetJobApplication(ctx, id)
}

// GetResume returns one resume.
func (s *Service) GetResume(ctx context.Context, id string) (*models.Resume, error) {
	row, err := s.store.Get(ctx, store.Resumes, id)
	if err != nil {
		return nil, err
	}
	r := toResume(row)
	return &r, nil
}

// GetCoverLetter returns one cover letter.
func (s *Service) GetCoverLetter(ctx context.Context, id string) (*models.CoverLetter, error) {
	row, err := s.store.Get(ctx, store.CoverLetters, id)
	if err != nil {
		return nil, err
	}
	c := toCoverLetter(row)
	return &c, nil
}

// GetJobApplication returns one job application.
func (s *Service) GetJobApplication(ctx context.Context, id string) (*models.JobApplication, error) {
	row, err := s.store.Get(ctx, store.JobApplications, id)
	if err != nil {
		return nil, err
	}
	j := toJobApplication(row)
	return &j, nil
}

// ListResumes returns every resume in creation order.
func (s *Service) ListResumes(ctx context.Context) ([]models.Resume, error) {
	return list(ctx, s.store, store.Resumes, toResume)
}

// ListCoverLetters returns every cover letter in creation order.
func (s *Service) ListCoverLetters(ctx context.Context) ([]models.CoverLetter, error) {
	return list(ctx, s.store, store.CoverLetters, toCoverLetter)
}

// ListJobApplications returns every job application in creation order.
func (s *Service) ListJobApplications(ctx context.Context) ([]models.JobApplication, error) {
	return list(ctx, s.store, store.JobApplications, toJobApplication)
}

// ResumeCoverLetters lists the cover letters of a resume, most recently
// updated first.
func (s *Service) ResumeCoverLetters(ctx context.Context, resumeID string) ([]models.CoverLetterSummary, error) {
	if _, err := s.store.Get(ctx, store.Resumes, resumeID, store.FieldID); err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.CoverLetters, store.FieldResumeID, resumeID,
		store.FieldID, store.FieldTitle, store.FieldCompanyName, store.FieldJobTitle, store.FieldUpdatedAt)
	if err != nil {
		return nil, err
	}
	out := make([]models.CoverLetterSummary, len(rows))
	for i, row := range rows {
		out[i] = models.CoverLetterSummary{
			ID:          row.Str(store.FieldID),
			Title:       row.Str(store.FieldTitle),
			CompanyName: row.Str(store.FieldCompanyName),
			JobTitle:    row.Str(store.FieldJobTitle),
			UpdatedAt:   store.ParseTime(row.Str(store.FieldUpdatedAt)),
		}
	}
	slices.SortStableFunc(out, func(a, b models.CoverLetterSummary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, nil
}

// UpdateJobStatus changes a job application's status. Moving to applied
// without a recorded or supplied date sets applied_date to today.
func (s *Service) UpdateJobStatus(ctx context.Context, id string, in StatusUpdate) (*models.JobApplication, error) {
	if err := validation.Validate(in); err != nil {
		return nil, invalid(err)
	}
	err := s.store.Transaction(ctx, func(tx store.Accessor) error {
		row, err := tx.Get(ctx, store.JobApplications, id, store.FieldAppliedDate)
		if err != nil {
			return err
		}
		date := cmp.Or(deref(in.AppliedDate), row.Str(store.FieldAppliedDate))
		if in.Status == models.StatusApplied && date == "" {
			date = s.today()
		}
		if err := tx.Update(ctx, store.JobApplications, id, store.FieldStatus, string(in.Status)); err != nil {
			return err
		}
		if date != row.Str(store.FieldAppliedDate) {
			return tx.Update(ctx, store.JobApplications, id, store.FieldAppliedDate, date)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetJobApplication(ctx, id)
}

// Delete removes one record. Links pointing at it are left for the auditor
// to clear.
func (s *Service) Delete(ctx context.Context, kind models.Kind, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: kind %q", apperr.ErrInvalid, kind)
	}
	return s.store.Delete(ctx, store.TableFor(kind), id)
}

func (s *Service) today() string {
	return s.now().Format(time.DateOnly)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func list[T any](ctx context.Context, s store.Store, table store.Table, conv func(store.Row) T) ([]T, error) {
	rows, err := s.List(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = conv(row)
	}
	return out, nil
}

func toResume(row store.Row) models.Resume {
	return models.Resume{
		ID:               row.Str(store.FieldID),
		Title:            row.Str(store.FieldTitle),
		Template:         models.Template(row.Str(store.FieldTemplate)),
		JobApplicationID: row.Str(store.FieldJobApplicationID),
		CreatedAt:        store.ParseTime(row.Str(store.FieldCreatedAt)),
		UpdatedAt:        store.ParseTime(row.Str(store.FieldUpdatedAt)),
	}
}

func toCoverLetter(row store.Row) models.CoverLetter {
	return models.CoverLetter{
		ID:               row.Str(store.FieldID),
		Title:            row.Str(store.FieldTitle),
		CompanyName:      row.Str(store.FieldCompanyName),
		JobTitle:         row.Str(store.FieldJobTitle),
		ResumeID:         row.Str(store.FieldResumeID),
		JobApplicationID: row.Str(store.FieldJobApplicationID),
		CreatedAt:        store.ParseTime(row.Str(store.FieldCreatedAt)),
		UpdatedAt:        store.ParseTime(row.Str(store.FieldUpdatedAt)),
	}
}

func toJobApplication(row store.Row) models.JobApplication {
	return models.JobApplication{
		ID:            row.Str(store.FieldID),
		CompanyName:   row.Str(store.FieldCompanyName),
		JobTitle:      row.Str(store.FieldJobTitle),
		Location:      row.Str(store.FieldLocation),
		Status:        models.JobStatus(row.Str(store.FieldStatus)),
		AppliedDate:   row.Str(store.FieldAppliedDate),
		ResumeID:      row.Str(store.FieldResumeID),
		CoverLetterID: row.Str(store.FieldCoverLetterID),
		CreatedAt:     store.ParseTime(row.Str(store.FieldCreatedAt)),
		UpdatedAt:     store.ParseTime(row.Str(store.FieldUpdatedAt)),
	}
}
