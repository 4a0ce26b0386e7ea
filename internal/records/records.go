package records

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/careerlink/internal/models"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NewResume is the input for creating a resume. Links are managed by the
// linker, never set on creation.
type NewResume struct {
	ID       string          `json:"id,omitempty"`
	Title    string          `json:"title"`
	Template models.Template `json:"template,omitempty"`
}

// Validate implements validation.Validatable.
func (r NewResume) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Template, validation.In(toAny(models.Templates)...)),
	)
}

// NewCoverLetter is the input for creating a cover letter.
type NewCoverLetter struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	CompanyName string `json:"company_name,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
}

// Validate implements validation.Validatable.
func (c NewCoverLetter) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.CompanyName, validation.Length(0, 200)),
		validation.Field(&c.JobTitle, validation.Length(0, 200)),
	)
}

// NewJobApplication is the input for creating a job application.
type NewJobApplication struct {
	ID          string           `json:"id,omitempty"`
	CompanyName string           `json:"company_name"`
	JobTitle    string           `json:"job_title"`
	Location    string           `json:"location,omitempty"`
	Status      models.JobStatus `json:"status,omitempty"`
	AppliedDate string           `json:"applied_date,omitempty"`
}

// Validate implements validation.Validatable.
func (j NewJobApplication) Validate() error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.CompanyName, validation.Required, validation.Length(1, 200)),
		validation.Field(&j.JobTitle, validation.Required, validation.Length(1, 200)),
		validation.Field(&j.Status, validation.In(toAny(models.Statuses)...)),
		validation.Field(&j.AppliedDate, validation.Match(dateRe)),
	)
}

// StatusUpdate changes the workflow status of a job application. A nil
// AppliedDate keeps the stored one.
type StatusUpdate struct {
	Status      models.JobStatus `json:"status"`
	AppliedDate *string          `json:"applied_date,omitempty"`
}

// Validate implements validation.Validatable.
func (u StatusUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Status, validation.Required, validation.In(toAny(models.Statuses)...)),
		validation.Field(&u.AppliedDate, validation.NilOrNotEmpty, validation.Match(dateRe)),
	)
}

func toAny[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
