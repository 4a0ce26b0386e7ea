// Package models defines the domain types for careerlink.
package models

import (
	"fmt"
	"time"
)

// Kind identifies one of the three linkable record kinds.
type Kind string

const (
	KindResume         Kind = "resume"
	KindCoverLetter    Kind = "coverLetter"
	KindJobApplication Kind = "jobApplication"
)

// Kinds lists every record kind in sweep order.
var Kinds = []Kind{KindResume, KindCoverLetter, KindJobApplication}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindResume, KindCoverLetter, KindJobApplication:
		return true
	}
	return false
}

// JobStatus is the workflow state of a job application.
type JobStatus string

const (
	StatusSaved        JobStatus = "saved"
	StatusApplied      JobStatus = "applied"
	StatusInterviewing JobStatus = "interviewing"
	StatusOffer        JobStatus = "offer"
	StatusRejected     JobStatus = "rejected"
	StatusAccepted     JobStatus = "accepted"
	StatusDeclined     JobStatus = "declined"
)

// Statuses is the workflow order of job statuses.
var Statuses = []JobStatus{
	StatusSaved, StatusApplied, StatusInterviewing, StatusOffer,
	StatusRejected, StatusAccepted, StatusDeclined,
}

// Template is the visual layout of a resume.
type Template string

const (
	TemplateModern       Template = "modern"
	TemplateClassic      Template = "classic"
	TemplateMinimal      Template = "minimal"
	TemplateCreative     Template = "creative"
	TemplateProfessional Template = "professional"
)

// Templates lists the supported resume templates.
var Templates = []Template{
	TemplateModern, TemplateClassic, TemplateMinimal, TemplateCreative, TemplateProfessional,
}

// Resume is a resume record. An empty reference means unlinked.
type Resume struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Template         Template  `json:"template"`
	JobApplicationID string    `json:"job_application_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CoverLetter is a cover letter record.
type CoverLetter struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	CompanyName      string    `json:"company_name,omitempty"`
	JobTitle         string    `json:"job_title,omitempty"`
	ResumeID         string    `json:"resume_id,omitempty"`
	JobApplicationID string    `json:"job_application_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// JobApplication is a tracked job application.
type JobApplication struct {
	ID            string    `json:"id"`
	CompanyName   string    `json:"company_name"`
	JobTitle      string    `json:"job_title"`
	Location      string    `json:"location,omitempty"`
	Status        JobStatus `json:"status"`
	AppliedDate   string    `json:"applied_date,omitempty"`
	ResumeID      string    `json:"resume_id,omitempty"`
	CoverLetterID string    `json:"cover_letter_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LinkedJob is the display projection of a linked job application.
type LinkedJob struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	JobTitle    string    `json:"job_title"`
	Location    string    `json:"location,omitempty"`
	Status      JobStatus `json:"status"`
}

// LinkedResume is the display projection of a linked resume.
type LinkedResume struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Template Template `json:"template"`
}

// LinkedCoverLetter is the display projection of a linked cover letter.
type LinkedCoverLetter struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	CompanyName string `json:"company_name,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
}

// CoverLetterSummary is a cover letter listed under its resume.
type CoverLetterSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CompanyName string    `json:"company_name,omitempty"`
	JobTitle    string    `json:"job_title,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
