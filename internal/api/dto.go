package api

import (
	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/records"
)

// CreateResumeRequest is the request body for creating a resume.
type CreateResumeRequest = records.NewResume

// CreateCoverLetterRequest is the request body for creating a cover letter.
type CreateCoverLetterRequest = records.NewCoverLetter

// CreateJobApplicationRequest is the request body for creating a job application.
type CreateJobApplicationRequest = records.NewJobApplication

// UpdateStatusRequest is the request body for PATCH /job-applications/{id}.
type UpdateStatusRequest = records.StatusUpdate

// LinkRequest names the record to link.
type LinkRequest struct {
	ID string `json:"id" example:"0190d5a4-7c1e-7b3a-9f61-2c4d8e0a1b2c" validate:"required"`
}

// LinkState is the link snapshot returned by every /links endpoint.
type LinkState = linker.State

// ResumeListResponse wraps resume listings.
type ResumeListResponse struct {
	Resumes []models.Resume `json:"resumes" validate:"required"`
}

// CoverLetterListResponse wraps cover letter listings.
type CoverLetterListResponse struct {
	CoverLetters []models.CoverLetter `json:"cover_letters" validate:"required"`
}

// JobApplicationListResponse wraps job application listings.
type JobApplicationListResponse struct {
	JobApplications []models.JobApplication `json:"job_applications" validate:"required"`
}

// ResumeCoverLettersResponse lists the cover letters of one resume.
type ResumeCoverLettersResponse struct {
	CoverLetters []models.CoverLetterSummary `json:"cover_letters" validate:"required"`
}

// AuditResponse is the result of POST /audit.
type AuditResponse = linker.SweepReport
