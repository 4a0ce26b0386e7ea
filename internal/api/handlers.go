package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/records"
)

// Handler holds API route handlers.
type Handler struct {
	records *records.Service
	links   *linker.Registry
	auditor *linker.Auditor
}

// NewHandler creates a new Handler.
func NewHandler(svc *records.Service, links *linker.Registry, auditor *linker.Auditor) *Handler {
	return &Handler{records: svc, links: links, auditor: auditor}
}

func createHandler[In, Out any](op string, fn func(context.Context, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if !decodeJSON(w, r, &in) {
			return
		}
		out, err := fn(r.Context(), in)
		if err != nil {
			writeError(w, err, op)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func getHandler[Out any](op string, fn func(context.Context, string) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err, op)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ListResumes handles GET /api/resumes.
//
//	@Summary		List resumes
//	@Tags			resumes
//	@Produce		json
//	@Success		200	{object}	ResumeListResponse
//	@Security		BearerAuth
//	@Router			/resumes [get]
func (h *Handler) ListResumes(w http.ResponseWriter, r *http.Request) {
	items, err := h.records.ListResumes(r.Context())
	if err != nil {
		writeError(w, err, "list resumes")
		return
	}
	writeJSON(w, http.StatusOK, ResumeListResponse{Resumes: items})
}

// ListCoverLetters handles GET /api/cover-letters.
//
//	@Summary		List cover letters
//	@Tags			cover-letters
//	@Produce		json
//	@Success		200	{object}	CoverLetterListResponse
//	@Security		BearerAuth
//	@Router			/cover-letters [get]
func (h *Handler) ListCoverLetters(w http.ResponseWriter, r *http.Request) {
	items, err := h.records.ListCoverLetters(r.Context())
	if err != nil {
		writeError(w, err, "list cover letters")
		return
	}
	writeJSON(w, http.StatusOK, CoverLetterListResponse{CoverLetters: items})
}

// ListJobApplications handles GET /api/job-applications.
//
//	@Summary		List job applications
//	@Tags			job-applications
//	@Produce		json
//	@Success		200	{object}	JobApplicationListResponse
//	@Security		BearerAuth
//	@Router			/job-applications [get]
func (h *Handler) ListJobApplications(w http.ResponseWriter, r *http.Request) {
	items, err := h.records.ListJobApplications(r.Context())
	if err != nil {
		writeError(w, err, "list job applications")
		return
	}
	writeJSON(w, http.StatusOK, JobApplicationListResponse{JobApplications: items})
}

// ResumeCoverLetters handles GET /api/resumes/{id}/cover-letters.
//
//	@Summary		List the cover letters of a resume, most recently updated first
//	@Tags			resumes
//	@Produce		json
//	@Param			id	path		string	true	"Resume id"
//	@Success		200	{object}	ResumeCoverLettersResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resumes/{id}/cover-letters [get]
func (h *Handler) ResumeCoverLetters(w http.ResponseWriter, r *http.Request) {
	items, err := h.records.ResumeCoverLetters(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "list resume cover letters")
		return
	}
	writeJSON(w, http.StatusOK, ResumeCoverLettersResponse{CoverLetters: items})
}

// UpdateJobStatus handles PATCH /api/job-applications/{id}.
//
//	@Summary		Change the status of a job application
//	@Tags			job-applications
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Job application id"
//	@Param			body	body		UpdateStatusRequest	true	"New status"
//	@Success		200		{object}	models.JobApplication
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/job-applications/{id} [patch]
func (h *Handler) UpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	job, err := h.records.UpdateJobStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err, "update job status")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// deleteHandler removes a record and drops its cached link manager.
// References to the record are cleared by the next audit.
func (h *Handler) deleteHandler(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := h.records.Delete(r.Context(), kind, id); err != nil {
			writeError(w, err, "delete "+string(kind))
			return
		}
		h.links.Forget(kind, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// Audit handles POST /api/audit.
//
//	@Summary		Audit every record and repair broken links
//	@Tags			links
//	@Produce		json
//	@Param			dry_run	query		bool	false	"Report without repairing"
//	@Success		200		{object}	AuditResponse
//	@Security		BearerAuth
//	@Router			/audit [post]
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"
	rep, err := h.auditor.Sweep(r.Context(), !dryRun)
	if err != nil {
		writeError(w, err, "audit")
		return
	}
	if rep.Found == nil {
		rep.Found = []linker.Inconsistency{}
	}
	writeJSON(w, http.StatusOK, rep)
}
