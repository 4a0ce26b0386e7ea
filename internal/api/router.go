package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/careerlink/internal/models"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Records.
	r.Route("/resumes", func(r chi.Router) {
		r.Get("/", h.ListResumes)
		r.Post("/", createHandler("create resume", h.records.CreateResume))
		r.Get("/{id}", getHandler("get resume", h.records.GetResume))
		r.Delete("/{id}", h.deleteHandler(models.KindResume))
		r.Get("/{id}/cover-letters", h.ResumeCoverLetters)
	})
	r.Route("/cover-letters", func(r chi.Router) {
		r.Get("/", h.ListCoverLetters)
		r.Post("/", createHandler("create cover letter", h.records.CreateCoverLetter))
		r.Get("/{id}", getHandler("get cover letter", h.records.GetCoverLetter))
		r.Delete("/{id}", h.deleteHandler(models.KindCoverLetter))
	})
	r.Route("/job-applications", func(r chi.Router) {
		r.Get("/", h.ListJobApplications)
		r.Post("/", createHandler("create job application", h.records.CreateJobApplication))
		r.Get("/{id}", getHandler("get job application", h.records.GetJobApplication))
		r.Patch("/{id}", h.UpdateJobStatus)
		r.Delete("/{id}", h.deleteHandler(models.KindJobApplication))
	})

	// Links.
	r.Route("/links/{kind}/{id}", func(r chi.Router) {
		r.Get("/", h.GetLinks)
		r.Post("/refresh", h.GetLinks)
		r.Put("/job", h.LinkJob)
		r.Delete("/job", h.UnlinkJob)
		r.Put("/resume", h.LinkResume)
		r.Delete("/resume", h.UnlinkResume)
		r.Put("/cover-letters/{clid}", h.LinkCoverLetter)
		r.Delete("/cover-letters/{clid}", h.UnlinkCoverLetter)
	})

	r.Post("/audit", h.Audit)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
