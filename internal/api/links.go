package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/models"
)

// manager resolves {kind}/{id} to the entity's link manager. It writes a
// 400 for an unknown kind and a 404 for a missing entity, returning nil.
func (h *Handler) manager(w http.ResponseWriter, r *http.Request) *linker.Manager {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return nil
	}
	m, err := h.links.Lookup(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "lookup entity")
		return nil
	}
	return m
}

// writeState responds with st. A failed state keeps its generic message
// and maps its cause to the status code; a successful one carries the
// current ETag.
func (h *Handler) writeState(w http.ResponseWriter, r *http.Request, m *linker.Manager, st linker.State) {
	if st.Error != "" {
		status := statusOf(st.Cause())
		if errors.Is(st.Cause(), apperr.ErrNotFound) {
			h.links.ForgetMissing(r.Context(), m.Kind(), m.ID())
		}
		writeJSON(w, status, st)
		return
	}
	if v, err := m.Version(r.Context()); err == nil {
		w.Header().Set("ETag", fmt.Sprintf("%q", v))
	}
	writeJSON(w, http.StatusOK, st)
}

// GetLinks handles GET /api/links/{kind}/{id}.
//
//	@Summary		Audit an entity and return its links
//	@Tags			links
//	@Produce		json
//	@Param			kind	path		string	true	"Entity kind"	Enums(resume, coverLetter, jobApplication)
//	@Param			id		path		string	true	"Entity id"
//	@Success		200		{object}	LinkState
//	@Failure		404		{object}	LinkState
//	@Security		BearerAuth
//	@Router			/links/{kind}/{id} [get]
func (h *Handler) GetLinks(w http.ResponseWriter, r *http.Request) {
	m := h.manager(w, r)
	if m == nil {
		return
	}
	h.writeState(w, r, m, m.Refresh(r.Context()))
}

// LinkJob handles PUT /api/links/{kind}/{id}/job.
//
//	@Summary		Link a job application
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			kind		path		string		true	"Entity kind"	Enums(resume, coverLetter)
//	@Param			id			path		string		true	"Entity id"
//	@Param			If-Match	header		string		false	"ETag from GET /links"
//	@Param			body		body		LinkRequest	true	"Job application to link"
//	@Success		200			{object}	LinkState
//	@Failure		409			{object}	LinkState
//	@Security		BearerAuth
//	@Router			/links/{kind}/{id}/job [put]
func (h *Handler) LinkJob(w http.ResponseWriter, r *http.Request) {
	m, req, ok := h.linkTarget(w, r)
	if !ok {
		return
	}
	h.writeState(w, r, m, m.LinkJob(linker.ExpectVersion(r.Context(), ifMatch(r)), req.ID))
}

// UnlinkJob handles DELETE /api/links/{kind}/{id}/job.
func (h *Handler) UnlinkJob(w http.ResponseWriter, r *http.Request) {
	m := h.manager(w, r)
	if m == nil {
		return
	}
	h.writeState(w, r, m, m.UnlinkJob(linker.ExpectVersion(r.Context(), ifMatch(r))))
}

// LinkResume handles PUT /api/links/{kind}/{id}/resume.
func (h *Handler) LinkResume(w http.ResponseWriter, r *http.Request) {
	m, req, ok := h.linkTarget(w, r)
	if !ok {
		return
	}
	h.writeState(w, r, m, m.LinkResume(linker.ExpectVersion(r.Context(), ifMatch(r)), req.ID))
}

// UnlinkResume handles DELETE /api/links/{kind}/{id}/resume.
func (h *Handler) UnlinkResume(w http.ResponseWriter, r *http.Request) {
	m := h.manager(w, r)
	if m == nil {
		return
	}
	h.writeState(w, r, m, m.UnlinkResume(linker.ExpectVersion(r.Context(), ifMatch(r))))
}

// LinkCoverLetter handles PUT /api/links/{kind}/{id}/cover-letters/{clid}.
func (h *Handler) LinkCoverLetter(w http.ResponseWriter, r *http.Request) {
	m := h.manager(w, r)
	if m == nil {
		return
	}
	ctx := linker.ExpectVersion(r.Context(), ifMatch(r))
	h.writeState(w, r, m, m.LinkCoverLetter(ctx, chi.URLParam(r, "clid")))
}

// UnlinkCoverLetter handles DELETE /api/links/{kind}/{id}/cover-letters/{clid}.
func (h *Handler) UnlinkCoverLetter(w http.ResponseWriter, r *http.Request) {
	m := h.manager(w, r)
	if m == nil {
		return
	}
	ctx := linker.ExpectVersion(r.Context(), ifMatch(r))
	h.writeState(w, r, m, m.UnlinkCoverLetter(ctx, chi.URLParam(r, "clid")))
}

func (h *Handler) linkTarget(w http.ResponseWriter, r *http.Request) (*linker.Manager, LinkRequest, bool) {
	var req LinkRequest
	m := h.manager(w, r)
	if m == nil || !decodeJSON(w, r, &req) {
		return nil, req, false
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return nil, req, false
	}
	return m, req, true
}
