package handlers

import (
	"net/http"

	"p9e.in/launchpad/middleware"
	"p9e.in/launchpad/models"
	"p9e.in/launchpad/pkg/workflow"
)

type stageRequest struct {
	Status models.SiteStatus `json:"status"`
}

// GET /api/v1/sites
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.services.Sites.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Successfully fetched sites", sites)
}

// POST /api/v1/sites
func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var in workflow.SiteInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	site, err := h.services.Sites.Create(r.Context(), middleware.Actor(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Site created successfully", site)
}

// GET /api/v1/sites/{id}
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	site, err := h.services.Sites.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Successfully fetched site", site)
}

// PUT /api/v1/sites/{id}
func (h *Handler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in workflow.SiteInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	site, err := h.services.Sites.Rename(r.Context(), middleware.Actor(r), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Site updated successfully", site)
}

// DELETE /api/v1/sites/{id}
func (h *Handler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.services.Sites.Delete(r.Context(), middleware.Actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Site deleted successfully", nil)
}

// POST /api/v1/sites/{id}/stage
func (h *Handler) MarkSiteStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req stageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	site, err := h.services.Sites.MarkStage(r.Context(), middleware.Actor(r), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Site status updated", site)
}
