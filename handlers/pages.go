package handlers

import (
	"net/http"

	"p9e.in/launchpad/middleware"
	"p9e.in/launchpad/pkg/workflow"
)

// GetPages returns one page when page_name is given, else every page of
// the site.
// GET /api/v1/pages?site_id=...&page_name=...
func (h *Handler) GetPages(w http.ResponseWriter, r *http.Request) {
	siteID, ok, err := queryID(r, "site_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, workflow.FieldErrors("site_id is required", map[string]string{"site_id": "is required"}, false))
		return
	}

	if name := r.URL.Query().Get("page_name"); name != "" {
		page, err := h.services.Pages.Get(r.Context(), siteID, name)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, "Successfully fetched page", page)
		return
	}

	pages, err := h.services.Pages.List(r.Context(), siteID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Successfully fetched pages", pages)
}

// POST /api/v1/pages
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var in workflow.PageInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.services.Pages.Create(r.Context(), middleware.Actor(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Page created successfully", page)
}

// PUT /api/v1/pages
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	var in workflow.PageInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.services.Pages.Update(r.Context(), middleware.Actor(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Page updated successfully", page)
}

// DELETE /api/v1/pages/{id}
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.services.Pages.Delete(r.Context(), middleware.Actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Page deleted successfully", nil)
}
