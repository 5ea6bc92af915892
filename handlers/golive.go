package handlers

import (
	"net/http"

	"p9e.in/launchpad/middleware"
	"p9e.in/launchpad/pkg/workflow"
)

// GET /api/v1/sites/{id}/go-live
func (h *Handler) GetGoLive(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	record, err := h.services.GoLive.Get(r.Context(), siteID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Successfully fetched go-live data", record)
}

// POST /api/v1/sites/{id}/go-live
func (h *Handler) ActivateGoLive(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in workflow.GoLiveInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	record, err := h.services.GoLive.Activate(r.Context(), middleware.Actor(r), siteID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Site is now live", record)
}

// PUT /api/v1/sites/{id}/go-live
func (h *Handler) DeactivateGoLive(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in workflow.GoLiveInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	record, err := h.services.GoLive.Deactivate(r.Context(), middleware.Actor(r), siteID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Site taken offline", record)
}
