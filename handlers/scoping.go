package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"p9e.in/launchpad/middleware"
	"p9e.in/launchpad/models"
	"p9e.in/launchpad/pkg/workflow"
)

// POST /api/v1/sites/{id}/scoping/submit
func (h *Handler) SubmitScoping(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in workflow.ScopingInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	approval, err := h.services.Scoping.Submit(r.Context(), middleware.Actor(r), siteID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Scoping submitted for approval successfully", approval)
}

// POST /api/v1/sites/{id}/scoping/resubmit
func (h *Handler) ResubmitScoping(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in workflow.ScopingInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	approval, err := h.services.Scoping.Resubmit(r.Context(), middleware.Actor(r), siteID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Scoping resubmitted for approval successfully", approval)
}

func approvalFilter(r *http.Request) (workflow.ApprovalFilter, bool, error) {
	var f workflow.ApprovalFilter
	if s := r.URL.Query().Get("status"); s != "" {
		f.Status = models.ApprovalStatus(s)
		if !f.Status.Valid() {
			return f, false, workflow.FieldErrors("invalid status",
				map[string]string{"status": "must be one of: pending, approved, rejected, changes_requested"}, false)
		}
	}
	siteID, ok, err := queryID(r, "site_id")
	if err != nil {
		return f, false, err
	}
	f.SiteID = siteID
	return f, ok, nil
}

// ListApprovals returns the latest approval of a site when site_id is
// given, else every approval matching status.
// GET /api/v1/scoping-approvals?status=...&site_id=...
func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	filter, bySite, err := approvalFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if bySite {
		approval, err := h.services.Scoping.Latest(r.Context(), filter.SiteID, filter.Status)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, "Successfully fetched scoping approval", approval)
		return
	}

	approvals, err := h.services.Scoping.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Successfully fetched scoping approvals", approvals)
}

// GET /api/v1/scoping-approvals/{id}
func (h *Handler) GetApproval(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	approval, err := h.services.Scoping.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Successfully fetched scoping approval", approval)
}

// GET /api/v1/scoping-approvals/{id}/history
func (h *Handler) ApprovalHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actions, err := h.services.Scoping.History(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Successfully fetched approval history", actions)
}

// POST /api/v1/scoping-approvals/{id}/approve
func (h *Handler) ApproveScoping(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.services.Scoping.Approve, "Scoping approved successfully")
}

// POST /api/v1/scoping-approvals/{id}/reject
func (h *Handler) RejectScoping(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.services.Scoping.Reject, "Scoping rejected successfully")
}

type reviewFunc func(ctx context.Context, actor workflow.Actor, id uuid.UUID, in workflow.ReviewInput) (*models.ScopingApproval, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc, message string) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in workflow.ReviewInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	approval, err := fn(r.Context(), middleware.Actor(r), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message, approval)
}
