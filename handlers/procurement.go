package handlers

import (
	"net/http"
	"slices"
	"strings"

	"p9e.in/launchpad/middleware"
	"p9e.in/launchpad/models"
	"p9e.in/launchpad/pkg/storage"
	"p9e.in/launchpad/pkg/workflow"
)

const maxReceiptBytes = 10 << 20

var receiptTypes = []string{"application/pdf", "image/jpeg", "image/png"}

// GET /api/v1/sites/{id}/procurement
func (h *Handler) GetProcurement(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	record, err := h.services.Procurement.Get(r.Context(), siteID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Successfully fetched procurement data", record)
}

// PUT /api/v1/sites/{id}/procurement
func (h *Handler) SaveProcurement(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in workflow.ProcurementInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	record, err := h.services.Procurement.SaveDraft(r.Context(), middleware.Actor(r), siteID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Procurement data saved successfully", record)
}

// POST /api/v1/sites/{id}/procurement/complete
func (h *Handler) CompleteProcurement(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in workflow.ProcurementInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	record, err := h.services.Procurement.Complete(r.Context(), middleware.Actor(r), siteID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Procurement completed successfully", record)
}

// UploadReceipt stores a delivery receipt and returns its URL for use as
// delivery_receipt_url.
// POST /api/v1/sites/{id}/procurement/receipt (multipart field "file")
func (h *Handler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	actor := middleware.Actor(r)
	if !actor.Authenticated() {
		h.writeError(w, r, workflow.Unauthenticated())
		return
	}
	if !actor.HasRole(models.RoleAdmin, models.RoleDeploymentEngineer) {
		h.writeError(w, r, workflow.Forbidden("only admins and deployment engineers may upload receipts"))
		return
	}
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.services.Sites.Get(r.Context(), siteID); err != nil {
		h.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes+(1<<20))
	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		h.writeError(w, r, workflow.FieldErrors("bad multipart form", map[string]string{"file": "must be a multipart upload of at most 10MB"}, false))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, workflow.FieldErrors("missing file field", map[string]string{"file": "is required"}, false))
		return
	}
	defer file.Close()

	contentType := strings.ToLower(strings.TrimSpace(strings.Split(header.Header.Get("Content-Type"), ";")[0]))
	if !slices.Contains(receiptTypes, contentType) {
		h.writeError(w, r, workflow.FieldErrors("unsupported receipt type",
			map[string]string{"file": "must be a PDF, JPEG or PNG"}, false))
		return
	}

	key := h.services.Procurement.ReceiptKey(siteID, storage.SafeFilename(header.Filename))
	url, err := h.receipts.Put(r.Context(), key, file, header.Size, contentType)
	if err != nil {
		h.writeError(w, r, workflow.Internal(err, "failed to store receipt"))
		return
	}

	h.log.Info().Str("site_id", siteID.String()).Str("key", key).Str("by", actor.ID).Msg("delivery receipt uploaded")
	writeJSON(w, http.StatusCreated, "Receipt uploaded successfully", map[string]string{
		"url": url,
		"key": key,
	})
}
