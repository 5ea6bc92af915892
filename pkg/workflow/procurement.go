package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"p9e.in/launchpad/models"
)

// ProcurementService runs the draft -> completed lifecycle of a site's
// delivery record. Completion is one-way and moves the site to
// procurement_done.
type ProcurementService struct {
	base
}

func NewProcurementService(db *gorm.DB, log zerolog.Logger) *ProcurementService {
	return &ProcurementService{base: newBase(db, log, "procurement")}
}

// ProcurementInput carries the editable fields. Nil means "not sent".
type ProcurementInput struct {
	DeliveryDate       *string `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	DeliveryReceiptURL *string `json:"delivery_receipt_url" validate:"omitempty,max=500,httpurl"`
	Summary            *string `json:"summary" validate:"omitempty,max=5000"`
	Status             *string `json:"status,omitempty"`
}

const maxDeliveryHorizon = 1 // years

func (p *ProcurementService) Get(ctx context.Context, siteID uuid.UUID) (*models.ProcurementData, error) {
	db := p.db.WithContext(ctx)
	if _, err := loadSite(db, siteID); err != nil {
		return nil, err
	}
	record, err := findProcurement(db, siteID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, NotFound("no procurement data for site %s", siteID)
	}
	return record, nil
}

// SaveDraft creates or updates the draft. Only the fields present in the
// input are written.
func (p *ProcurementService) SaveDraft(ctx context.Context, actor Actor, siteID uuid.UUID, in ProcurementInput) (*models.ProcurementData, error) {
	record, err := p.saveDraft(ctx, actor, siteID, in)
	observe("procurement", "save_draft", err)
	return record, err
}

func (p *ProcurementService) saveDraft(ctx context.Context, actor Actor, siteID uuid.UUID, in ProcurementInput) (*models.ProcurementData, error) {
	if !actor.Authenticated() {
		return nil, Unauthenticated()
	}
	if in.Status != nil && *in.Status != string(models.ProcurementDraft) {
		return nil, FieldErrors("status must be 'draft' when saving a draft",
			map[string]string{"status": "must be draft"}, false)
	}
	if details := p.fieldDetails(in, false); len(details) > 0 {
		return nil, FieldErrors(summarize(details), details, false)
	}

	var record *models.ProcurementData
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadSite(tx, siteID); err != nil {
			return err
		}
		existing, err := findProcurement(tx, siteID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status == models.ProcurementCompleted {
			return InvalidState("procurement is already completed and cannot return to draft")
		}

		record = existing
		if record == nil {
			record = &models.ProcurementData{SiteID: siteID}
		}
		if err := applyProcurementFields(record, in); err != nil {
			return err
		}
		record.Status = models.ProcurementDraft

		if existing == nil {
			err = tx.Create(record).Error
		} else {
			err = tx.Save(record).Error
		}
		return storageError(err, "procurement data already exists for this site")
	})
	if err != nil {
		return nil, err
	}
	p.log.Debug().Str("site_id", siteID.String()).Str("by", actor.ID).Msg("procurement draft saved")
	return record, nil
}

// Complete finalises procurement. All three fields must be present and valid.
func (p *ProcurementService) Complete(ctx context.Context, actor Actor, siteID uuid.UUID, in ProcurementInput) (*models.ProcurementData, error) {
	record, err := p.complete(ctx, actor, siteID, in)
	observe("procurement", "complete", err)
	return record, err
}

func (p *ProcurementService) complete(ctx context.Context, actor Actor, siteID uuid.UUID, in ProcurementInput) (*models.ProcurementData, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleDeploymentEngineer); err != nil {
		return nil, err
	}
	if details := p.fieldDetails(in, true); len(details) > 0 {
		return nil, FieldErrors("procurement data is incomplete or invalid", details, true)
	}

	var record *models.ProcurementData
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		site, err := loadSite(tx, siteID)
		if err != nil {
			return err
		}
		existing, err := findProcurement(tx, siteID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status == models.ProcurementCompleted {
			return InvalidState("procurement is already completed")
		}

		record = existing
		if record == nil {
			record = &models.ProcurementData{SiteID: siteID}
		}
		if err := applyProcurementFields(record, in); err != nil {
			return err
		}
		now := p.now()
		by := actor.ID
		record.Status = models.ProcurementCompleted
		record.CompletedAt = &now
		record.CompletedBy = &by

		if existing == nil {
			err = tx.Create(record).Error
		} else {
			err = tx.Save(record).Error
		}
		if err != nil {
			return storageError(err, "procurement data already exists for this site")
		}

		return p.advanceSite(tx, site, models.SiteProcurementDone)
	})
	if err != nil {
		return nil, err
	}

	p.log.Info().Str("site_id", siteID.String()).Str("by", actor.ID).Msg("procurement completed")
	return record, nil
}

// fieldDetails validates the input. With requireAll every field must be
// present and the summary must not be blank.
func (p *ProcurementService) fieldDetails(in ProcurementInput, requireAll bool) map[string]string {
	details := fieldDetails(in)
	if details == nil {
		details = map[string]string{}
	}

	if requireAll {
		if in.DeliveryDate == nil || strings.TrimSpace(*in.DeliveryDate) == "" {
			details["delivery_date"] = "is required"
		}
		if in.DeliveryReceiptURL == nil || strings.TrimSpace(*in.DeliveryReceiptURL) == "" {
			details["delivery_receipt_url"] = "is required"
		}
		if in.Summary == nil || strings.TrimSpace(*in.Summary) == "" {
			details["summary"] = "is required"
		}
	}

	if _, bad := details["delivery_date"]; !bad && in.DeliveryDate != nil && *in.DeliveryDate != "" {
		date, err := models.ParseDate(*in.DeliveryDate)
		if err != nil {
			details["delivery_date"] = "must be in YYYY-MM-DD format"
		} else if date.Time().After(p.now().AddDate(maxDeliveryHorizon, 0, 0)) {
			details["delivery_date"] = "cannot be more than 1 year in the future"
		}
	}
	return details
}

func applyProcurementFields(record *models.ProcurementData, in ProcurementInput) error {
	if in.DeliveryDate != nil {
		if *in.DeliveryDate == "" {
			record.DeliveryDate = nil
		} else {
			date, err := models.ParseDate(*in.DeliveryDate)
			if err != nil {
				return FieldErrors("delivery_date must be in YYYY-MM-DD format",
					map[string]string{"delivery_date": "must be in YYYY-MM-DD format"}, false)
			}
			record.DeliveryDate = &date
		}
	}
	if in.DeliveryReceiptURL != nil {
		record.DeliveryReceiptURL = emptyToNil(*in.DeliveryReceiptURL)
	}
	if in.Summary != nil {
		record.Summary = emptyToNil(*in.Summary)
	}
	return nil
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func findProcurement(tx *gorm.DB, siteID uuid.UUID) (*models.ProcurementData, error) {
	var record models.ProcurementData
	if err := tx.Where("site_id = ?", siteID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, Internal(err, "failed to load procurement data")
	}
	return &record, nil
}

// ReceiptKey returns the object key for a delivery receipt upload.
func (p *ProcurementService) ReceiptKey(siteID uuid.UUID, filename string) string {
	return "receipts/" + siteID.String() + "/" + p.now().UTC().Format("20060102T150405") + "-" + filename
}
