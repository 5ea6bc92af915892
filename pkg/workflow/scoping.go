package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"p9e.in/launchpad/models"
)

// ScopingService manages versioned scoping approvals:
//
//	pending -> approved | rejected
//	rejected -(resubmit)-> new pending row, version+1
//
// At most one pending approval exists per site; the partial unique index
// idx_scoping_approvals_one_pending backs the lookup done here.
type ScopingService struct {
	base
}

func NewScopingService(db *gorm.DB, log zerolog.Logger) *ScopingService {
	return &ScopingService{base: newBase(db, log, "scoping")}
}

type ScopingInput struct {
	SiteName           string            `json:"site_name" validate:"notblank,max=255"`
	SelectedSoftware   []json.RawMessage `json:"selected_software"`
	SelectedHardware   []json.RawMessage `json:"selected_hardware"`
	CostSummary        json.RawMessage   `json:"cost_summary"`
	PreviousApprovalID *uuid.UUID        `json:"previous_approval_id,omitempty"`
}

type ReviewInput struct {
	Comment         string `json:"comment"`
	RejectionReason string `json:"rejection_reason"`
}

// ApprovalFilter narrows approval listings. Zero values match everything.
type ApprovalFilter struct {
	Status models.ApprovalStatus
	SiteID uuid.UUID
}

const pendingConflict = "a pending approval already exists for this site"

func (s *ScopingService) Submit(ctx context.Context, actor Actor, siteID uuid.UUID, in ScopingInput) (*models.ScopingApproval, error) {
	approval, err := s.submit(ctx, actor, siteID, in)
	observe("scoping", "submit", err)
	return approval, err
}

func (s *ScopingService) submit(ctx context.Context, actor Actor, siteID uuid.UUID, in ScopingInput) (*models.ScopingApproval, error) {
	if err := requireRole(actor, models.RoleDeploymentEngineer); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if len(in.SelectedSoftware) == 0 && len(in.SelectedHardware) == 0 {
		return nil, FieldErrors("at least one software or hardware item must be selected",
			map[string]string{"selected_software": "at least one software or hardware item must be selected"}, false)
	}

	var approval *models.ScopingApproval
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadSite(tx, siteID); err != nil {
			return err
		}
		if err := ensureNoPending(tx, siteID); err != nil {
			return err
		}

		approval = s.newApproval(actor, siteID, in)
		approval.Version = 1
		if err := tx.Create(approval).Error; err != nil {
			return storageError(err, pendingConflict)
		}

		s.recordAction(tx, approval.ID, models.ActionSubmit, actor, "Scoping submitted for "+approval.SiteName)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("approval_id", approval.ID.String()).
		Str("site_id", siteID.String()).
		Str("engineer", actor.ID).
		Msg("scoping approval submitted")
	return approval, nil
}

func (s *ScopingService) Resubmit(ctx context.Context, actor Actor, siteID uuid.UUID, in ScopingInput) (*models.ScopingApproval, error) {
	approval, err := s.resubmit(ctx, actor, siteID, in)
	observe("scoping", "resubmit", err)
	return approval, err
}

func (s *ScopingService) resubmit(ctx context.Context, actor Actor, siteID uuid.UUID, in ScopingInput) (*models.ScopingApproval, error) {
	if err := requireRole(actor, models.RoleDeploymentEngineer); err != nil {
		return nil, err
	}
	if in.PreviousApprovalID == nil {
		return nil, FieldErrors("previous_approval_id is required",
			map[string]string{"previous_approval_id": "is required"}, false)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var approval *models.ScopingApproval
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadSite(tx, siteID); err != nil {
			return err
		}
		previous, err := loadApproval(tx, *in.PreviousApprovalID)
		if err != nil {
			return err
		}
		if previous.Status != models.ApprovalRejected {
			return InvalidState("only rejected approvals can be resubmitted (current status: %s)", previous.Status)
		}
		if previous.SiteID != siteID {
			return Validation("approval %s does not belong to site %s", previous.ID, siteID)
		}
		if err := ensureNoPending(tx, siteID); err != nil {
			return err
		}

		approval = s.newApproval(actor, siteID, in)
		approval.Version = previous.Version + 1
		approval.PreviousVersionID = &previous.ID
		if err := tx.Create(approval).Error; err != nil {
			return storageError(err, pendingConflict)
		}

		s.recordAction(tx, approval.ID, models.ActionResubmit, actor,
			fmt.Sprintf("Scoping resubmitted for %s (version %d)", approval.SiteName, approval.Version))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("approval_id", approval.ID.String()).
		Str("previous_id", in.PreviousApprovalID.String()).
		Int("version", approval.Version).
		Msg("scoping approval resubmitted")
	return approval, nil
}

func (s *ScopingService) newApproval(actor Actor, siteID uuid.UUID, in ScopingInput) *models.ScopingApproval {
	software := in.SelectedSoftware
	if software == nil {
		software = []json.RawMessage{}
	}
	hardware := in.SelectedHardware
	if hardware == nil {
		hardware = []json.RawMessage{}
	}
	cost := models.JSONValue(in.CostSummary)
	if len(strings.TrimSpace(string(cost))) == 0 {
		cost = models.JSONValue(`{}`)
	}

	return &models.ScopingApproval{
		SiteID:                 siteID,
		SiteName:               strings.TrimSpace(in.SiteName),
		DeploymentEngineerID:   actor.ID,
		DeploymentEngineerName: actor.Name,
		Status:                 models.ApprovalPending,
		ScopingData: datatypes.NewJSONType(models.ScopingData{
			SelectedSoftware: software,
			SelectedHardware: hardware,
		}),
		CostBreakdown: cost,
		SubmittedAt:   s.now(),
	}
}

func (s *ScopingService) Approve(ctx context.Context, actor Actor, id uuid.UUID, in ReviewInput) (*models.ScopingApproval, error) {
	approval, err := s.review(ctx, actor, id, models.ActionApprove, in)
	observe("scoping", "approve", err)
	return approval, err
}

func (s *ScopingService) Reject(ctx context.Context, actor Actor, id uuid.UUID, in ReviewInput) (*models.ScopingApproval, error) {
	approval, err := s.review(ctx, actor, id, models.ActionReject, in)
	observe("scoping", "reject", err)
	return approval, err
}

func (s *ScopingService) review(ctx context.Context, actor Actor, id uuid.UUID, action models.ApprovalActionType, in ReviewInput) (*models.ScopingApproval, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleOpsManager); err != nil {
		return nil, err
	}

	var approval *models.ScopingApproval
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if approval, err = loadApproval(tx, id); err != nil {
			return err
		}
		if approval.Status != models.ApprovalPending {
			return InvalidState("approval is %s, only pending approvals can be reviewed", approval.Status)
		}

		now := s.now()
		reviewer := actor.ID
		approval.ReviewedBy = &reviewer
		approval.ReviewedAt = &now
		if comment := strings.TrimSpace(in.Comment); comment != "" {
			approval.ReviewComment = &comment
		}
		if actor.Role == models.RoleOpsManager {
			name := actor.Name
			approval.OpsManagerID = &reviewer
			approval.OpsManagerName = &name
		}

		if action == models.ActionApprove {
			approval.Status = models.ApprovalApproved
		} else {
			approval.Status = models.ApprovalRejected
			reason := strings.TrimSpace(in.RejectionReason)
			if reason == "" {
				reason = strings.TrimSpace(in.Comment)
			}
			if reason != "" {
				approval.RejectionReason = &reason
			}
		}

		if err := tx.Save(approval).Error; err != nil {
			return storageError(err, pendingConflict)
		}

		if action == models.ActionApprove {
			site, err := loadSite(tx, approval.SiteID)
			if err != nil {
				return err
			}
			if err := s.advanceSite(tx, site, models.SiteApproved); err != nil {
				return err
			}
		}

		s.recordAction(tx, approval.ID, action, actor, strings.TrimSpace(in.Comment))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("approval_id", approval.ID.String()).
		Str("action", string(action)).
		Str("reviewer", actor.ID).
		Msg("scoping approval reviewed")
	return approval, nil
}

func (s *ScopingService) Get(ctx context.Context, id uuid.UUID) (*models.ScopingApproval, error) {
	return loadApproval(s.db.WithContext(ctx), id)
}

// Latest returns the most recent approval of a site, optionally limited to
// one status.
func (s *ScopingService) Latest(ctx context.Context, siteID uuid.UUID, status models.ApprovalStatus) (*models.ScopingApproval, error) {
	q := s.db.WithContext(ctx).Where("site_id = ?", siteID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var approval models.ScopingApproval
	if err := q.Order("version DESC").Order("created_at DESC").First(&approval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("no scoping approval found for site %s", siteID)
		}
		return nil, Internal(err, "failed to load approval")
	}
	return &approval, nil
}

// List returns approvals newest first.
func (s *ScopingService) List(ctx context.Context, filter ApprovalFilter) ([]models.ScopingApproval, error) {
	q := s.db.WithContext(ctx).Model(&models.ScopingApproval{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SiteID != uuid.Nil {
		q = q.Where("site_id = ?", filter.SiteID)
	}
	var approvals []models.ScopingApproval
	if err := q.Order("created_at DESC").Find(&approvals).Error; err != nil {
		return nil, Internal(err, "failed to list approvals")
	}
	return approvals, nil
}

// History returns the audit entries of an approval, oldest first.
func (s *ScopingService) History(ctx context.Context, id uuid.UUID) ([]models.ApprovalAction, error) {
	db := s.db.WithContext(ctx)
	if _, err := loadApproval(db, id); err != nil {
		return nil, err
	}
	var actions []models.ApprovalAction
	if err := db.Where("approval_id = ?", id).Order("timestamp ASC").Find(&actions).Error; err != nil {
		return nil, Internal(err, "failed to load approval history")
	}
	return actions, nil
}

func loadApproval(tx *gorm.DB, id uuid.UUID) (*models.ScopingApproval, error) {
	var approval models.ScopingApproval
	if err := tx.First(&approval, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("scoping approval %s not found", id)
		}
		return nil, Internal(err, "failed to load approval")
	}
	return &approval, nil
}

func ensureNoPending(tx *gorm.DB, siteID uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.ScopingApproval{}).
		Where("site_id = ? AND status = ?", siteID, models.ApprovalPending).
		Count(&count).Error; err != nil {
		return Internal(err, "failed to check pending approvals")
	}
	if count > 0 {
		return Conflict(pendingConflict)
	}
	return nil
}
