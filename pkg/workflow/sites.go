package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"p9e.in/launchpad/models"
	"p9e.in/launchpad/pkg/metrics"
)

// SiteService manages the site aggregate. Status moves always go through
// the transition table in models.
type SiteService struct {
	base
}

func NewSiteService(db *gorm.DB, log zerolog.Logger) *SiteService {
	return &SiteService{base: newBase(db, log, "sites")}
}

type SiteInput struct {
	Name string `json:"name" validate:"notblank,max=255"`
}

func (s *SiteService) Create(ctx context.Context, actor Actor, in SiteInput) (*models.Site, error) {
	if !actor.Authenticated() {
		return nil, Unauthenticated()
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	site := &models.Site{Name: in.Name, Status: models.SiteCreated}
	if err := s.db.WithContext(ctx).Create(site).Error; err != nil {
		return nil, storageError(err, "site already exists")
	}
	s.log.Info().Str("site_id", site.ID.String()).Str("by", actor.ID).Msg("site created")
	return site, nil
}

func (s *SiteService) Get(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	return loadSite(s.db.WithContext(ctx), id)
}

func (s *SiteService) List(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&sites).Error; err != nil {
		return nil, Internal(err, "failed to list sites")
	}
	return sites, nil
}

// Rename updates the descriptive fields of a site. Status is not writable here.
func (s *SiteService) Rename(ctx context.Context, actor Actor, id uuid.UUID, in SiteInput) (*models.Site, error) {
	if !actor.Authenticated() {
		return nil, Unauthenticated()
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var site *models.Site
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if site, err = loadSite(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Site{}).Where("id = ?", id).Update("name", in.Name).Error; err != nil {
			return Internal(err, "failed to update site")
		}
		site.Name = in.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

// Delete removes a site and everything hanging off it. Deployed and live
// sites are kept.
func (s *SiteService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := requireRole(actor, models.RoleAdmin, models.RoleDeploymentEngineer); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		site, err := loadSite(tx, id)
		if err != nil {
			return err
		}
		if !site.Status.Deletable() {
			return InvalidState("site in status %q cannot be deleted", site.Status)
		}

		pages := tx.Model(&models.Page{}).Select("id").Where("site_id = ?", id)
		sections := tx.Model(&models.Section{}).Select("id").Where("page_id IN (?)", pages)
		approvals := tx.Model(&models.ScopingApproval{}).Select("id").Where("site_id = ?", id)

		steps := []struct {
			what string
			run  func() error
		}{
			{"fields", func() error { return tx.Where("section_id IN (?)", sections).Delete(&models.Field{}).Error }},
			{"sections", func() error { return tx.Where("page_id IN (?)", pages).Delete(&models.Section{}).Error }},
			{"pages", func() error { return tx.Where("site_id = ?", id).Delete(&models.Page{}).Error }},
			{"approval actions", func() error {
				return tx.Where("approval_id IN (?)", approvals).Delete(&models.ApprovalAction{}).Error
			}},
			{"approvals", func() error { return tx.Where("site_id = ?", id).Delete(&models.ScopingApproval{}).Error }},
			{"procurement", func() error { return tx.Where("site_id = ?", id).Delete(&models.ProcurementData{}).Error }},
			{"go-live", func() error { return tx.Where("site_id = ?", id).Delete(&models.GoLiveData{}).Error }},
			{"site", func() error { return tx.Delete(&models.Site{}, "id = ?", id).Error }},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return Internal(fmt.Errorf("delete %s of site %s: %w", step.what, id, err), "failed to delete site")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("site_id", id.String()).Str("by", actor.ID).Msg("site deleted")
	return nil
}

// MarkStage records the survey stages that have no workflow of their own.
func (s *SiteService) MarkStage(ctx context.Context, actor Actor, id uuid.UUID, to models.SiteStatus) (*models.Site, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleDeploymentEngineer); err != nil {
		return nil, err
	}
	if to != models.SiteStudyDone && to != models.SiteScopingDone {
		return nil, FieldErrors("status must be site_study_done or scoping_done",
			map[string]string{"status": "must be one of: site_study_done, scoping_done"}, false)
	}

	var site *models.Site
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if site, err = loadSite(tx, id); err != nil {
			return err
		}
		if site.Status == to {
			return nil
		}
		if !site.Status.CanTransitionTo(to) {
			return InvalidState("cannot move site from %q to %q", site.Status, to)
		}
		return setSiteStatus(tx, site, to)
	})
	observe("site", "mark_"+string(to), err)
	if err != nil {
		return nil, err
	}
	return site, nil
}

func loadSite(tx *gorm.DB, id uuid.UUID) (*models.Site, error) {
	var site models.Site
	if err := tx.First(&site, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("site %s not found", id)
		}
		return nil, Internal(err, "failed to load site")
	}
	return &site, nil
}

func setSiteStatus(tx *gorm.DB, site *models.Site, to models.SiteStatus) error {
	from := site.Status
	if err := tx.Model(&models.Site{}).Where("id = ?", site.ID).Update("status", to).Error; err != nil {
		return Internal(fmt.Errorf("update site %s status %s -> %s: %w", site.ID, from, to, err), "failed to update site status")
	}
	site.Status = to
	metrics.SiteStatusChanges.WithLabelValues(string(from), string(to)).Inc()
	return nil
}

// advanceSite moves the site forward to `to`. A site already at or past
// `to` is left alone.
func (b *base) advanceSite(tx *gorm.DB, site *models.Site, to models.SiteStatus) error {
	if site.Status == to {
		return nil
	}
	if to.Rank() <= site.Status.Rank() {
		b.log.Info().
			Str("site_id", site.ID.String()).
			Str("status", string(site.Status)).
			Str("target", string(to)).
			Msg("site already past target status, leaving it")
		return nil
	}
	if !site.Status.CanTransitionTo(to) {
		return InvalidState("cannot move site from %q to %q", site.Status, to)
	}
	if err := setSiteStatus(tx, site, to); err != nil {
		return err
	}
	b.log.Info().Str("site_id", site.ID.String()).Str("status", string(to)).Msg("site status advanced")
	return nil
}

// revertSite moves the site back to `to`, which must be allowed by the table.
func (b *base) revertSite(tx *gorm.DB, site *models.Site, to models.SiteStatus) error {
	if site.Status == to {
		return nil
	}
	if !site.Status.CanTransitionTo(to) {
		return InvalidState("cannot move site from %q to %q", site.Status, to)
	}
	if err := setSiteStatus(tx, site, to); err != nil {
		return err
	}
	b.log.Info().Str("site_id", site.ID.String()).Str("status", string(to)).Msg("site status reverted")
	return nil
}
