package workflow

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"p9e.in/launchpad/models"
)

const maxGoLiveNotes = 5000

// GoLiveService toggles a deployed site between live and offline.
type GoLiveService struct {
	base
}

func NewGoLiveService(db *gorm.DB, log zerolog.Logger) *GoLiveService {
	return &GoLiveService{base: newBase(db, log, "go_live")}
}

type GoLiveInput struct {
	Notes *string `json:"notes"`
}

func (g *GoLiveService) Get(ctx context.Context, siteID uuid.UUID) (*models.GoLiveData, error) {
	db := g.db.WithContext(ctx)
	if _, err := loadSite(db, siteID); err != nil {
		return nil, err
	}
	record, err := findGoLive(db, siteID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, NotFound("no go-live data for site %s", siteID)
	}
	return record, nil
}

// Activate signs off a deployed site and marks it live. A failure to move
// the site itself is logged; the go-live record still commits.
func (g *GoLiveService) Activate(ctx context.Context, actor Actor, siteID uuid.UUID, in GoLiveInput) (*models.GoLiveData, error) {
	record, err := g.activate(ctx, actor, siteID, in)
	observe("go_live", "activate", err)
	return record, err
}

func (g *GoLiveService) activate(ctx context.Context, actor Actor, siteID uuid.UUID, in GoLiveInput) (*models.GoLiveData, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleDeploymentEngineer); err != nil {
		return nil, err
	}
	notes := ""
	if in.Notes != nil {
		notes = strings.TrimSpace(*in.Notes)
	}
	if notes == "" {
		return nil, FieldErrors("notes are required to go live", map[string]string{"notes": "is required"}, true)
	}
	if err := checkNotesLength(notes); err != nil {
		return nil, err
	}

	var record *models.GoLiveData
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		site, err := loadSite(tx, siteID)
		if err != nil {
			return err
		}
		if site.Status != models.SiteDeployed {
			return PrerequisiteNotMet("site must be deployed before going live (current status: %s)", site.Status)
		}

		existing, err := findGoLive(tx, siteID)
		if err != nil {
			return err
		}
		record = existing
		if record == nil {
			record = &models.GoLiveData{SiteID: siteID}
		}
		now := g.now()
		by := actor.ID
		record.Status = models.GoLiveLive
		record.GoLiveDate = &now
		record.SignedOffBy = &by
		record.Notes = &notes

		if existing == nil {
			err = tx.Create(record).Error
		} else {
			err = tx.Save(record).Error
		}
		if err != nil {
			return storageError(err, "go-live data already exists for this site")
		}

		if err := tx.Transaction(func(sp *gorm.DB) error {
			return g.advanceSite(sp, site, models.SiteLive)
		}); err != nil {
			g.log.Error().Err(err).Str("site_id", siteID.String()).Msg("go-live recorded but site status update failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.log.Info().Str("site_id", siteID.String()).Str("by", actor.ID).Msg("site is live")
	return record, nil
}

// Deactivate takes a live site offline. Sign-off date and signer are kept.
func (g *GoLiveService) Deactivate(ctx context.Context, actor Actor, siteID uuid.UUID, in GoLiveInput) (*models.GoLiveData, error) {
	record, err := g.deactivate(ctx, actor, siteID, in)
	observe("go_live", "deactivate", err)
	return record, err
}

func (g *GoLiveService) deactivate(ctx context.Context, actor Actor, siteID uuid.UUID, in GoLiveInput) (*models.GoLiveData, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleDeploymentEngineer); err != nil {
		return nil, err
	}
	notes := ""
	if in.Notes != nil {
		notes = strings.TrimSpace(*in.Notes)
		if err := checkNotesLength(notes); err != nil {
			return nil, err
		}
	}

	var record *models.GoLiveData
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		site, err := loadSite(tx, siteID)
		if err != nil {
			return err
		}
		if record, err = findGoLive(tx, siteID); err != nil {
			return err
		}
		if record == nil {
			return NotFound("no go-live data for site %s", siteID)
		}
		if record.Status != models.GoLiveLive {
			return Validation("site is not live (go-live status: %s)", record.Status)
		}

		record.Status = models.GoLiveOffline
		if notes != "" {
			record.Notes = &notes
		}
		if err := tx.Save(record).Error; err != nil {
			return storageError(err, "go-live data already exists for this site")
		}
		return g.revertSite(tx, site, models.SiteProcurementDone)
	})
	if err != nil {
		return nil, err
	}

	g.log.Info().Str("site_id", siteID.String()).Str("by", actor.ID).Msg("site taken offline")
	return record, nil
}

func checkNotesLength(notes string) error {
	if utf8.RuneCountInString(notes) > maxGoLiveNotes {
		return FieldErrors("notes are too long", map[string]string{"notes": "must be at most 5000 characters"}, true)
	}
	return nil
}

func findGoLive(tx *gorm.DB, siteID uuid.UUID) (*models.GoLiveData, error) {
	var record models.GoLiveData
	if err := tx.Where("site_id = ?", siteID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, Internal(err, "failed to load go-live data")
	}
	return &record, nil
}
