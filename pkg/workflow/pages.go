package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"p9e.in/launchpad/models"
	"p9e.in/launchpad/pkg/deployment"
)

// PageService writes the generic page/section/field store. Writes to the
// deployment page additionally run the checklist rules and may advance
// the site to deployed.
type PageService struct {
	base
}

func NewPageService(db *gorm.DB, log zerolog.Logger) *PageService {
	return &PageService{base: newBase(db, log, "pages")}
}

type FieldInput struct {
	FieldID    *uuid.UUID      `json:"field_id,omitempty"`
	FieldName  string          `json:"field_name" validate:"max=100"`
	FieldValue json.RawMessage `json:"field_value"`
}

type SectionInput struct {
	SectionID   *uuid.UUID   `json:"section_id,omitempty"`
	SectionName string       `json:"section_name" validate:"max=100"`
	Fields      []FieldInput `json:"fields" validate:"dive"`
}

// PageInput is the body of page create and update calls. On create a
// missing SiteID creates a new site named SiteName. A client supplied site
// status is never applied.
type PageInput struct {
	ID       *uuid.UUID     `json:"id,omitempty"`
	SiteID   *uuid.UUID     `json:"site_id,omitempty"`
	SiteName string         `json:"site_name" validate:"max=255"`
	PageName string         `json:"page_name" validate:"max=100"`
	Sections []SectionInput `json:"sections" validate:"dive"`
}

// pageWrite tracks one page mutation inside a transaction.
type pageWrite struct {
	tx       *gorm.DB
	site     *models.Site
	page     *models.Page
	sections []*models.Section

	steps               []deployment.Step
	stepsWritten        bool
	installationTouched bool
}

func (p *PageService) Create(ctx context.Context, actor Actor, in PageInput) (*models.Page, error) {
	if !actor.Authenticated() {
		return nil, Unauthenticated()
	}
	if err := validatePageInput(in, true); err != nil {
		return nil, err
	}

	var page *models.Page
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w := &pageWrite{tx: tx}

		if in.SiteID == nil {
			name := strings.TrimSpace(in.SiteName)
			if name == "" {
				name = in.PageName
			}
			w.site = &models.Site{Name: name, Status: models.SiteCreated}
			if err := tx.Create(w.site).Error; err != nil {
				return storageError(err, "site already exists")
			}
		} else {
			site, err := loadSite(tx, *in.SiteID)
			if err != nil {
				return err
			}
			w.site = site
		}

		w.page = &models.Page{SiteID: w.site.ID, PageName: in.PageName}
		if err := tx.Create(w.page).Error; err != nil {
			return storageError(err, "page "+in.PageName+" already exists for this site")
		}

		if err := p.applySections(w, in.Sections); err != nil {
			return err
		}
		if w.page.PageName == deployment.Page {
			if err := p.seedChecklist(w); err != nil {
				return err
			}
		}
		if err := p.finish(w); err != nil {
			return err
		}

		var err error
		page, err = loadPage(tx, w.page.ID)
		return err
	})
	observe("deployment", "page_create", err)
	if err != nil {
		return nil, err
	}
	p.log.Info().Str("page_id", page.ID.String()).Str("page", page.PageName).Str("by", actor.ID).Msg("page created")
	return page, nil
}

func (p *PageService) Update(ctx context.Context, actor Actor, in PageInput) (*models.Page, error) {
	if !actor.Authenticated() {
		return nil, Unauthenticated()
	}
	if err := validatePageInput(in, false); err != nil {
		return nil, err
	}

	var page *models.Page
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w := &pageWrite{tx: tx}

		site, err := loadSite(tx, *in.SiteID)
		if err != nil {
			return err
		}
		w.site = site

		q := tx.Preload("Sections.Fields").Where("site_id = ?", site.ID)
		if in.ID != nil {
			q = q.Where("id = ?", *in.ID)
		} else {
			q = q.Where("page_name = ?", in.PageName)
		}
		var existing models.Page
		if err := q.First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("page not found")
			}
			return Internal(err, "failed to load page")
		}
		w.page = &existing
		for i := range existing.Sections {
			w.sections = append(w.sections, &existing.Sections[i])
		}

		if err := p.applySections(w, in.Sections); err != nil {
			return err
		}
		if err := p.finish(w); err != nil {
			return err
		}
		if err := tx.Model(&models.Page{}).Where("id = ?", existing.ID).Update("updated_at", p.now()).Error; err != nil {
			return Internal(err, "failed to update page")
		}

		page, err = loadPage(tx, existing.ID)
		return err
	})
	observe("deployment", "page_update", err)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (p *PageService) Get(ctx context.Context, siteID uuid.UUID, pageName string) (*models.Page, error) {
	var page models.Page
	err := p.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Sections.Fields", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("site_id = ? AND page_name = ?", siteID, pageName).
		First(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("page %q not found for site %s", pageName, siteID)
		}
		return nil, Internal(err, "failed to load page")
	}
	return &page, nil
}

// List returns the pages of a site with their sections and fields.
func (p *PageService) List(ctx context.Context, siteID uuid.UUID) ([]models.Page, error) {
	db := p.db.WithContext(ctx)
	if _, err := loadSite(db, siteID); err != nil {
		return nil, err
	}
	var pages []models.Page
	err := db.
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Sections.Fields", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("site_id = ?", siteID).
		Order("created_at ASC").
		Find(&pages).Error
	if err != nil {
		return nil, Internal(err, "failed to list pages")
	}
	return pages, nil
}

// Delete removes a page with its sections and fields. Site status is untouched.
func (p *PageService) Delete(ctx context.Context, actor Actor, pageID uuid.UUID) error {
	if err := requireRole(actor, models.RoleAdmin, models.RoleDeploymentEngineer); err != nil {
		return err
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Page{}, "id = ?", pageID)
		if res.Error != nil {
			return Internal(res.Error, "failed to delete page")
		}
		if res.RowsAffected == 0 {
			return NotFound("page %s not found", pageID)
		}
		sections := tx.Model(&models.Section{}).Select("id").Where("page_id = ?", pageID)
		if err := tx.Where("section_id IN (?)", sections).Delete(&models.Field{}).Error; err != nil {
			return Internal(err, "failed to delete page fields")
		}
		if err := tx.Where("page_id = ?", pageID).Delete(&models.Section{}).Error; err != nil {
			return Internal(err, "failed to delete page sections")
		}
		return nil
	})
}

func validatePageInput(in PageInput, create bool) error {
	if err := validateInput(in); err != nil {
		return err
	}
	details := map[string]string{}
	if create && strings.TrimSpace(in.PageName) == "" {
		details["page_name"] = "is required"
	}
	if !create {
		if in.SiteID == nil {
			details["site_id"] = "is required"
		}
		if in.ID == nil && strings.TrimSpace(in.PageName) == "" {
			details["page_name"] = "id or page_name is required"
		}
	}
	for _, s := range in.Sections {
		if s.SectionID == nil && strings.TrimSpace(s.SectionName) == "" {
			details["section_name"] = "is required"
		}
		for _, f := range s.Fields {
			if f.FieldID == nil && strings.TrimSpace(f.FieldName) == "" {
				details["field_name"] = "is required"
			}
		}
	}
	if len(details) > 0 {
		return FieldErrors(summarize(details), details, false)
	}
	return nil
}

func (p *PageService) applySections(w *pageWrite, sections []SectionInput) error {
	for _, in := range sections {
		section, err := p.section(w, in)
		if err != nil {
			return err
		}
		for _, f := range in.Fields {
			if err := p.writeField(w, section, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// section finds the targeted section by id or name, creating it by name.
func (p *PageService) section(w *pageWrite, in SectionInput) (*models.Section, error) {
	for _, s := range w.sections {
		if in.SectionID != nil && s.ID == *in.SectionID {
			return s, nil
		}
		if in.SectionID == nil && s.SectionName == in.SectionName {
			return s, nil
		}
	}
	if in.SectionID != nil {
		return nil, NotFound("section %s not found on page %s", *in.SectionID, w.page.PageName)
	}
	return p.createSection(w, in.SectionName)
}

func (p *PageService) createSection(w *pageWrite, name string) (*models.Section, error) {
	s := &models.Section{PageID: w.page.ID, SectionName: name}
	if err := w.tx.Create(s).Error; err != nil {
		return nil, storageError(err, "section "+name+" already exists on this page")
	}
	w.sections = append(w.sections, s)
	return s, nil
}

func (p *PageService) findSection(w *pageWrite, name string) *models.Section {
	for _, s := range w.sections {
		if s.SectionName == name {
			return s
		}
	}
	return nil
}

// writeField stores one field value. On the deployment page the value is
// decoded into its typed form first so invalid steps or notes abort the
// whole write.
func (p *PageService) writeField(w *pageWrite, section *models.Section, in FieldInput) error {
	var field *models.Field
	if in.FieldID != nil {
		field = fieldByID(section, *in.FieldID)
		if field == nil {
			return NotFound("field %s not found in section %s", *in.FieldID, section.SectionName)
		}
	} else {
		field = section.Field(in.FieldName)
	}

	name := in.FieldName
	if field != nil {
		name = field.FieldName
	}

	value := deployment.ScalarValue(in.FieldValue)
	if w.page.PageName == deployment.Page {
		decoded, err := deployment.DecodeFieldValue(section.SectionName, name, in.FieldValue)
		if err != nil {
			return AsError(err)
		}
		value = decoded
		switch {
		case value.Kind == deployment.KindSteps:
			w.steps = value.Steps
			w.stepsWritten = true
		case section.SectionName == deployment.InstallationSection:
			w.installationTouched = true
		}
	}
	return p.putField(w, section, field, name, value)
}

func (p *PageService) putField(w *pageWrite, section *models.Section, field *models.Field, name string, value deployment.FieldValue) error {
	encoded, err := value.Encode()
	if err != nil {
		return Internal(err, "failed to encode field value")
	}

	if field == nil {
		field = &models.Field{SectionID: section.ID, FieldName: name, FieldValue: models.JSONValue(encoded)}
		if err := w.tx.Create(field).Error; err != nil {
			return storageError(err, "field "+name+" already exists in section "+section.SectionName)
		}
		section.Fields = append(section.Fields, *field)
		return nil
	}

	if err := w.tx.Model(&models.Field{}).Where("id = ?", field.ID).
		Updates(map[string]any{"field_value": models.JSONValue(encoded), "updated_at": p.now()}).Error; err != nil {
		return Internal(err, "failed to update field "+name)
	}
	field.FieldValue = models.JSONValue(encoded)
	return nil
}

func fieldByID(section *models.Section, id uuid.UUID) *models.Field {
	for i := range section.Fields {
		if section.Fields[i].ID == id {
			return &section.Fields[i]
		}
	}
	return nil
}

// seedChecklist gives a new deployment page the default steps when the
// request did not carry any.
func (p *PageService) seedChecklist(w *pageWrite) error {
	if w.stepsWritten && len(w.steps) > 0 {
		return nil
	}
	section := p.findSection(w, deployment.ChecklistSection)
	if section == nil {
		var err error
		if section, err = p.createSection(w, deployment.ChecklistSection); err != nil {
			return err
		}
	}
	w.steps = deployment.DefaultSteps()
	w.stepsWritten = true
	return p.putField(w, section, section.Field(deployment.StepsField), deployment.StepsField, deployment.StepsValue(w.steps))
}

// finish validates the merged installation section and applies the
// checklist side effects: progress and the derived deployed status.
func (p *PageService) finish(w *pageWrite) error {
	if w.page.PageName != deployment.Page {
		return nil
	}

	installation := p.findSection(w, deployment.InstallationSection)
	if installation != nil && w.installationTouched {
		fields := make(map[string]json.RawMessage, len(installation.Fields))
		for _, f := range installation.Fields {
			fields[f.FieldName] = json.RawMessage(f.FieldValue)
		}
		if _, err := deployment.ValidateInstallation(fields); err != nil {
			return AsError(err)
		}
	}

	if !w.stepsWritten {
		return nil
	}

	progress := deployment.CalculateProgress(w.steps)
	if installation != nil {
		value := deployment.ScalarValue(json.RawMessage(strconv.Itoa(progress)))
		if err := p.putField(w, installation, installation.Field(deployment.ProgressField), deployment.ProgressField, value); err != nil {
			return err
		}
	}

	if deployment.AllCompleted(w.steps) {
		// the one status change derived from data rather than an explicit call
		if err := p.advanceSite(w.tx, w.site, models.SiteDeployed); err != nil {
			return err
		}
	}

	p.log.Debug().
		Str("site_id", w.site.ID.String()).
		Int("progress", progress).
		Str("site_status", string(w.site.Status)).
		Msg("deployment checklist updated")
	return nil
}

func loadPage(tx *gorm.DB, id uuid.UUID) (*models.Page, error) {
	var page models.Page
	err := tx.
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Sections.Fields", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&page, "id = ?", id).Error
	if err != nil {
		return nil, Internal(err, "failed to load page")
	}
	return &page, nil
}
