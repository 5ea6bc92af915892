package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Page groups form sections of a site, e.g. "scoping" or "deployment".
type Page struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SiteID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_pages_site_name" json:"site_id"`
	PageName  string    `gorm:"size:100;not null;uniqueIndex:idx_pages_site_name" json:"page_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Sections []Section `gorm:"foreignKey:PageID" json:"sections,omitempty"`
}

type Section struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PageID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sections_page_name" json:"page_id"`
	SectionName string    `gorm:"size:100;not null;uniqueIndex:idx_sections_page_name" json:"section_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Fields []Field `gorm:"foreignKey:SectionID" json:"fields,omitempty"`
}

// Field holds one arbitrary JSON value keyed by name within a section.
type Field struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_fields_section_name" json:"section_id"`
	FieldName  string         `gorm:"size:100;not null;uniqueIndex:idx_fields_section_name" json:"field_name"`
	FieldValue JSONValue      `json:"field_value"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (p *Page) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

func (s *Section) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}

func (f *Field) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return
}

// Section returns the named section of the page, or nil.
func (p *Page) Section(name string) *Section {
	for i := range p.Sections {
		if p.Sections[i].SectionName == name {
			return &p.Sections[i]
		}
	}
	return nil
}

// Field returns the named field of the section, or nil.
func (s *Section) Field(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].FieldName == name {
			return &s.Fields[i]
		}
	}
	return nil
}
