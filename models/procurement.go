package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProcurementStatus string

const (
	ProcurementDraft     ProcurementStatus = "draft"
	ProcurementCompleted ProcurementStatus = "completed"
)

// ProcurementData holds the delivery record of a site. One row per site.
type ProcurementData struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	SiteID             uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex" json:"site_id"`
	DeliveryDate       *DateOnly         `gorm:"type:date" json:"delivery_date,omitempty"`
	DeliveryReceiptURL *string           `gorm:"size:500" json:"delivery_receipt_url,omitempty"`
	Summary            *string           `gorm:"type:text" json:"summary,omitempty"`
	Status             ProcurementStatus `gorm:"size:32;not null;default:'draft'" json:"status"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CompletedBy        *string           `gorm:"size:64" json:"completed_by,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// TableName keeps the singular table name used by reporting queries.
func (ProcurementData) TableName() string {
	return "procurement_data"
}

// BeforeCreate hook for ProcurementData
func (p *ProcurementData) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ProcurementDraft
	}
	return
}
