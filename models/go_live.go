package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GoLiveStatus string

const (
	GoLiveLive      GoLiveStatus = "live"
	GoLiveOffline   GoLiveStatus = "offline"
	GoLivePostponed GoLiveStatus = "postponed"
)

// GoLiveData records sign-off of a site. GoLiveDate and SignedOffBy survive
// deactivation.
type GoLiveData struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	SiteID      uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex" json:"site_id"`
	Status      GoLiveStatus `gorm:"size:32;not null" json:"status"`
	GoLiveDate  *time.Time   `json:"go_live_date,omitempty"`
	SignedOffBy *string      `gorm:"size:64" json:"signed_off_by,omitempty"`
	Notes       *string      `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (GoLiveData) TableName() string {
	return "go_live_data"
}

// BeforeCreate hook for GoLiveData
func (g *GoLiveData) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}
