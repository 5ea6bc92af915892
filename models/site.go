package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SiteStatus is the furthest workflow stage a site has reached.
type SiteStatus string

const (
	SiteCreated         SiteStatus = "created"
	SiteStudyDone       SiteStatus = "site_study_done"
	SiteScopingDone     SiteStatus = "scoping_done"
	SiteApproved        SiteStatus = "approved"
	SiteProcurementDone SiteStatus = "procurement_done"
	SiteDeployed        SiteStatus = "deployed"
	SiteLive            SiteStatus = "live"
	SiteOffline         SiteStatus = "offline"
)

// siteTransitions is the single table every workflow consults before
// moving a site. Forward jumps are allowed because stages such as site
// study are optional in practice.
var siteTransitions = map[SiteStatus][]SiteStatus{
	SiteCreated:         {SiteStudyDone, SiteScopingDone, SiteApproved, SiteProcurementDone, SiteDeployed},
	SiteStudyDone:       {SiteScopingDone, SiteApproved, SiteProcurementDone, SiteDeployed},
	SiteScopingDone:     {SiteApproved, SiteProcurementDone, SiteDeployed},
	SiteApproved:        {SiteProcurementDone, SiteDeployed},
	SiteProcurementDone: {SiteDeployed},
	SiteDeployed:        {SiteLive, SiteProcurementDone},
	SiteLive:            {SiteOffline, SiteProcurementDone},
	SiteOffline:         {SiteLive, SiteProcurementDone},
}

var siteRank = map[SiteStatus]int{
	SiteCreated:         0,
	SiteStudyDone:       1,
	SiteScopingDone:     2,
	SiteApproved:        3,
	SiteProcurementDone: 4,
	SiteDeployed:        5,
	SiteLive:            6,
	SiteOffline:         6,
}

// Valid reports whether s is part of the status vocabulary.
func (s SiteStatus) Valid() bool {
	_, ok := siteRank[s]
	return ok
}

// Rank orders statuses along the pipeline. Unknown statuses rank -1.
func (s SiteStatus) Rank() int {
	if r, ok := siteRank[s]; ok {
		return r
	}
	return -1
}

// CanTransitionTo reports whether the table allows s -> next.
func (s SiteStatus) CanTransitionTo(next SiteStatus) bool {
	for _, allowed := range siteTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Deletable sites have not reached deployment yet.
func (s SiteStatus) Deletable() bool {
	return s != SiteDeployed && s != SiteLive
}

// Site is the workflow aggregate. Status is only written by workflow services.
type Site struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	Status    SiteStatus `gorm:"size:32;not null;default:'created';index" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Pages []Page `gorm:"foreignKey:SiteID" json:"pages,omitempty"`
}

// BeforeCreate hook for Site
func (s *Site) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SiteCreated
	}
	return
}
