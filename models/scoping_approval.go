package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ApprovalStatus values for ScopingApproval
type ApprovalStatus string

const (
	ApprovalPending          ApprovalStatus = "pending"
	ApprovalApproved         ApprovalStatus = "approved"
	ApprovalRejected         ApprovalStatus = "rejected"
	ApprovalChangesRequested ApprovalStatus = "changes_requested"
)

// Valid reports whether s is a known approval status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalChangesRequested:
		return true
	}
	return false
}

// ScopingData is the engineer's catalog selection. Items are stored as sent.
type ScopingData struct {
	SelectedSoftware []json.RawMessage `json:"selected_software"`
	SelectedHardware []json.RawMessage `json:"selected_hardware"`
}

// ScopingApproval is one version of a site's scoping request. Resubmission
// creates a new row linked through PreviousVersionID; rejected rows stay rejected.
type ScopingApproval struct {
	ID                     uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	SiteID                 uuid.UUID                       `gorm:"type:uuid;not null;index" json:"site_id"`
	SiteName               string                          `gorm:"size:255;not null" json:"site_name"`
	DeploymentEngineerID   string                          `gorm:"size:64;not null" json:"deployment_engineer_id"`
	DeploymentEngineerName string                          `gorm:"size:255" json:"deployment_engineer_name"`
	OpsManagerID           *string                         `gorm:"size:64" json:"ops_manager_id,omitempty"`
	OpsManagerName         *string                         `gorm:"size:255" json:"ops_manager_name,omitempty"`
	Status                 ApprovalStatus                  `gorm:"size:32;not null;default:'pending';index" json:"status"`
	ScopingData            datatypes.JSONType[ScopingData] `gorm:"not null" json:"scoping_data"`
	CostBreakdown          JSONValue                       `json:"cost_breakdown"`
	Version                int                             `gorm:"not null;default:1" json:"version"`
	PreviousVersionID      *uuid.UUID                      `gorm:"type:uuid" json:"previous_version_id,omitempty"`
	ReviewedBy             *string                         `gorm:"size:64" json:"reviewed_by,omitempty"`
	ReviewComment          *string                         `gorm:"type:text" json:"review_comment,omitempty"`
	RejectionReason        *string                         `gorm:"type:text" json:"rejection_reason,omitempty"`
	SubmittedAt            time.Time                       `json:"submitted_at"`
	ReviewedAt             *time.Time                      `json:"reviewed_at,omitempty"`
	CreatedAt              time.Time                       `json:"created_at"`
	UpdatedAt              time.Time                       `json:"updated_at"`
}

// BeforeCreate hook for ScopingApproval
func (a *ScopingApproval) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = ApprovalPending
	}
	if a.Version == 0 {
		a.Version = 1
	}
	return
}
