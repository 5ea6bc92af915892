package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApprovalActionType string

const (
	ActionSubmit   ApprovalActionType = "submit"
	ActionApprove  ApprovalActionType = "approve"
	ActionReject   ApprovalActionType = "reject"
	ActionResubmit ApprovalActionType = "resubmit"
)

// ApprovalAction is an append-only audit entry for a scoping approval.
// Rows are never updated or deleted by the workflow.
type ApprovalAction struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ApprovalID      uuid.UUID          `gorm:"type:uuid;not null;index" json:"approval_id"`
	Action          ApprovalActionType `gorm:"size:32;not null" json:"action"`
	PerformedBy     string             `gorm:"size:64;not null" json:"performed_by"`
	PerformedByRole string             `gorm:"size:32;not null" json:"performed_by_role"`
	Comment         *string            `gorm:"type:text" json:"comment,omitempty"`
	Timestamp       time.Time          `gorm:"not null;index" json:"timestamp"`
}

// BeforeCreate hook for ApprovalAction
func (a *ApprovalAction) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	return
}
