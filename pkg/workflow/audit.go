package workflow

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"p9e.in/launchpad/models"
)

// recordAction appends an audit entry inside a savepoint. A failed write
// is logged and dropped; the surrounding transition still commits.
func (b *base) recordAction(tx *gorm.DB, approvalID uuid.UUID, action models.ApprovalActionType, actor Actor, comment string) {
	entry := &models.ApprovalAction{
		ApprovalID:      approvalID,
		Action:          action,
		PerformedBy:     actor.ID,
		PerformedByRole: string(actor.Role),
		Timestamp:       b.now(),
	}
	if comment != "" {
		entry.Comment = &comment
	}

	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(entry).Error
	})
	if err != nil {
		b.log.Warn().Err(err).
			Str("approval_id", approvalID.String()).
			Str("action", string(action)).
			Msg("failed to write approval audit entry")
	}
}
