package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"p9e.in/launchpad/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "01032025_create_site_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{}, &models.Site{}, &models.Page{}, &models.Section{}, &models.Field{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("fields", "sections", "pages", "sites", "users")
			},
		},
		{
			ID: "14032025_create_workflow_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.ScopingApproval{}, &models.ApprovalAction{},
					&models.ProcurementData{}, &models.GoLiveData{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("go_live_data", "procurement_data", "approval_actions", "scoping_approvals")
			},
		},
		{
			// one pending approval per site, enforced by the database
			ID: "14032025_scoping_approvals_one_pending",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_scoping_approvals_one_pending
					ON scoping_approvals (site_id) WHERE status = 'pending'`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_scoping_approvals_one_pending`).Error
			},
		},
	})

	return m.Migrate()
}
