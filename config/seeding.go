package config

import (
	"log"

	"gorm.io/gorm"

	"p9e.in/launchpad/models"
)

// SeedUsers creates one account per role when the users table is empty.
// Accounts sign in with an emailed one-time code, so no passwords are set.
func SeedUsers(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Printf("Users already present (%d), skipping seeding", count)
		return nil
	}

	usersToSeed := []models.User{
		{Name: "Launchpad Admin", Email: "admin@launchpad.local", Role: models.RoleAdmin, IsActive: true},
		{Name: "Ops Manager", Email: "ops@launchpad.local", Role: models.RoleOpsManager, IsActive: true},
		{Name: "Deployment Engineer", Email: "engineer@launchpad.local", Role: models.RoleDeploymentEngineer, IsActive: true},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := range usersToSeed {
			if err := tx.Create(&usersToSeed[i]).Error; err != nil {
				return err
			}
			log.Printf("✅ Seeded %s (%s)", usersToSeed[i].Email, usersToSeed[i].Role)
		}
		return nil
	})
}
