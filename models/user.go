// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the workflow role carried in the session token.
type Role string

const (
	RoleAdmin              Role = "admin"
	RoleOpsManager         Role = "ops_manager"
	RoleDeploymentEngineer Role = "deployment_engineer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOpsManager, RoleDeploymentEngineer:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	Email        string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Role         Role       `gorm:"size:32;not null" json:"role"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastLoggedIn *time.Time `json:"last_logged_in,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
