package models

import (
	"time"
)

// Project groups tickets. It is owned by the user that created it.
type Project struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:200;not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	OrganizationID *uint     `gorm:"index" json:"organization_id"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }
