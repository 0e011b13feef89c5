package models

import (
	"time"
)

const (
	RoleAdmin     = "admin"
	RolePM        = "pm"
	RoleDeveloper = "developer"
	RoleSubmitter = "submitter"
)

// ValidRoles lists the roles a user can be granted.
var ValidRoles = []string{RoleAdmin, RolePM, RoleDeveloper, RoleSubmitter}

func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents an account that can report, own and work on tickets.
type User struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Username   string     `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email      string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password   string     `gorm:"size:255" json:"-"` // bcrypt hash, empty for LDAP users
	Role       string     `gorm:"size:20;default:submitter;not null" json:"role"`
	AssignedBy *uint      `json:"assigned_by"`                             // who granted the current role
	AuthType   string     `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	LastLogin  *time.Time `json:"last_login"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }
