package models

import "time"

// Organization is a tenant grouping users and projects.
// OrgCode/CodeExpiration hold the current self-service join code.
type Organization struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"size:200;not null;index" json:"name"`
	AdminID        uint       `gorm:"index;not null" json:"admin_id"`
	OrgCode        string     `gorm:"size:32" json:"org_code,omitempty"`
	CodeExpiration *time.Time `json:"code_expiration,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

const (
	MemberStatusPending  = "pending"
	MemberStatusApproved = "approved"
)

// OrganizationMember links a user to an organization. Rejected requests are
// deleted rather than stored, so only pending and approved rows exist.
type OrganizationMember struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"uniqueIndex:idx_org_member_user_org;not null" json:"user_id"`
	OrganizationID uint       `gorm:"uniqueIndex:idx_org_member_user_org;index;not null" json:"organization_id"`
	Status         string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	RequestedAt    time.Time  `json:"requested_at"`
	ApprovedAt     *time.Time `json:"approved_at"`
}

func (OrganizationMember) TableName() string { return "organization_members" }
