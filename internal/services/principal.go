package services

import "github.com/bugdesk/bugdesk/internal/models"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   uint
	Username string
	Role     string
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// CanManage reports whether the caller may change something owned by ownerID.
func (p Principal) CanManage(ownerID uint) bool {
	return p.UserID == ownerID || p.IsAdmin()
}
