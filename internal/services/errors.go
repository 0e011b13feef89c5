package services

import (
	"errors"

	"github.com/bugdesk/bugdesk/pkg/response"
	"gorm.io/gorm"
)

// Classified failures. Handlers pass these straight to response.Error.
var (
	ErrOrganizationNotFound = response.NewNotFound("organization not found")
	ErrTicketNotFound       = response.NewNotFound("ticket not found")
	ErrProjectNotFound      = response.NewNotFound("project not found")
	ErrUserNotFound         = response.NewNotFound("user not found")
	ErrNotificationNotFound = response.NewNotFound("notification not found")
	ErrAttachmentNotFound   = response.NewNotFound("attachment not found")
	ErrRequestNotFound      = response.NewNotFound("join request not found")
	ErrAssignmentNotFound   = response.NewNotFound("assignment not found")

	ErrInvalidOrExpiredCode = response.NewBadRequest("invalid or expired organization code")
	ErrDuplicateRequest     = response.NewConflict("a pending join request already exists")
	ErrAlreadyMember        = response.NewConflict("user is already a member of this organization")
	ErrUsernameExists       = response.NewConflict("Username already exists")
	ErrEmailExists          = response.NewConflict("Email already exists")

	ErrEmptyComment    = response.NewBadRequest("comment text is required")
	ErrInvalidRole     = response.NewBadRequest("invalid role")
	ErrInvalidAuthType = response.NewBadRequest("invalid auth type")

	ErrNotOrgAdmin     = response.NewForbidden("only the organization admin can do this")
	ErrNotOrgMember    = response.NewForbidden("not a member of this organization")
	ErrNotProjectOwner = response.NewForbidden("only the project owner or an admin can do this")

	ErrInvalidCredentials = response.NewUnauthorized("invalid username or password")
	ErrUserDisabled       = response.NewUnauthorized("user is disabled")
	ErrInvalidRefresh     = response.NewUnauthorized("invalid or expired refresh token")
	ErrInvalidResetToken  = response.NewBadRequest("invalid or expired reset token")
	ErrWrongPassword      = response.NewBadRequest("incorrect old password")
	ErrLDAPPassword       = response.NewBadRequest("LDAP users cannot change password here")
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
