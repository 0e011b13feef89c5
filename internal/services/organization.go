package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/internal/utils"
	"gorm.io/gorm"
)

// OrganizationService implements membership: create, join by code, request
// to join and the admin's handling of pending requests.
type OrganizationService struct {
	db        *gorm.DB
	notifier  *NotificationService
	configSvc *SystemConfigService
	cfg       *config.OrganizationConfig
	now       func() time.Time
}

func NewOrganizationService(db *gorm.DB, notifier *NotificationService, cfg *config.OrganizationConfig) *OrganizationService {
	return &OrganizationService{
		db:        db,
		notifier:  notifier,
		configSvc: NewSystemConfigService(db),
		cfg:       cfg,
		now:       time.Now,
	}
}

type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

type JoinWithCodeRequest struct {
	OrganizationID uint   `json:"organization_id" binding:"required"`
	OrgCode        string `json:"org_code" binding:"required"`
}

type RequestJoinRequest struct {
	OrganizationID uint `json:"organization_id" binding:"required"`
}

// OrganizationSummary is a search result.
type OrganizationSummary struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	AdminID     uint      `json:"admin_id"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type OrganizationDetail struct {
	models.Organization
	MemberCount int64 `json:"member_count"`
}

type MemberView struct {
	UserID      uint       `json:"user_id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
}

func (s *OrganizationService) codeTTL() time.Duration {
	minutes := s.configSvc.GetInt("org_code_ttl_minutes", s.cfg.JoinCodeTTLMinutes)
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

func (s *OrganizationService) newCode() (string, time.Time, error) {
	code, err := utils.GenerateJoinCode(s.cfg.JoinCodeLength)
	if err != nil {
		return "", time.Time{}, err
	}
	return code, s.now().Add(s.codeTTL()), nil
}

// Create stores the organization and its creator's approved membership in one
// transaction.
func (s *OrganizationService) Create(name string, creatorID uint) (*models.Organization, error) {
	code, expiresAt, err := s.newCode()
	if err != nil {
		return nil, err
	}

	now := s.now()
	org := models.Organization{
		Name:           strings.TrimSpace(name),
		AdminID:        creatorID,
		OrgCode:        code,
		CodeExpiration: &expiresAt,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		member := models.OrganizationMember{
			UserID:         creatorID,
			OrganizationID: org.ID,
			Status:         models.MemberStatusApproved,
			RequestedAt:    now,
			ApprovedAt:     &now,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	return &org, nil
}

// JoinWithCode admits userID directly. The code must equal the stored one and
// is valid only while now is strictly before its expiration.
func (s *OrganizationService) JoinWithCode(userID, orgID uint, code string) (*models.OrganizationMember, error) {
	org, err := s.find(orgID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if org.OrgCode == "" || code != org.OrgCode || org.CodeExpiration == nil || !now.Before(*org.CodeExpiration) {
		return nil, ErrInvalidOrExpiredCode
	}

	var member models.OrganizationMember
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND organization_id = ?", userID, orgID).First(&member).Error
		switch {
		case err == nil:
			if member.Status == models.MemberStatusApproved {
				return ErrAlreadyMember
			}
			// A pending request is settled by the code.
			member.Status = models.MemberStatusApproved
			member.ApprovedAt = &now
			return tx.Save(&member).Error
		case isNotFound(err):
			member = models.OrganizationMember{
				UserID:         userID,
				OrganizationID: orgID,
				Status:         models.MemberStatusApproved,
				RequestedAt:    now,
				ApprovedAt:     &now,
			}
			if err := tx.Create(&member).Error; err != nil {
				if isDuplicate(err) {
					return ErrAlreadyMember
				}
				return err
			}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.notifier.notifyQuietly(org.AdminID,
		fmt.Sprintf("%s joined %s using the organization code", s.username(userID), org.Name), nil, nil)
	return &member, nil
}

// RequestJoin records a pending membership for the admin to decide on.
// Concurrent duplicates are stopped by the (user, organization) unique index.
func (s *OrganizationService) RequestJoin(userID, orgID uint) (*models.OrganizationMember, error) {
	org, err := s.find(orgID)
	if err != nil {
		return nil, err
	}

	var existing models.OrganizationMember
	err = s.db.Where("user_id = ? AND organization_id = ?", userID, orgID).First(&existing).Error
	if err == nil {
		if existing.Status == models.MemberStatusPending {
			return nil, ErrDuplicateRequest
		}
		return nil, ErrAlreadyMember
	}
	if !isNotFound(err) {
		return nil, err
	}

	member := models.OrganizationMember{
		UserID:         userID,
		OrganizationID: orgID,
		Status:         models.MemberStatusPending,
		RequestedAt:    s.now(),
	}
	if err := s.db.Create(&member).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}

	s.notifier.notifyQuietly(org.AdminID,
		fmt.Sprintf("%s requested to join %s", s.username(userID), org.Name), nil, nil)
	return &member, nil
}

// Search matches names case-insensitively. An empty term lists everything.
func (s *OrganizationService) Search(term string) ([]OrganizationSummary, error) {
	query := s.db.Table("organizations o").
		Select("o.id, o.name, o.admin_id, o.created_at, COUNT(m.id) AS member_count").
		Joins("LEFT JOIN organization_members m ON m.organization_id = o.id AND m.status = ?", models.MemberStatusApproved)

	if term = strings.TrimSpace(term); term != "" {
		query = query.Where("LOWER(o.name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}

	results := []OrganizationSummary{}
	err := query.Group("o.id, o.name, o.admin_id, o.created_at").
		Order("o.name ASC").
		Scan(&results).Error
	return results, err
}

// RotateJoinCode replaces the join code in a single update. Only the
// organization admin may rotate it.
func (s *OrganizationService) RotateJoinCode(orgID, actorID uint) (*models.Organization, error) {
	code, expiresAt, err := s.newCode()
	if err != nil {
		return nil, err
	}

	result := s.db.Model(&models.Organization{}).
		Where("id = ? AND admin_id = ?", orgID, actorID).
		Updates(map[string]interface{}{
			"org_code":        code,
			"code_expiration": expiresAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.find(orgID); err != nil {
			return nil, err
		}
		return nil, ErrNotOrgAdmin
	}

	return s.find(orgID)
}

// Get returns the organization. The join code is only visible to its admin.
func (s *OrganizationService) Get(orgID, viewerID uint) (*OrganizationDetail, error) {
	org, err := s.find(orgID)
	if err != nil {
		return nil, err
	}
	if org.AdminID != viewerID {
		org.OrgCode = ""
		org.CodeExpiration = nil
	}

	var count int64
	if err := s.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND status = ?", orgID, models.MemberStatusApproved).
		Count(&count).Error; err != nil {
		return nil, err
	}
	return &OrganizationDetail{Organization: *org, MemberCount: count}, nil
}

// ListMembers is visible to approved members only.
func (s *OrganizationService) ListMembers(orgID, viewerID uint) ([]MemberView, error) {
	if _, err := s.find(orgID); err != nil {
		return nil, err
	}
	ok, err := s.IsMember(orgID, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotOrgMember
	}
	return s.members(orgID, models.MemberStatusApproved)
}

func (s *OrganizationService) ListPendingRequests(orgID, adminID uint) ([]MemberView, error) {
	if _, err := s.requireAdmin(orgID, adminID); err != nil {
		return nil, err
	}
	return s.members(orgID, models.MemberStatusPending)
}

// ApproveRequest moves a pending request to approved and tells the requester.
func (s *OrganizationService) ApproveRequest(orgID, userID, adminID uint) (*models.OrganizationMember, error) {
	org, err := s.requireAdmin(orgID, adminID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := s.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ? AND status = ?", orgID, userID, models.MemberStatusPending).
		Updates(map[string]interface{}{
			"status":      models.MemberStatusApproved,
			"approved_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRequestNotFound
	}

	var member models.OrganizationMember
	if err := s.db.Where("organization_id = ? AND user_id = ?", orgID, userID).First(&member).Error; err != nil {
		return nil, err
	}

	s.notifier.notifyQuietly(userID, fmt.Sprintf("Your request to join %s was approved", org.Name), nil, nil)
	return &member, nil
}

// RejectRequest drops the pending row; rejection is not stored.
func (s *OrganizationService) RejectRequest(orgID, userID, adminID uint) error {
	org, err := s.requireAdmin(orgID, adminID)
	if err != nil {
		return err
	}

	result := s.db.Where("organization_id = ? AND user_id = ? AND status = ?", orgID, userID, models.MemberStatusPending).
		Delete(&models.OrganizationMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotFound
	}

	s.notifier.notifyQuietly(userID, fmt.Sprintf("Your request to join %s was declined", org.Name), nil, nil)
	return nil
}

// IsMember reports whether userID is an approved member of orgID.
func (s *OrganizationService) IsMember(orgID, userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ? AND status = ?", orgID, userID, models.MemberStatusApproved).
		Count(&count).Error
	return count > 0, err
}

// ClearExpiredCodes blanks join codes whose window has passed.
func (s *OrganizationService) ClearExpiredCodes() (int64, error) {
	result := s.db.Model(&models.Organization{}).
		Where("code_expiration IS NOT NULL AND code_expiration <= ?", s.now()).
		Updates(map[string]interface{}{
			"org_code":        "",
			"code_expiration": nil,
		})
	return result.RowsAffected, result.Error
}

func (s *OrganizationService) members(orgID uint, status string) ([]MemberView, error) {
	items := []MemberView{}
	err := s.db.Table("organization_members m").
		Select("m.user_id, u.username, u.email, m.status, m.requested_at, m.approved_at").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.organization_id = ? AND m.status = ?", orgID, status).
		Order("m.requested_at ASC, m.id ASC").
		Scan(&items).Error
	return items, err
}

func (s *OrganizationService) find(orgID uint) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.First(&org, orgID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *OrganizationService) requireAdmin(orgID, actorID uint) (*models.Organization, error) {
	org, err := s.find(orgID)
	if err != nil {
		return nil, err
	}
	if org.AdminID != actorID {
		return nil, ErrNotOrgAdmin
	}
	return org, nil
}

func (s *OrganizationService) username(userID uint) string {
	var user models.User
	if err := s.db.Select("username").First(&user, userID).Error; err != nil {
		return fmt.Sprintf("User #%d", userID)
	}
	return user.Username
}
