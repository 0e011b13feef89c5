package services

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/internal/utils"
	"github.com/bugdesk/bugdesk/pkg/logger"
	"github.com/bugdesk/bugdesk/pkg/response"
	"gorm.io/gorm"
)

type AuthService struct {
	db          *gorm.DB
	cfg         *config.Config
	users       *UserService
	orgs        *OrganizationService
	ldapService *LDAPService
	configSvc   *SystemConfigService
	queue       TaskQueue
}

func NewAuthService(db *gorm.DB, cfg *config.Config, orgs *OrganizationService, queue TaskQueue) *AuthService {
	return &AuthService{
		db:          db,
		cfg:         cfg,
		users:       NewUserService(db),
		orgs:        orgs,
		ldapService: NewLDAPService(&cfg.LDAP),
		configSvc:   NewSystemConfigService(db),
		queue:       queue,
	}
}

type RegisterRequest struct {
	Username       string `json:"username" binding:"required,min=3,max=100"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=6,max=72"`
	OrganizationID *uint  `json:"organization_id"`
	OrgCode        string `json:"org_code"`
}

// RegisterResult reports the join attempt separately: a bad code does not
// undo the registration.
type RegisterResult struct {
	User       *models.User               `json:"user"`
	Membership *models.OrganizationMember `json:"membership,omitempty"`
	JoinError  string                     `json:"join_error,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=72"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=72"`
}

type LoginResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	User            *models.User
}

// ClientInfo is stored on refresh tokens for the session list.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Register creates a local submitter account and, when an organization and
// code are supplied, tries to join it.
func (s *AuthService) Register(req *RegisterRequest) (*RegisterResult, error) {
	user, err := s.users.Create(NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.RoleSubmitter,
		AuthType: "local",
	})
	if err != nil {
		return nil, err
	}

	result := &RegisterResult{User: user}
	if req.OrganizationID != nil && req.OrgCode != "" {
		member, err := s.orgs.JoinWithCode(user.ID, *req.OrganizationID, req.OrgCode)
		if err != nil {
			logger.Info().Err(err).Uint("user_id", user.ID).Uint("organization_id", *req.OrganizationID).Msg("join on registration failed")
			result.JoinError = publicMessage(err)
		} else {
			result.Membership = member
		}
	}
	return result, nil
}

func (s *AuthService) Login(req *LoginRequest, client ClientInfo) (*LoginResult, error) {
	var user *models.User
	var err error

	switch req.AuthType {
	case "", "local":
		user, err = s.localAuth(req.Username, req.Password)
	case "ldap":
		user, err = s.ldapAuth(req.Username, req.Password)
	default:
		return nil, ErrInvalidAuthType
	}
	if err != nil {
		return nil, err
	}

	result, err := s.issueTokens(s.db, user, client, s.tokenLifetimes())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.Model(user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record last login")
	}
	user.LastLogin = &now
	return result, nil
}

// Refresh rotates a refresh token: the presented one is revoked and linked to
// its replacement.
func (s *AuthService) Refresh(refreshToken string, client ClientInfo) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefresh
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", utils.HashToken(refreshToken)).First(&stored).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if stored.RevokedAt != nil || !time.Now().Before(stored.ExpiresAt) {
		return nil, ErrInvalidRefresh
	}

	user, err := s.users.GetByID(stored.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	lifetimes := s.tokenLifetimes()
	var result *LoginResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.issueTokens(tx, user, client, lifetimes)
		if err != nil {
			return err
		}
		var replacement models.RefreshToken
		if err := tx.Where("token_hash = ?", utils.HashToken(result.RefreshToken)).First(&replacement).Error; err != nil {
			return err
		}
		// Only one of two concurrent refreshes of the same token wins.
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           time.Now(),
				"replaced_by_token_id": replacement.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidRefresh
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", utils.HashToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user.AuthType != "local" {
		return ErrLDAPPassword
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return ErrWrongPassword
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Model(user).Update("password", hash).Error
}

// ForgotPassword answers the same way whether or not the account exists.
// For an existing local account it stores a hashed single-use token and
// queues the reset mail.
func (s *AuthService) ForgotPassword(email string) error {
	var user models.User
	err := s.db.Where("email = ? AND auth_type = ?", strings.ToLower(strings.TrimSpace(email)), "local").First(&user).Error
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, hash, err := utils.GenerateSecureToken(32)
	if err != nil {
		return err
	}
	ttl := s.cfg.App.ResetTokenTTLMinutes
	if ttl <= 0 {
		ttl = 60
	}
	if err := s.db.Create(&models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(time.Duration(ttl) * time.Minute),
	}).Error; err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimSuffix(s.cfg.App.BaseURL, "/"), url.QueryEscape(token))
	if s.queue != nil {
		task := &SideEffectTask{Type: TaskTypeSendEmail, Email: PasswordResetEmail(user.Email, user.Username, link, ttl)}
		if err := s.queue.Enqueue(task); err != nil {
			logger.Error().Err(err).Uint("user_id", user.ID).Msg("failed to enqueue reset mail")
		}
	}
	return nil
}

// ResetPassword consumes a reset token and signs the user out everywhere.
func (s *AuthService) ResetPassword(token, newPassword string) error {
	var stored models.PasswordResetToken
	if err := s.db.Where("token_hash = ?", utils.HashToken(token)).First(&stored).Error; err != nil {
		if isNotFound(err) {
			return ErrInvalidResetToken
		}
		return err
	}
	if stored.UsedAt != nil || !time.Now().Before(stored.ExpiresAt) {
		return ErrInvalidResetToken
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	now := time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL", stored.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidResetToken
		}
		if err := tx.Model(&models.User{}).Where("id = ?", stored.UserID).Update("password", hash).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", stored.UserID).
			Update("revoked_at", now).Error
	})
}

func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	return s.users.GetByID(id)
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.IsEnabled()
}

// CreateAdmin creates a local admin account, used by the create-admin command.
func (s *AuthService) CreateAdmin(username, email, password string) (*models.User, error) {
	return s.users.Create(NewUser{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
		AuthType: "local",
	})
}

type tokenLifetimes struct {
	accessHours  int
	refreshHours int
}

func (s *AuthService) tokenLifetimes() tokenLifetimes {
	return tokenLifetimes{
		accessHours:  s.configSvc.GetInt("auth_access_token_expire_hours", s.cfg.JWT.ExpireHour),
		refreshHours: s.configSvc.GetInt("auth_refresh_token_expire_hours", 720),
	}
}

func (s *AuthService) issueTokens(db *gorm.DB, user *models.User, client ClientInfo, ttl tokenLifetimes) (*LoginResult, error) {
	access, err := utils.GenerateToken(user.ID, user.Username, user.Role, ttl.accessHours)
	if err != nil {
		return nil, err
	}

	refresh, refreshHash, err := utils.GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   now.Add(time.Duration(ttl.refreshHours) * time.Hour),
		CreatedByIP: client.IP,
		UserAgent:   truncate(client.UserAgent, 255),
	}
	if err := db.Create(&record).Error; err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:     access,
		AccessExpireAt:  now.Add(time.Duration(ttl.accessHours) * time.Hour),
		RefreshToken:    refresh,
		RefreshExpireAt: record.ExpiresAt,
		User:            user,
	}, nil
}

func (s *AuthService) localAuth(username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ? AND auth_type = ?", username, "local").First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	return &user, nil
}

// ldapAuth verifies against the directory and provisions the local row on
// first login.
func (s *AuthService) ldapAuth(username, password string) (*models.User, error) {
	ldapUser, err := s.ldapService.Authenticate(username, password)
	if err != nil {
		if errors.Is(err, errLDAPDisabled) {
			return nil, ErrInvalidAuthType
		}
		return nil, err
	}

	var user models.User
	err = s.db.Where("username = ? AND auth_type = ?", ldapUser.Username, "ldap").First(&user).Error
	if isNotFound(err) {
		email := ldapUser.Email
		if email == "" {
			email = ldapUser.Username + "@ldap.invalid"
		}
		created, err := s.users.Create(NewUser{
			Username: ldapUser.Username,
			Email:    email,
			Role:     models.RoleSubmitter,
			AuthType: "ldap",
		})
		if err != nil {
			return nil, err
		}
		return created, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	if ldapUser.Email != "" && ldapUser.Email != user.Email {
		if err := s.db.Model(&user).Update("email", strings.ToLower(ldapUser.Email)).Error; err != nil {
			logger.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to sync LDAP email")
		}
	}
	return &user, nil
}

func truncate(v string, n int) string {
	if len(v) <= n {
		return v
	}
	return v[:n]
}

// publicMessage is the text of a classified error, or a generic one.
func publicMessage(err error) string {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "could not join the organization"
}
