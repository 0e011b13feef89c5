package services

import (
	"strings"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/internal/utils"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type UserListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Role     string `form:"role"`
	Search   string `form:"search"`
}

type UserListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.User `json:"items"`
}

type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin pm developer submitter"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=100"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

// NewUser is the input of Create.
type NewUser struct {
	Username string
	Email    string
	Password string // plain text, empty for LDAP accounts
	Role     string
	AuthType string
}

func (s *UserService) List(req *UserListRequest) (*UserListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.User{})
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("(LOWER(username) LIKE ? OR LOWER(email) LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	users := []models.User{}
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	return &UserListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: users}, nil
}

func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create stores a new account. Taken usernames and emails come back as
// friendly conflicts instead of constraint errors.
func (s *UserService) Create(in NewUser) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.checkUnique(0, username, email); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = models.RoleSubmitter
	}
	if !models.IsValidRole(role) {
		return nil, ErrInvalidRole
	}
	authType := in.AuthType
	if authType == "" {
		authType = "local"
	}

	user := models.User{
		Username: username,
		Email:    email,
		Role:     role,
		AuthType: authType,
		IsActive: true,
	}
	if in.Password != "" {
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hash
	}

	if err := s.db.Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrUsernameExists
		}
		return nil, err
	}
	return &user, nil
}

// AssignRole sets the role of targetID and records who granted it.
func (s *UserService) AssignRole(targetID uint, role string, assignedBy uint) (*models.User, error) {
	if !models.IsValidRole(role) {
		return nil, ErrInvalidRole
	}
	user, err := s.GetByID(targetID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(user).Updates(map[string]interface{}{
		"role":        role,
		"assigned_by": assignedBy,
	}).Error; err != nil {
		return nil, err
	}
	return s.GetByID(targetID)
}

func (s *UserService) UpdateProfile(userID uint, req *UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetByID(userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	var username, email string
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		if username != user.Username {
			updates["username"] = username
		} else {
			username = ""
		}
	}
	if req.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			updates["email"] = email
		} else {
			email = ""
		}
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.checkUnique(userID, username, email); err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrUsernameExists
		}
		return nil, err
	}
	return s.GetByID(userID)
}

// checkUnique ignores empty values and the row of exceptID.
func (s *UserService) checkUnique(exceptID uint, username, email string) error {
	var count int64
	if username != "" {
		if err := s.db.Model(&models.User{}).Where("username = ? AND id <> ?", username, exceptID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameExists
		}
	}
	if email != "" {
		if err := s.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, exceptID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailExists
		}
	}
	return nil
}
