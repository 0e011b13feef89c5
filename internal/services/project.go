package services

import (
	"strings"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db   *gorm.DB
	orgs *OrganizationService
}

func NewProjectService(db *gorm.DB, orgs *OrganizationService) *ProjectService {
	return &ProjectService{db: db, orgs: orgs}
}

type ProjectListRequest struct {
	Page           int    `form:"page" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Name           string `form:"name"`
	OrganizationID *uint  `form:"organization_id"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Name           string `json:"name" binding:"required,max=200"`
	Description    string `json:"description"`
	OrganizationID *uint  `json:"organization_id"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (s *ProjectService) List(req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	query := s.db.Model(&models.Project{})
	if req.Name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(req.Name)+"%")
	}
	if req.OrganizationID != nil {
		query = query.Where("organization_id = ?", *req.OrganizationID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	projects := []models.Project{}
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&projects).Error; err != nil {
		return nil, err
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

func (s *ProjectService) GetByID(id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

// Create makes ownerID the owner. A project inside an organization needs the
// owner to be an approved member of it.
func (s *ProjectService) Create(req *CreateProjectRequest, ownerID uint) (*models.Project, error) {
	if req.OrganizationID != nil {
		if _, err := s.orgs.find(*req.OrganizationID); err != nil {
			return nil, err
		}
		ok, err := s.orgs.IsMember(*req.OrganizationID, ownerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotOrgMember
		}
	}

	project := models.Project{
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		UserID:         ownerID,
		OrganizationID: req.OrganizationID,
		IsActive:       true,
	}
	if err := s.db.Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *ProjectService) Update(id uint, req *UpdateProjectRequest, actor Principal) (*models.Project, error) {
	project, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(project.UserID) {
		return nil, ErrNotProjectOwner
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.db.Model(project).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

// Delete refuses projects that still hold tickets.
func (s *ProjectService) Delete(id uint, actor Principal) error {
	project, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if !actor.CanManage(project.UserID) {
		return ErrNotProjectOwner
	}

	var tickets int64
	if err := s.db.Model(&models.Ticket{}).Where("project_id = ?", id).Count(&tickets).Error; err != nil {
		return err
	}
	if tickets > 0 {
		return response.NewConflict("project still has tickets")
	}
	return s.db.Delete(&models.Project{}, id).Error
}
