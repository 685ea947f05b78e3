package services

import (
	"strings"

	"github.com/prefhub/prefhub/internal/models"
	"gorm.io/gorm"
)

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
	Name     string `form:"name"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Name              string   `json:"name" binding:"required"`
	Description       string   `json:"description"`
	OverridesEnabled  bool     `json:"overrides_enabled"`
	AllowedCategories []string `json:"allowed_categories"`
	MaxOverrides      int      `json:"max_overrides" binding:"min=0"`
}

type UpdateProjectRequest struct {
	Name              string    `json:"name"`
	Description       *string   `json:"description"`
	OverridesEnabled  *bool     `json:"overrides_enabled"`
	AllowedCategories *[]string `json:"allowed_categories"`
	MaxOverrides      *int      `json:"max_overrides"`
}

// List returns paginated projects
func (s *ProjectService) List(req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	var projects []models.Project
	var total int64

	query := s.db.Model(&models.Project{})

	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

// GetByID returns a project by ID
func (s *ProjectService) GetByID(id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// Create creates a new project
func (s *ProjectService) Create(req *CreateProjectRequest, userID uint) (*models.Project, error) {
	project := models.Project{
		Name:              req.Name,
		Description:       req.Description,
		OverridesEnabled:  req.OverridesEnabled,
		AllowedCategories: strings.Join(req.AllowedCategories, ","),
		MaxOverrides:      req.MaxOverrides,
		CreatedBy:         userID,
	}

	if err := s.db.Create(&project).Error; err != nil {
		return nil, err
	}

	return &project, nil
}

// Update updates a project's metadata and override policy.
func (s *ProjectService) Update(id uint, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		project.Name = req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.OverridesEnabled != nil {
		project.OverridesEnabled = *req.OverridesEnabled
	}
	if req.AllowedCategories != nil {
		project.AllowedCategories = strings.Join(*req.AllowedCategories, ",")
	}
	if req.MaxOverrides != nil && *req.MaxOverrides >= 0 {
		project.MaxOverrides = *req.MaxOverrides
	}

	if err := s.db.Save(project).Error; err != nil {
		return nil, err
	}

	return project, nil
}

// Delete soft-deletes a project and removes its overrides so they stop
// shadowing user preferences.
func (s *ProjectService) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectOverride{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, id).Error
	})
}
