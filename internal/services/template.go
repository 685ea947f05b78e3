package services

import (
	"errors"

	"github.com/prefhub/prefhub/internal/models"
	"gorm.io/gorm"
)

// Per-key actions computed by the template diff.
const (
	ActionNew      = "new"      // target has no override for the key
	ActionUpdate   = "update"   // target has one and overwrite is allowed
	ActionConflict = "conflict" // target has one and overwrite is not allowed
)

// TemplateService snapshots preferences into templates and applies them back
// to a target scope. Apply is best-effort per key: one bad key never rolls
// back the others.
type TemplateService struct {
	db       *gorm.DB
	resolver *ResolverService
	prefs    *PreferenceService
}

func NewTemplateService(db *gorm.DB, resolver *ResolverService, prefs *PreferenceService) *TemplateService {
	return &TemplateService{db: db, resolver: resolver, prefs: prefs}
}

type CreateTemplateRequest struct {
	SourceType        string   `json:"source_type" binding:"required,oneof=user project"`
	SourceID          uint     `json:"source_id" binding:"required"`
	Name              string   `json:"name" binding:"required"`
	Description       string   `json:"description"`
	Category          string   `json:"category"`
	Type              string   `json:"type" binding:"omitempty,oneof=private team public"`
	IncludeCategories []string `json:"include_categories"`
	// Resolved snapshots the full effective map instead of just the raw
	// overrides present at the source scope.
	Resolved bool `json:"resolved"`
}

// CreateFromScope snapshots the source scope's preferences into a new
// immutable template. Zero matching preferences is an error, not an empty
// template.
func (s *TemplateService) CreateFromScope(req *CreateTemplateRequest, createdBy uint) (*models.Template, error) {
	entries, err := s.snapshot(req)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptySource
	}

	templateType := req.Type
	if templateType == "" {
		templateType = models.TemplateTypePrivate
	}

	template := models.Template{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Type:        templateType,
		CreatedBy:   createdBy,
	}
	if err := template.SetEntries(entries); err != nil {
		return nil, err
	}
	if err := s.db.Create(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

func (s *TemplateService) snapshot(req *CreateTemplateRequest) ([]models.TemplateEntry, error) {
	include := toSet(req.IncludeCategories)

	if req.Resolved {
		userID := uint(0)
		var projectID *uint
		if req.SourceType == ScopeProject {
			projectID = &req.SourceID
		} else {
			userID = req.SourceID
		}
		resolved, err := s.resolver.ResolveAll(userID, projectID, req.IncludeCategories)
		if err != nil {
			return nil, err
		}
		entries := make([]models.TemplateEntry, 0, len(resolved))
		for _, r := range resolved {
			entries = append(entries, models.TemplateEntry{Key: r.Key, Value: r.Value})
		}
		return entries, nil
	}

	var entries []models.TemplateEntry
	if req.SourceType == ScopeProject {
		overrides, err := s.prefs.ListProjectOverrides(req.SourceID, "")
		if err != nil {
			return nil, err
		}
		for _, o := range overrides {
			if len(include) == 0 || include[o.Category] {
				entries = append(entries, models.TemplateEntry{Key: o.Key, Value: o.Value})
			}
		}
	} else {
		prefs, err := s.prefs.ListUserPreferences(req.SourceID, "")
		if err != nil {
			return nil, err
		}
		for _, p := range prefs {
			if len(include) == 0 || include[p.Category] {
				entries = append(entries, models.TemplateEntry{Key: p.Key, Value: p.Value})
			}
		}
	}
	return entries, nil
}

type TemplateListRequest struct {
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
	Category string `form:"category"`
	Type     string `form:"type"`
}

type TemplateListResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []models.Template `json:"items"`
}

// List returns templates visible to the user: their own plus team and public
// ones.
func (s *TemplateService) List(req *TemplateListRequest, userID uint) (*TemplateListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var templates []models.Template
	var total int64

	query := s.db.Model(&models.Template{}).
		Where("created_by = ? OR type IN ?", userID, []string{models.TemplateTypeTeam, models.TemplateTypePublic})
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&templates).Error; err != nil {
		return nil, err
	}

	return &TemplateListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    templates,
	}, nil
}

// GetByPublicID fetches a template by its public UUID.
func (s *TemplateService) GetByPublicID(publicID string) (*models.Template, error) {
	var template models.Template
	if err := s.db.Where("public_id = ?", publicID).First(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

type UpdateTemplateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// UpdateMetadata changes the mutable metadata fields. The snapshotted
// preferences are immutable once created.
func (s *TemplateService) UpdateMetadata(template *models.Template, req *UpdateTemplateRequest) error {
	updates := map[string]interface{}{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(template).Updates(updates).Error
}

// Delete soft-deletes a template.
func (s *TemplateService) Delete(id uint) error {
	return s.db.Delete(&models.Template{}, id).Error
}

// Rate folds a 1-5 star rating into the running average.
func (s *TemplateService) Rate(template *models.Template, stars int) error {
	if stars < 1 || stars > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	total := template.Rating*float64(template.RatingCount) + float64(stars)
	template.RatingCount++
	template.Rating = total / float64(template.RatingCount)
	return s.db.Model(template).Updates(map[string]interface{}{
		"rating":       template.Rating,
		"rating_count": template.RatingCount,
	}).Error
}

// ApplyOptions narrows and steers a preview/apply run.
type ApplyOptions struct {
	SelectiveKeys     []string `json:"selective_keys"`
	OverwriteExisting bool     `json:"overwrite_existing"`
}

// PreviewEntry is one key's classification against the target scope.
type PreviewEntry struct {
	Key     string `json:"key"`
	Current string `json:"current"`
	New     string `json:"new"`
	Action  string `json:"action"` // new, update, conflict
}

type PreviewSummary struct {
	New      int `json:"new"`
	Update   int `json:"update"`
	Conflict int `json:"conflict"`
}

type PreviewResult struct {
	Entries []PreviewEntry `json:"entries"`
	Summary PreviewSummary `json:"summary"`
}

// Preview classifies every template key against the target scope without
// writing anything. Current values come from the resolution engine so the
// caller sees what the key resolves to today, override or fallback.
func (s *TemplateService) Preview(template *models.Template, targetType string, targetID uint, opts *ApplyOptions) (*PreviewResult, error) {
	entries, err := s.classify(template, targetType, targetID, opts)
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{Entries: entries}
	for _, e := range entries {
		switch e.Action {
		case ActionNew:
			result.Summary.New++
		case ActionUpdate:
			result.Summary.Update++
		case ActionConflict:
			result.Summary.Conflict++
		}
	}
	return result, nil
}

// classify computes the per-key action list shared by Preview and Apply.
func (s *TemplateService) classify(template *models.Template, targetType string, targetID uint, opts *ApplyOptions) ([]PreviewEntry, error) {
	templateEntries, err := template.Entries()
	if err != nil {
		return nil, err
	}

	selective := toSet(opts.SelectiveKeys)

	existing := map[string]string{}
	if targetType == ScopeProject {
		overrides, err := s.prefs.ListProjectOverrides(targetID, "")
		if err != nil {
			return nil, err
		}
		for _, o := range overrides {
			existing[o.Key] = o.Value
		}
	} else {
		prefs, err := s.prefs.ListUserPreferences(targetID, "")
		if err != nil {
			return nil, err
		}
		for _, p := range prefs {
			existing[p.Key] = p.Value
		}
	}

	var entries []PreviewEntry
	for _, te := range templateEntries {
		if len(selective) > 0 && !selective[te.Key] {
			continue
		}

		entry := PreviewEntry{Key: te.Key, New: te.Value}

		if current, ok := existing[te.Key]; ok {
			entry.Current = current
			if opts.OverwriteExisting {
				entry.Action = ActionUpdate
			} else {
				entry.Action = ActionConflict
			}
		} else {
			entry.Action = ActionNew
			if resolved, err := s.resolver.ResolveScope(targetType, targetID, te.Key); err == nil {
				entry.Current = resolved.Value
			}
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// ApplyError records one key that failed validation or persistence.
type ApplyError struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

type ApplyResult struct {
	AppliedCount int          `json:"applied_count"`
	SkippedCount int          `json:"skipped_count"`
	ErrorCount   int          `json:"error_count"`
	Errors       []ApplyError `json:"errors"`
}

// Apply re-runs the classification and persists every new/update entry
// through the override validator. Conflicts are skipped and counted;
// validation failures are collected, never aborting the batch. The
// template's usage counter is bumped once per apply, best-effort.
func (s *TemplateService) Apply(template *models.Template, targetType string, targetID uint, opts *ApplyOptions) (*ApplyResult, error) {
	entries, err := s.classify(template, targetType, targetID, opts)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{Errors: []ApplyError{}}
	for _, entry := range entries {
		if entry.Action == ActionConflict {
			result.SkippedCount++
			continue
		}

		if err := s.prefs.SetForScope(targetType, targetID, entry.Key, entry.New, models.SourceTemplate); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, ApplyError{Key: entry.Key, Reason: err.Error()})
			continue
		}
		result.AppliedCount++
	}

	// Non-critical counter; an error here does not fail the apply.
	s.db.Model(template).UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))

	return result, nil
}

func toSet(keys []string) map[string]bool {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
