package services

import (
	"errors"
	"time"

	"github.com/prefhub/prefhub/internal/models"
	"gorm.io/gorm"
)

// Resolution scope names, in precedence order (strongest first).
const (
	ScopeProject = "project"
	ScopeUser    = "user"
	ScopeSystem  = "system"
)

// ResolverService computes effective preference values by walking the scope
// chain project -> user -> system. Reads only; safe for concurrent use.
type ResolverService struct {
	db *gorm.DB
}

func NewResolverService(db *gorm.DB) *ResolverService {
	return &ResolverService{db: db}
}

// EffectiveValue is a resolved preference with its provenance.
type EffectiveValue struct {
	Key          string     `json:"key"`
	Value        string     `json:"value"`
	DataType     string     `json:"data_type"`
	Category     string     `json:"category"`
	Source       string     `json:"source"` // project, user, system
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Resolve returns the effective value for key, preferring a project override
// (when projectID is given), then the user's preference, then the system
// default. A key absent from the catalog fails with ErrUnknownKey.
func (s *ResolverService) Resolve(userID uint, key string, projectID *uint) (*EffectiveValue, error) {
	var def models.SystemDefault
	if err := s.db.Where("key = ?", key).First(&def).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownKey
		}
		return nil, err
	}

	if projectID != nil {
		var override models.ProjectOverride
		err := s.db.Where("project_id = ? AND key = ?", *projectID, key).First(&override).Error
		if err == nil {
			modified := override.UpdatedAt
			return &EffectiveValue{
				Key:          key,
				Value:        override.Value,
				DataType:     def.DataType,
				Category:     def.Category,
				Source:       ScopeProject,
				LastModified: &modified,
			}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var pref models.UserPreference
	err := s.db.Where("user_id = ? AND key = ?", userID, key).First(&pref).Error
	if err == nil {
		modified := pref.UpdatedAt
		return &EffectiveValue{
			Key:          key,
			Value:        pref.Value,
			DataType:     def.DataType,
			Category:     def.Category,
			Source:       ScopeUser,
			LastModified: &modified,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return &EffectiveValue{
		Key:      key,
		Value:    def.DefaultValue,
		DataType: def.DataType,
		Category: def.Category,
		Source:   ScopeSystem,
	}, nil
}

// ResolveScope resolves for a single scope target: user targets walk
// user -> system, project targets walk project -> system. Used by the
// template diff to compute a target's current value.
func (s *ResolverService) ResolveScope(scopeType string, scopeID uint, key string) (*EffectiveValue, error) {
	if scopeType == ScopeProject {
		return s.Resolve(0, key, &scopeID)
	}
	return s.Resolve(scopeID, key, nil)
}

// ResolveAll returns the full effective map for a user (and optional
// project), one entry per catalog key, filtered to categories when given.
func (s *ResolverService) ResolveAll(userID uint, projectID *uint, categories []string) ([]EffectiveValue, error) {
	var defaults []models.SystemDefault
	query := s.db.Order("key")
	if len(categories) > 0 {
		query = query.Where("category IN ?", categories)
	}
	if err := query.Find(&defaults).Error; err != nil {
		return nil, err
	}

	var prefs []models.UserPreference
	if err := s.db.Where("user_id = ?", userID).Find(&prefs).Error; err != nil {
		return nil, err
	}
	userValues := make(map[string]models.UserPreference, len(prefs))
	for _, p := range prefs {
		userValues[p.Key] = p
	}

	projectValues := map[string]models.ProjectOverride{}
	if projectID != nil {
		var overrides []models.ProjectOverride
		if err := s.db.Where("project_id = ?", *projectID).Find(&overrides).Error; err != nil {
			return nil, err
		}
		for _, o := range overrides {
			projectValues[o.Key] = o
		}
	}

	results := make([]EffectiveValue, 0, len(defaults))
	for _, def := range defaults {
		resolved := EffectiveValue{
			Key:      def.Key,
			Value:    def.DefaultValue,
			DataType: def.DataType,
			Category: def.Category,
			Source:   ScopeSystem,
		}
		if pref, ok := userValues[def.Key]; ok {
			modified := pref.UpdatedAt
			resolved.Value = pref.Value
			resolved.Source = ScopeUser
			resolved.LastModified = &modified
		}
		if override, ok := projectValues[def.Key]; ok {
			modified := override.UpdatedAt
			resolved.Value = override.Value
			resolved.Source = ScopeProject
			resolved.LastModified = &modified
		}
		results = append(results, resolved)
	}

	return results, nil
}
