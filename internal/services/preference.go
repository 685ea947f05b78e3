package services

import (
	"errors"

	"github.com/prefhub/prefhub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceService persists validated overrides. The quota check and the
// write happen inside one transaction; the validator locks the owning
// user/project row first, so concurrent writers racing a quota boundary
// serialize and the loser gets limit_exceeded instead of slipping past the
// count.
type PreferenceService struct {
	db        *gorm.DB
	validator *OverrideValidator
}

func NewPreferenceService(db *gorm.DB, validator *OverrideValidator) *PreferenceService {
	return &PreferenceService{db: db, validator: validator}
}

// lockForUpdate adds a row lock on drivers that support it. SQLite serializes
// writers on its own and rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Validator exposes the validator for callers that only need the decision.
func (s *PreferenceService) Validator() *OverrideValidator {
	return s.validator
}

// SetUserPreference validates and upserts a user-scope override. The stored
// value is the canonical form of the coerced candidate.
func (s *PreferenceService) SetUserPreference(userID uint, key, candidate, source string) (*models.UserPreference, error) {
	def, err := s.validator.ValidateOverride(ScopeUser, userID, key, candidate)
	if err != nil {
		return nil, err
	}
	value, err := CoerceValue(def, candidate)
	if err != nil {
		return nil, newValidationError(ReasonConstraintViolation, err.Error())
	}
	if source == "" {
		source = models.SourceAPI
	}

	var pref models.UserPreference
	err = s.db.Transaction(func(tx *gorm.DB) error {
		locked := lockForUpdate(tx)

		err := locked.Where("user_id = ? AND key = ?", userID, key).First(&pref).Error
		switch {
		case err == nil:
			pref.Value = value.Raw()
			pref.Source = source
			return tx.Save(&pref).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.validator.checkQuota(tx, ScopeUser, userID, key, def.Category); err != nil {
				return err
			}
			pref = models.UserPreference{
				UserID:   userID,
				Key:      key,
				Value:    value.Raw(),
				Category: def.Category,
				Source:   source,
			}
			return tx.Create(&pref).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// DeleteUserPreference removes a user override; resolution falls back to the
// next scope. Deleting a key with no override is a no-op.
func (s *PreferenceService) DeleteUserPreference(userID uint, key string) error {
	return s.db.Where("user_id = ? AND key = ?", userID, key).
		Delete(&models.UserPreference{}).Error
}

// ListUserPreferences returns the user's raw overrides, optionally filtered
// by category.
func (s *PreferenceService) ListUserPreferences(userID uint, category string) ([]models.UserPreference, error) {
	var prefs []models.UserPreference
	query := s.db.Where("user_id = ?", userID).Order("key")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Find(&prefs).Error
	return prefs, err
}

// SetProjectOverride validates and upserts a project-scope override.
func (s *PreferenceService) SetProjectOverride(projectID uint, key, candidate, source string) (*models.ProjectOverride, error) {
	def, err := s.validator.ValidateOverride(ScopeProject, projectID, key, candidate)
	if err != nil {
		return nil, err
	}
	value, err := CoerceValue(def, candidate)
	if err != nil {
		return nil, newValidationError(ReasonConstraintViolation, err.Error())
	}
	if source == "" {
		source = models.SourceAPI
	}

	var override models.ProjectOverride
	err = s.db.Transaction(func(tx *gorm.DB) error {
		locked := lockForUpdate(tx)

		err := locked.Where("project_id = ? AND key = ?", projectID, key).First(&override).Error
		switch {
		case err == nil:
			override.Value = value.Raw()
			override.Source = source
			return tx.Save(&override).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.validator.checkQuota(tx, ScopeProject, projectID, key, def.Category); err != nil {
				return err
			}
			override = models.ProjectOverride{
				ProjectID: projectID,
				Key:       key,
				Value:     value.Raw(),
				Category:  def.Category,
				Source:    source,
			}
			return tx.Create(&override).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &override, nil
}

// DeleteProjectOverride removes a project override.
func (s *PreferenceService) DeleteProjectOverride(projectID uint, key string) error {
	return s.db.Where("project_id = ? AND key = ?", projectID, key).
		Delete(&models.ProjectOverride{}).Error
}

// ListProjectOverrides returns a project's raw overrides.
func (s *PreferenceService) ListProjectOverrides(projectID uint, category string) ([]models.ProjectOverride, error) {
	var overrides []models.ProjectOverride
	query := s.db.Where("project_id = ?", projectID).Order("key")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Find(&overrides).Error
	return overrides, err
}

// SetForScope dispatches a write to the right scope table. Used by the
// template apply path.
func (s *PreferenceService) SetForScope(scope string, scopeID uint, key, candidate, source string) error {
	if scope == ScopeProject {
		_, err := s.SetProjectOverride(scopeID, key, candidate, source)
		return err
	}
	_, err := s.SetUserPreference(scopeID, key, candidate, source)
	return err
}
