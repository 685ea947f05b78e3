package services

import (
	"errors"

	"github.com/prefhub/prefhub/internal/models"
	"gorm.io/gorm"
)

// OverrideValidator decides whether an override write is permitted. It is a
// pure decision function over store reads: callers persist after a nil
// verdict. Role checks are not its business; the transport layer's auth
// middleware handles those before the validator runs.
type OverrideValidator struct {
	db *gorm.DB
	// maxOverrides is the per-category quota for user scope and for
	// projects without their own limit.
	maxOverrides int
}

func NewOverrideValidator(db *gorm.DB, maxOverrides int) *OverrideValidator {
	return &OverrideValidator{db: db, maxOverrides: maxOverrides}
}

// ValidateOverride runs the ordered checks: known key, type/constraints,
// project override enablement, category allow-list, quota. It returns the
// catalog entry on success so callers can reuse the category without a
// second lookup. The quota verdict here is advisory; the write path repeats
// it inside the persisting transaction.
func (v *OverrideValidator) ValidateOverride(scope string, scopeID uint, key, candidate string) (*models.SystemDefault, error) {
	var def models.SystemDefault
	if err := v.db.Where("key = ?", key).First(&def).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newValidationError(ReasonUnknownKey, key)
		}
		return nil, err
	}

	if _, err := CoerceValue(&def, candidate); err != nil {
		return nil, newValidationError(ReasonConstraintViolation, err.Error())
	}

	if scope == ScopeProject {
		var project models.Project
		if err := v.db.First(&project, scopeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, newValidationError(ReasonOverridesDisabled, "project not found")
			}
			return nil, err
		}
		if !project.OverridesEnabled {
			return nil, newValidationError(ReasonOverridesDisabled, "project overrides are disabled")
		}
		if !project.CategoryAllowed(def.Category) {
			return nil, newValidationError(ReasonCategoryNotAllowed, def.Category)
		}
	}

	if err := v.checkQuota(v.db, scope, scopeID, key, def.Category); err != nil {
		return nil, err
	}

	return &def, nil
}

// QuotaFor returns the effective per-category override limit for a scope.
func (v *OverrideValidator) QuotaFor(scope string, scopeID uint) int {
	if scope == ScopeProject {
		var project models.Project
		if err := v.db.First(&project, scopeID).Error; err == nil && project.MaxOverrides > 0 {
			return project.MaxOverrides
		}
	}
	return v.maxOverrides
}

// checkQuota rejects a new override when the (scope_id, category) count has
// reached the limit. Updating an already-overridden key never consumes
// quota. The tx argument lets the write path rerun this check inside its
// transaction so two concurrent writers cannot both pass: the owning
// user/project row is locked first, serializing the count-then-insert.
// Postgres rejects locking clauses on aggregates, so the counts themselves
// run unlocked.
func (v *OverrideValidator) checkQuota(tx *gorm.DB, scope string, scopeID uint, key, category string) error {
	limit := v.QuotaFor(scope, scopeID)
	if limit <= 0 {
		return nil
	}

	if err := v.lockScopeRow(tx, scope, scopeID); err != nil {
		return err
	}

	var existing, count int64
	if scope == ScopeProject {
		if err := tx.Model(&models.ProjectOverride{}).Where("project_id = ? AND key = ?", scopeID, key).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		if err := tx.Model(&models.ProjectOverride{}).Where("project_id = ? AND category = ?", scopeID, category).Count(&count).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Model(&models.UserPreference{}).Where("user_id = ? AND key = ?", scopeID, key).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		if err := tx.Model(&models.UserPreference{}).Where("user_id = ? AND category = ?", scopeID, category).Count(&count).Error; err != nil {
			return err
		}
	}

	if count >= int64(limit) {
		return newValidationError(ReasonLimitExceeded, category)
	}
	return nil
}

// lockScopeRow takes a write lock on the user or project row that owns the
// overrides, acting as the per-scope quota mutex. A scope with no owner row
// has nothing to lock; the check then proceeds unserialized.
func (v *OverrideValidator) lockScopeRow(tx *gorm.DB, scope string, scopeID uint) error {
	var err error
	if scope == ScopeProject {
		var project models.Project
		err = lockForUpdate(tx).Select("id").First(&project, scopeID).Error
	} else {
		var user models.User
		err = lockForUpdate(tx).Select("id").First(&user, scopeID).Error
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}
