package models

import (
	"strings"
	"time"
)

// Preference value data types. Values are stored as text in every scope and
// only coerced/validated at write time.
const (
	DataTypeBoolean = "boolean"
	DataTypeString  = "string"
	DataTypeInteger = "integer"
	DataTypeFloat   = "float"
	DataTypeJSON    = "json"
)

// Override provenance sources.
const (
	SourceAPI      = "api"
	SourceTemplate = "template"
	SourceImport   = "import"
)

// SystemDefault is a catalog entry: the final fallback for resolution and the
// schema (type + constraints) every override must satisfy. The catalog is
// seeded at startup and read-only to the resolution and validation logic.
type SystemDefault struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Key          string    `gorm:"uniqueIndex;size:200;not null" json:"key"` // dotted path, e.g. llm.providers.primary
	Category     string    `gorm:"size:100;index;not null" json:"category"`
	DataType     string    `gorm:"size:20;default:string" json:"data_type"` // boolean, string, integer, float, json
	DefaultValue string    `gorm:"type:text" json:"default_value"`
	Constraints  string    `gorm:"type:text" json:"constraints"` // JSON: {"min":..,"max":..,"enum":[..],"pattern":".."}
	Description  string    `gorm:"size:500" json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPreference is a user-scope override for a single catalog key.
// One row per (user_id, key); deleting it falls back to the system default.
type UserPreference struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_prefs_user_key,priority:1;index:idx_user_prefs_user_cat,priority:1" json:"user_id"`
	Key       string    `gorm:"size:200;not null;uniqueIndex:idx_user_prefs_user_key,priority:2" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	Category  string    `gorm:"size:100;index:idx_user_prefs_user_cat,priority:2" json:"category"`
	Source    string    `gorm:"size:20;default:api" json:"source"` // api, template, import
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectOverride is a project-scope override. It outranks user preferences
// during resolution and can only exist while the project's override feature
// is enabled and the key's category is allow-listed.
type ProjectOverride struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_project_overrides_proj_key,priority:1;index:idx_project_overrides_proj_cat,priority:1" json:"project_id"`
	Key       string    `gorm:"size:200;not null;uniqueIndex:idx_project_overrides_proj_key,priority:2" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	Category  string    `gorm:"size:100;index:idx_project_overrides_proj_cat,priority:2" json:"category"`
	Source    string    `gorm:"size:20;default:api" json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryOf derives the category from a dotted key prefix ("llm.providers.primary" -> "llm").
func CategoryOf(key string) string {
	if idx := strings.Index(key, "."); idx > 0 {
		return key[:idx]
	}
	return key
}

func (SystemDefault) TableName() string   { return "system_defaults" }
func (UserPreference) TableName() string  { return "user_preferences" }
func (ProjectOverride) TableName() string { return "project_overrides" }
