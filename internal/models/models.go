package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User represents a system user
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password  string         `gorm:"size:255" json:"-"` // Hashed password, empty for LDAP users
	Email     string         `gorm:"size:255" json:"email"`
	Nickname  string         `gorm:"size:100" json:"nickname"`
	Role      string         `gorm:"size:50;default:user" json:"role"`       // admin, user
	AuthType  string         `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Project represents a workspace whose members can share preference overrides.
// Overrides are off by default and must be enabled per project; the category
// allow-list and the per-category quota gate what can be overridden.
type Project struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"size:200;not null" json:"name"`
	Description       string         `gorm:"size:500" json:"description"`
	OverridesEnabled  bool           `gorm:"default:false" json:"overrides_enabled"`
	AllowedCategories string         `gorm:"size:1000" json:"allowed_categories"` // csv: llm,editor,notifications
	MaxOverrides      int            `gorm:"default:0" json:"max_overrides"`      // per category; 0 = server default
	CreatedBy         uint           `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// AllowedCategoryList splits the csv allow-list, dropping empty entries.
func (p *Project) AllowedCategoryList() []string {
	if p.AllowedCategories == "" {
		return nil
	}
	parts := strings.Split(p.AllowedCategories, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// CategoryAllowed reports whether the project allow-list contains category.
// An empty allow-list restricts nothing.
func (p *Project) CategoryAllowed(category string) bool {
	list := p.AllowedCategoryList()
	if len(list) == 0 {
		return true
	}
	for _, allowed := range list {
		if allowed == category {
			return true
		}
	}
	return false
}

// SystemLog represents an audit record of a write operation
type SystemLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"size:20;index" json:"level"` // info, warning, error
	Module    string    `gorm:"size:100;index" json:"module"`
	Action    string    `gorm:"size:200;index" json:"action"`
	Message   string    `gorm:"type:text" json:"message"`
	UserID    *uint     `json:"user_id"`
	IP        string    `gorm:"size:50" json:"ip"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	Extra     string    `gorm:"type:text" json:"extra"` // JSON extra data
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// RefreshToken stores a hashed, rotatable refresh token per session.
type RefreshToken struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"index;not null" json:"user_id"`
	TokenHash         string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt         time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt         *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	ReplacedByTokenID *uint      `gorm:"index" json:"replaced_by_token_id,omitempty"`
	CreatedByIP       string     `gorm:"size:64" json:"created_by_ip,omitempty"`
	UserAgent         string     `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName overrides
func (User) TableName() string         { return "users" }
func (Project) TableName() string      { return "projects" }
func (SystemLog) TableName() string    { return "system_logs" }
func (RefreshToken) TableName() string { return "refresh_tokens" }
