package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Template visibility types.
const (
	TemplateTypePrivate = "private"
	TemplateTypeTeam    = "team"
	TemplateTypePublic  = "public"
)

// TemplateEntry is a single key/value pair inside a template snapshot.
// Entries keep the order they were snapshotted in; keys are unique.
type TemplateEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Template is a named, immutable snapshot of preference key/value pairs that
// can be bulk-applied to a user or project. Only the metadata fields (name,
// description, category) and the rating/usage counters change after creation;
// applying a template never mutates its preferences.
type Template struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	PublicID    string         `gorm:"uniqueIndex;size:36;not null" json:"public_id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	Description string         `gorm:"size:500" json:"description"`
	Category    string         `gorm:"size:100;index" json:"category"`
	Type        string         `gorm:"size:20;default:private;index" json:"type"` // private, team, public
	CreatedBy   uint           `gorm:"index" json:"created_by"`
	Preferences string         `gorm:"type:text;not null" json:"-"` // JSON array of TemplateEntry
	Rating      float64        `gorm:"default:0" json:"rating"`
	RatingCount int            `gorm:"default:0" json:"rating_count"`
	UsageCount  int            `gorm:"default:0" json:"usage_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns the public UUID.
func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.PublicID == "" {
		t.PublicID = uuid.NewString()
	}
	return nil
}

// Entries decodes the snapshotted preference pairs.
func (t *Template) Entries() ([]TemplateEntry, error) {
	if t.Preferences == "" {
		return nil, nil
	}
	var entries []TemplateEntry
	if err := json.Unmarshal([]byte(t.Preferences), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SetEntries encodes the preference pairs into the stored JSON column.
func (t *Template) SetEntries(entries []TemplateEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	t.Preferences = string(data)
	return nil
}

func (Template) TableName() string { return "templates" }
