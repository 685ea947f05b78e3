package models

import (
	"fmt"

	"github.com/prefhub/prefhub/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func AutoMigrate() error {
	return DB.AutoMigrate(
		&User{},
		&Project{},
		&SystemDefault{},
		&UserPreference{},
		&ProjectOverride{},
		&Template{},
		&SystemLog{},
		&RefreshToken{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates the built-in preference catalog if absent. Entries
// loaded later from the catalog file (config prefs.catalog_path) are merged
// on top of these.
func SeedDefaultData() error {
	defaults := []SystemDefault{
		{
			Key:          "llm.providers.primary",
			Category:     "llm",
			DataType:     DataTypeString,
			DefaultValue: "openai",
			Constraints:  `{"enum":["openai","anthropic","gemini","ollama","azure"]}`,
			Description:  "Primary LLM provider for generation tasks",
		},
		{
			Key:          "llm.providers.fallback",
			Category:     "llm",
			DataType:     DataTypeString,
			DefaultValue: "anthropic",
			Constraints:  `{"enum":["openai","anthropic","gemini","ollama","azure"]}`,
			Description:  "Fallback provider when the primary is unavailable",
		},
		{
			Key:          "llm.temperature",
			Category:     "llm",
			DataType:     DataTypeFloat,
			DefaultValue: "0.3",
			Constraints:  `{"min":0,"max":2}`,
			Description:  "Sampling temperature",
		},
		{
			Key:          "llm.max_tokens",
			Category:     "llm",
			DataType:     DataTypeInteger,
			DefaultValue: "4096",
			Constraints:  `{"min":1,"max":128000}`,
			Description:  "Max tokens per completion",
		},
		{
			Key:          "editor.theme",
			Category:     "editor",
			DataType:     DataTypeString,
			DefaultValue: "dark",
			Constraints:  `{"enum":["dark","light","system"]}`,
			Description:  "UI color theme",
		},
		{
			Key:          "editor.tab_width",
			Category:     "editor",
			DataType:     DataTypeInteger,
			DefaultValue: "4",
			Constraints:  `{"min":1,"max":16}`,
			Description:  "Tab width in spaces",
		},
		{
			Key:          "editor.locale",
			Category:     "editor",
			DataType:     DataTypeString,
			DefaultValue: "en-US",
			Constraints:  `{"pattern":"^[a-z]{2}(-[A-Z]{2})?$"}`,
			Description:  "Display language",
		},
		{
			Key:          "notifications.email.enabled",
			Category:     "notifications",
			DataType:     DataTypeBoolean,
			DefaultValue: "true",
			Description:  "Send email notifications",
		},
		{
			Key:          "notifications.digest.schedule",
			Category:     "notifications",
			DataType:     DataTypeJSON,
			DefaultValue: `{"frequency":"daily","hour":9}`,
			Description:  "Digest delivery schedule",
		},
	}

	for _, def := range defaults {
		var count int64
		DB.Model(&SystemDefault{}).Where("key = ?", def.Key).Count(&count)
		if count == 0 {
			if err := DB.Create(&def).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
