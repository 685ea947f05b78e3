package services

import (
	"testing"

	"github.com/prefhub/prefhub/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory store with the full schema and a small
// catalog covering every data type and constraint kind.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, ":memory:")
}

// openTestDB opens a store at dsn with the full schema and seeded catalog.
// Concurrency tests pass a file path here; in-memory sqlite is per-connection.
func openTestDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.SystemDefault{},
		&models.UserPreference{},
		&models.ProjectOverride{},
		&models.Template{},
		&models.SystemLog{},
		&models.RefreshToken{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	catalog := []models.SystemDefault{
		{
			Key:          "llm.providers.primary",
			Category:     "llm",
			DataType:     models.DataTypeString,
			DefaultValue: "openai",
			Constraints:  `{"enum":["openai","anthropic","gemini","ollama","azure"]}`,
		},
		{
			Key:          "llm.temperature",
			Category:     "llm",
			DataType:     models.DataTypeFloat,
			DefaultValue: "0.3",
			Constraints:  `{"min":0,"max":2}`,
		},
		{
			Key:          "editor.theme",
			Category:     "editor",
			DataType:     models.DataTypeString,
			DefaultValue: "dark",
			Constraints:  `{"enum":["dark","light","system"]}`,
		},
		{
			Key:          "editor.tab_width",
			Category:     "editor",
			DataType:     models.DataTypeInteger,
			DefaultValue: "4",
			Constraints:  `{"min":1,"max":16}`,
		},
		{
			Key:          "editor.locale",
			Category:     "editor",
			DataType:     models.DataTypeString,
			DefaultValue: "en-US",
			Constraints:  `{"pattern":"^[a-z]{2}(-[A-Z]{2})?$"}`,
		},
		{
			Key:          "notifications.email.enabled",
			Category:     "notifications",
			DataType:     models.DataTypeBoolean,
			DefaultValue: "true",
		},
		{
			Key:          "notifications.digest.schedule",
			Category:     "notifications",
			DataType:     models.DataTypeJSON,
			DefaultValue: `{"frequency":"daily","hour":9}`,
		},
	}
	for i := range catalog {
		if err := db.Create(&catalog[i]).Error; err != nil {
			t.Fatalf("failed to seed catalog: %v", err)
		}
	}

	return db
}

// createTestProject inserts a project with override policy knobs set.
func createTestProject(t *testing.T, db *gorm.DB, overridesEnabled bool, allowedCategories string, maxOverrides int) *models.Project {
	t.Helper()

	project := models.Project{
		Name:              "test-project",
		OverridesEnabled:  overridesEnabled,
		AllowedCategories: allowedCategories,
		MaxOverrides:      maxOverrides,
		CreatedBy:         1,
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return &project
}

// newTestStack wires the validator, write path, resolver and template service
// against one test database.
func newTestStack(t *testing.T, db *gorm.DB, maxOverrides int) (*OverrideValidator, *PreferenceService, *ResolverService, *TemplateService) {
	t.Helper()

	validator := NewOverrideValidator(db, maxOverrides)
	prefs := NewPreferenceService(db, validator)
	resolver := NewResolverService(db)
	templates := NewTemplateService(db, resolver, prefs)
	return validator, prefs, resolver, templates
}
