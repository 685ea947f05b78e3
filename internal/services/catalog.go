package services

import (
	"fmt"
	"os"

	"github.com/prefhub/prefhub/internal/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// CatalogService reads the system default catalog. The catalog is seeded at
// startup (built-ins plus an optional YAML file) and is read-only afterwards.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// List returns catalog entries, optionally filtered by category.
func (s *CatalogService) List(category string) ([]models.SystemDefault, error) {
	var defaults []models.SystemDefault
	query := s.db.Order("key")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Find(&defaults).Error
	return defaults, err
}

// GetByKey returns a single catalog entry.
func (s *CatalogService) GetByKey(key string) (*models.SystemDefault, error) {
	var def models.SystemDefault
	if err := s.db.Where("key = ?", key).First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

// Categories returns the distinct categories present in the catalog.
func (s *CatalogService) Categories() ([]string, error) {
	var categories []string
	err := s.db.Model(&models.SystemDefault{}).
		Distinct("category").Order("category").Pluck("category", &categories).Error
	return categories, err
}

// catalogFile is the YAML shape of an external catalog document.
type catalogFile struct {
	Defaults []catalogEntry `yaml:"defaults"`
}

type catalogEntry struct {
	Key         string `yaml:"key"`
	Category    string `yaml:"category"`
	DataType    string `yaml:"data_type"`
	Default     string `yaml:"default"`
	Constraints string `yaml:"constraints"` // JSON, same shape as the column
	Description string `yaml:"description"`
}

// LoadCatalogFile merges catalog entries from a YAML file into the store.
// Existing keys are updated in place (deploy-time catalog changes), new keys
// are inserted. Entries must parse against their own declared type so a bad
// catalog fails the boot instead of poisoning resolution.
func (s *CatalogService) LoadCatalogFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("malformed catalog file: %w", err)
	}

	loaded := 0
	for _, entry := range file.Defaults {
		if entry.Key == "" {
			return loaded, fmt.Errorf("catalog entry missing key")
		}
		category := entry.Category
		if category == "" {
			category = models.CategoryOf(entry.Key)
		}
		dataType := entry.DataType
		if dataType == "" {
			dataType = models.DataTypeString
		}

		def := models.SystemDefault{
			Key:          entry.Key,
			Category:     category,
			DataType:     dataType,
			DefaultValue: entry.Default,
			Constraints:  entry.Constraints,
			Description:  entry.Description,
		}
		if _, err := CoerceValue(&def, def.DefaultValue); err != nil {
			return loaded, fmt.Errorf("catalog entry %s: default value invalid: %w", entry.Key, err)
		}

		var existing models.SystemDefault
		err := s.db.Where("key = ?", entry.Key).First(&existing).Error
		switch {
		case err == nil:
			existing.Category = def.Category
			existing.DataType = def.DataType
			existing.DefaultValue = def.DefaultValue
			existing.Constraints = def.Constraints
			existing.Description = def.Description
			if err := s.db.Save(&existing).Error; err != nil {
				return loaded, err
			}
		case err == gorm.ErrRecordNotFound:
			if err := s.db.Create(&def).Error; err != nil {
				return loaded, err
			}
		default:
			return loaded, err
		}
		loaded++
	}

	return loaded, nil
}
