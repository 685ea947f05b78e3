package main

import (
	"github.com/prefhub/prefhub/internal/config"
	"github.com/prefhub/prefhub/internal/handlers"
	"github.com/prefhub/prefhub/internal/models"
	"github.com/prefhub/prefhub/internal/services"
	"github.com/prefhub/prefhub/internal/utils"
	"github.com/prefhub/prefhub/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	prefService     *services.PreferenceService
	templateService *services.TemplateService
	taskQueue       services.TaskQueue
	worker          *services.Worker
	authHandler     *handlers.AuthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed the built-in catalog
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	// Merge the external catalog file, if configured. A broken catalog is a
	// hard failure: resolution cannot be trusted against bad defaults.
	if cfg.Prefs.CatalogPath != "" {
		catalogService := services.NewCatalogService(models.GetDB())
		loaded, err := catalogService.LoadCatalogFile(cfg.Prefs.CatalogPath)
		if err != nil {
			logger.Fatalf("Failed to load catalog file %s: %v", cfg.Prefs.CatalogPath, err)
		}
		logger.Infof("Loaded %d catalog entries from %s", loaded, cfg.Prefs.CatalogPath)
	}

	// Initialize system logger
	services.InitSystemLogger(models.GetDB())

	// Start audit log cleanup scheduler
	services.StartLogCleanupScheduler(models.GetDB(), cfg.Prefs.AuditCleanupCron, cfg.Prefs.AuditRetentionDays)

	// Core preference services
	validator := services.NewOverrideValidator(models.GetDB(), cfg.Prefs.DefaultMaxOverrides)
	prefService := services.NewPreferenceService(models.GetDB(), validator)
	resolver := services.NewResolverService(models.GetDB())
	templateService := services.NewTemplateService(models.GetDB(), resolver, prefService)

	// Initialize task queue (uses Redis if enabled, otherwise sync mode)
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(templateService.ProcessApplyTask)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(templateService.ProcessApplyTask)
			worker.Start()
		}
	}

	// Create default admin user
	authHandler := handlers.NewAuthHandler(models.GetDB(), cfg)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		prefService:     prefService,
		templateService: templateService,
		taskQueue:       taskQueue,
		worker:          worker,
		authHandler:     authHandler,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	services.StopLogCleanupScheduler()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
