package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prefhub/prefhub/internal/handlers"
	"github.com/prefhub/prefhub/internal/middleware"
	"github.com/prefhub/prefhub/internal/models"
	"github.com/prefhub/prefhub/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for unauthenticated auth routes
	authLimiter := middleware.NewRateLimiter(5, 10)

	// Health check
	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.CheckHealth)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Catalog (read only for all users)
			catalogHandler := handlers.NewCatalogHandler(models.GetDB())
			protected.GET("/catalog", catalogHandler.List)
			protected.GET("/catalog/categories", catalogHandler.Categories)
			protected.GET("/catalog/:key", catalogHandler.GetByKey)

			// Preferences (current user's own scope)
			preferenceHandler := handlers.NewPreferenceHandler(models.GetDB(), svc.prefService)
			protected.GET("/preferences", preferenceHandler.List)
			protected.GET("/preferences/effective", preferenceHandler.ResolveAll)
			protected.GET("/preferences/resolve/:key", preferenceHandler.Resolve)
			protected.POST("/preferences/validate", preferenceHandler.Validate)
			protected.PUT("/preferences/:key", preferenceHandler.Set)
			protected.DELETE("/preferences/:key", preferenceHandler.Delete)

			// Projects (read for all users)
			projectHandler := handlers.NewProjectHandler(models.GetDB())
			protected.GET("/projects", projectHandler.List)
			protected.GET("/projects/:id", projectHandler.GetByID)
			protected.GET("/projects/:id/overrides", preferenceHandler.ListProjectOverrides)

			// Templates
			templateHandler := handlers.NewTemplateHandler(svc.templateService)
			protected.GET("/templates", templateHandler.List)
			protected.GET("/templates/:id", templateHandler.Get)
			protected.POST("/templates", templateHandler.Create)
			protected.PUT("/templates/:id", templateHandler.Update)
			protected.DELETE("/templates/:id", templateHandler.Delete)
			protected.POST("/templates/:id/rate", templateHandler.Rate)
			protected.POST("/templates/:id/preview", templateHandler.Preview)
			protected.POST("/templates/:id/apply", templateHandler.Apply)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			// Projects (write operations)
			projectHandler := handlers.NewProjectHandler(models.GetDB())
			admin.POST("/projects", projectHandler.Create)
			admin.PUT("/projects/:id", projectHandler.Update)
			admin.DELETE("/projects/:id", projectHandler.Delete)

			// Project overrides (write operations)
			preferenceHandler := handlers.NewPreferenceHandler(models.GetDB(), svc.prefService)
			admin.PUT("/projects/:id/overrides/:key", preferenceHandler.SetProjectOverride)
			admin.DELETE("/projects/:id/overrides/:key", preferenceHandler.DeleteProjectOverride)

			// Users
			userHandler := handlers.NewUserHandler(models.GetDB())
			admin.GET("/users", userHandler.List)
			admin.PUT("/users/:id", userHandler.Update)
			admin.DELETE("/users/:id", userHandler.Delete)

			// System Logs
			systemLogHandler := handlers.NewSystemLogHandler(models.GetDB())
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
			admin.POST("/system-logs/cleanup", systemLogHandler.Cleanup)
		}
	}
}
