package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prefhub/prefhub/internal/services"
	"github.com/prefhub/prefhub/pkg/response"
	"gorm.io/gorm"
)

type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(db *gorm.DB) *CatalogHandler {
	return &CatalogHandler{
		catalogService: services.NewCatalogService(db),
	}
}

// List returns the system default catalog
// GET /api/catalog
func (h *CatalogHandler) List(c *gin.Context) {
	defaults, err := h.catalogService.List(c.Query("category"))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"items": defaults, "total": len(defaults)})
}

// GetByKey returns a single catalog entry
// GET /api/catalog/:key
func (h *CatalogHandler) GetByKey(c *gin.Context) {
	def, err := h.catalogService.GetByKey(c.Param("key"))
	if err != nil {
		response.NotFound(c, "unknown preference key")
		return
	}
	response.Success(c, def)
}

// Categories returns the distinct catalog categories
// GET /api/catalog/categories
func (h *CatalogHandler) Categories(c *gin.Context) {
	categories, err := h.catalogService.Categories()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"categories": categories})
}
