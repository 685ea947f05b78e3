package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prefhub/prefhub/internal/middleware"
	"github.com/prefhub/prefhub/internal/services"
	"github.com/prefhub/prefhub/pkg/response"
	"gorm.io/gorm"
)

type PreferenceHandler struct {
	resolver *services.ResolverService
	prefs    *services.PreferenceService
}

func NewPreferenceHandler(db *gorm.DB, prefs *services.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{
		resolver: services.NewResolverService(db),
		prefs:    prefs,
	}
}

// writePrefError maps resolution and validation failures onto HTTP statuses:
// an unknown key is 404, a rejected override is 422 with the reason attached.
func writePrefError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrUnknownKey) {
		response.NotFound(c, err.Error())
		return
	}
	if verr, ok := services.AsValidationError(err); ok {
		if verr.Reason == services.ReasonUnknownKey {
			response.NotFound(c, verr.Error())
			return
		}
		response.Unprocessable(c, verr.Error())
		return
	}
	response.ServerError(c, err.Error())
}

// projectIDParam reads an optional project_id query parameter.
func projectIDParam(c *gin.Context) (*uint, bool) {
	raw := c.Query("project_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, false
	}
	pid := uint(id)
	return &pid, true
}

// Resolve returns the effective value for one key with its provenance
// GET /api/preferences/resolve/:key
func (h *PreferenceHandler) Resolve(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		response.BadRequest(c, "invalid project_id")
		return
	}

	userID := middleware.GetUserID(c)
	resolved, err := h.resolver.Resolve(userID, c.Param("key"), projectID)
	if err != nil {
		writePrefError(c, err)
		return
	}

	response.Success(c, resolved)
}

// ResolveAll returns the full effective preference map for the current user
// GET /api/preferences/effective
func (h *PreferenceHandler) ResolveAll(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		response.BadRequest(c, "invalid project_id")
		return
	}

	var categories []string
	if raw := c.Query("categories"); raw != "" {
		categories = strings.Split(raw, ",")
	}

	userID := middleware.GetUserID(c)
	resolved, err := h.resolver.ResolveAll(userID, projectID, categories)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"items": resolved, "total": len(resolved)})
}

// List returns the current user's raw overrides
// GET /api/preferences
func (h *PreferenceHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	prefs, err := h.prefs.ListUserPreferences(userID, c.Query("category"))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"items": prefs, "total": len(prefs)})
}

type setPreferenceRequest struct {
	Value string `json:"value" binding:"required"`
}

// Set validates and upserts a user-scope override
// PUT /api/preferences/:key
func (h *PreferenceHandler) Set(c *gin.Context) {
	var req setPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	pref, err := h.prefs.SetUserPreference(userID, c.Param("key"), req.Value, "")
	if err != nil {
		writePrefError(c, err)
		return
	}

	response.Success(c, pref)
}

// Delete removes a user override; resolution falls back to the next scope
// DELETE /api/preferences/:key
func (h *PreferenceHandler) Delete(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if err := h.prefs.DeleteUserPreference(userID, c.Param("key")); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "preference removed"})
}

type validateRequest struct {
	Scope   string `json:"scope" binding:"required,oneof=user project"`
	ScopeID uint   `json:"scope_id"`
	Key     string `json:"key" binding:"required"`
	Value   string `json:"value" binding:"required"`
}

// Validate dry-runs the override validator without persisting anything
// POST /api/preferences/validate
func (h *PreferenceHandler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	scopeID := req.ScopeID
	if req.Scope == services.ScopeUser && scopeID == 0 {
		scopeID = middleware.GetUserID(c)
	}

	_, err := h.prefs.Validator().ValidateOverride(req.Scope, scopeID, req.Key, req.Value)
	if err != nil {
		if verr, ok := services.AsValidationError(err); ok {
			response.Success(c, gin.H{
				"valid":   false,
				"reason":  verr.Reason,
				"details": verr.Details,
			})
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"valid": true})
}

// ListProjectOverrides returns a project's raw overrides
// GET /api/projects/:id/overrides
func (h *PreferenceHandler) ListProjectOverrides(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	overrides, err := h.prefs.ListProjectOverrides(uint(id), c.Query("category"))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"items": overrides, "total": len(overrides)})
}

// SetProjectOverride validates and upserts a project-scope override
// PUT /api/projects/:id/overrides/:key
func (h *PreferenceHandler) SetProjectOverride(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	var req setPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	override, err := h.prefs.SetProjectOverride(uint(id), c.Param("key"), req.Value, "")
	if err != nil {
		writePrefError(c, err)
		return
	}

	response.Success(c, override)
}

// DeleteProjectOverride removes a project override
// DELETE /api/projects/:id/overrides/:key
func (h *PreferenceHandler) DeleteProjectOverride(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	if err := h.prefs.DeleteProjectOverride(uint(id), c.Param("key")); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "override removed"})
}
