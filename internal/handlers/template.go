package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prefhub/prefhub/internal/middleware"
	"github.com/prefhub/prefhub/internal/models"
	"github.com/prefhub/prefhub/internal/services"
	"github.com/prefhub/prefhub/pkg/response"
)

type TemplateHandler struct {
	templateService *services.TemplateService
}

func NewTemplateHandler(templateService *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// loadVisible fetches a template by public ID and checks the caller may see
// it: private templates are visible to their creator only.
func (h *TemplateHandler) loadVisible(c *gin.Context) *models.Template {
	template, err := h.templateService.GetByPublicID(c.Param("id"))
	if err != nil {
		response.NotFound(c, "template not found")
		return nil
	}

	userID := middleware.GetUserID(c)
	if template.Type == models.TemplateTypePrivate && template.CreatedBy != userID {
		response.NotFound(c, "template not found")
		return nil
	}
	return template
}

// Create snapshots a scope's preferences into a new template
// POST /api/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var req services.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	if req.SourceType == services.ScopeUser && req.SourceID != userID && middleware.GetRole(c) != "admin" {
		response.Forbidden(c, "cannot snapshot another user's preferences")
		return
	}

	template, err := h.templateService.CreateFromScope(&req, userID)
	if err != nil {
		if errors.Is(err, services.ErrEmptySource) {
			response.Unprocessable(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Created(c, template)
}

// List returns templates visible to the current user
// GET /api/templates
func (h *TemplateHandler) List(c *gin.Context) {
	var req services.TemplateListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.templateService.List(&req, middleware.GetUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, resp)
}

// Get returns a template with its snapshotted entries
// GET /api/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	template := h.loadVisible(c)
	if template == nil {
		return
	}

	entries, err := template.Entries()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"template": template, "entries": entries})
}

// Update changes a template's metadata; the snapshot itself is immutable
// PUT /api/templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	template := h.loadVisible(c)
	if template == nil {
		return
	}

	if template.CreatedBy != middleware.GetUserID(c) && middleware.GetRole(c) != "admin" {
		response.Forbidden(c, "only the template owner can modify it")
		return
	}

	var req services.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.templateService.UpdateMetadata(template, &req); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, template)
}

// Delete removes a template
// DELETE /api/templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	template := h.loadVisible(c)
	if template == nil {
		return
	}

	if template.CreatedBy != middleware.GetUserID(c) && middleware.GetRole(c) != "admin" {
		response.Forbidden(c, "only the template owner can delete it")
		return
	}

	if err := h.templateService.Delete(template.ID); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "template deleted successfully"})
}

type rateRequest struct {
	Stars int `json:"stars" binding:"required,min=1,max=5"`
}

// Rate folds a 1-5 star rating into the template's running average
// POST /api/templates/:id/rate
func (h *TemplateHandler) Rate(c *gin.Context) {
	template := h.loadVisible(c)
	if template == nil {
		return
	}

	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.templateService.Rate(template, req.Stars); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"rating":       template.Rating,
		"rating_count": template.RatingCount,
	})
}

type applyTemplateRequest struct {
	TargetType        string   `json:"target_type" binding:"required,oneof=user project"`
	TargetID          uint     `json:"target_id"`
	SelectiveKeys     []string `json:"selective_keys"`
	OverwriteExisting bool     `json:"overwrite_existing"`
}

// resolveTarget fills in defaults and enforces who may write where: users
// apply to themselves, project targets and other users need admin.
func resolveTarget(c *gin.Context, req *applyTemplateRequest) bool {
	userID := middleware.GetUserID(c)
	isAdmin := middleware.GetRole(c) == "admin"

	if req.TargetType == services.ScopeUser {
		if req.TargetID == 0 {
			req.TargetID = userID
		}
		if req.TargetID != userID && !isAdmin {
			response.Forbidden(c, "cannot apply to another user's preferences")
			return false
		}
		return true
	}

	if req.TargetID == 0 {
		response.BadRequest(c, "target_id required for project targets")
		return false
	}
	if !isAdmin {
		response.Forbidden(c, "project targets require admin access")
		return false
	}
	return true
}

// Preview classifies every template key against the target without writing
// POST /api/templates/:id/preview
func (h *TemplateHandler) Preview(c *gin.Context) {
	template := h.loadVisible(c)
	if template == nil {
		return
	}

	var req applyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !resolveTarget(c, &req) {
		return
	}

	opts := &services.ApplyOptions{
		SelectiveKeys:     req.SelectiveKeys,
		OverwriteExisting: req.OverwriteExisting,
	}
	result, err := h.templateService.Preview(template, req.TargetType, req.TargetID, opts)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// Apply applies a template to the target scope. With ?async=true the work is
// queued and a 202 returned; results land in the audit log.
// POST /api/templates/:id/apply
func (h *TemplateHandler) Apply(c *gin.Context) {
	template := h.loadVisible(c)
	if template == nil {
		return
	}

	var req applyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !resolveTarget(c, &req) {
		return
	}

	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if async {
		queue := services.GetTaskQueue()
		if queue == nil {
			response.ServerError(c, "task queue not initialized")
			return
		}
		task := &services.ApplyTask{
			TemplateID:        template.ID,
			TargetType:        req.TargetType,
			TargetID:          req.TargetID,
			SelectiveKeys:     req.SelectiveKeys,
			OverwriteExisting: req.OverwriteExisting,
			RequestedBy:       middleware.GetUserID(c),
		}
		if err := queue.Enqueue(task); err != nil {
			response.ServerError(c, err.Error())
			return
		}
		response.Accepted(c, gin.H{"message": "apply queued", "async": queue.IsAsync()})
		return
	}

	opts := &services.ApplyOptions{
		SelectiveKeys:     req.SelectiveKeys,
		OverwriteExisting: req.OverwriteExisting,
	}
	result, err := h.templateService.Apply(template, req.TargetType, req.TargetID, opts)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}
