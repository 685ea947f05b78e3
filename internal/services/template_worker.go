package services

import (
	"context"
	"errors"

	"github.com/prefhub/prefhub/internal/models"
	"github.com/prefhub/prefhub/pkg/logger"
	"gorm.io/gorm"
)

// ProcessApplyTask executes a queued template application. It is the
// processor hooked into both the sync queue and the asynq worker. Results
// land in the audit log since there is no caller waiting on them.
func (s *TemplateService) ProcessApplyTask(ctx context.Context, task *ApplyTask) error {
	var template models.Template
	if err := s.db.First(&template, task.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Template deleted after enqueue; nothing to retry.
			logger.Warn().Uint("template_id", task.TemplateID).Msg("apply task dropped, template gone")
			return nil
		}
		return err
	}

	opts := &ApplyOptions{
		SelectiveKeys:     task.SelectiveKeys,
		OverwriteExisting: task.OverwriteExisting,
	}
	result, err := s.Apply(&template, task.TargetType, task.TargetID, opts)
	if err != nil {
		return err
	}

	requestedBy := task.RequestedBy
	LogInfo("templates", "apply_async", template.Name, &requestedBy, "", "", result)
	logger.Info().
		Uint("template_id", task.TemplateID).
		Str("target_type", task.TargetType).
		Uint("target_id", task.TargetID).
		Int("applied", result.AppliedCount).
		Int("skipped", result.SkippedCount).
		Int("errors", result.ErrorCount).
		Msg("template applied")
	return nil
}
