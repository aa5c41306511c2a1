package pipeline

import (
	"context"

	"go-scan-sorter/internal/logger"
	"go-scan-sorter/pkg/models"
)

// StaticOverrideCollector answers every new-type category with the same
// settings. It backs the non-interactive CLI flag.
type StaticOverrideCollector struct {
	Settings models.EngineSettings
}

func (c StaticOverrideCollector) CollectOverride(ctx context.Context, category *models.Category) (*models.EngineSettings, error) {
	logger.WithField("alias", category.Alias).WithField("engine", c.Settings.OCREngine).
		Info("Applying OCR override to new-type category")
	settings := c.Settings
	return &settings, nil
}
