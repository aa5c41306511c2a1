package repository

import (
	"context"
	"image"

	"go-scan-sorter/pkg/models"
)

// CategoryRepository is the read side of the category store used by the pipeline.
// Reads never fail: a missing or corrupt registry yields an empty one.
type CategoryRepository interface {
	// Load returns the full registry, never nil
	Load(ctx context.Context) *models.Registry

	Exists(ctx context.Context, alias string) bool

	ReadCategory(ctx context.Context, alias string) (*models.Category, bool)

	ReadGlobal(ctx context.Context) models.Global

	// SaveOverride persists the OCR override discovered for a new type.
	// It is the only write the pipeline performs.
	SaveOverride(ctx context.Context, alias string, settings models.EngineSettings) bool
}

// CategoryWriter is the editing half of the store. Each call overwrites one
// named sub-record, leaves the others untouched and stamps the timestamp.
// Failures are logged and reported as false.
type CategoryWriter interface {
	SaveSize(ctx context.Context, alias string, size models.Size) bool
	SaveClassification(ctx context.Context, alias, source string) bool
	SaveRegions(ctx context.Context, alias string, boxes []models.Box) bool
	SaveScheme(ctx context.Context, alias string, scheme models.Scheme) bool
	SetBasicType(ctx context.Context, n int, settings models.EngineSettings) bool
	Remove(ctx context.Context, alias string) bool
}

// CategoryStore combines both halves.
type CategoryStore interface {
	CategoryRepository
	CategoryWriter
}

// ImageRepository defines the interface for image directory access
type ImageRepository interface {
	// List returns recognized image file names in name order
	List(ctx context.Context) ([]string, error)

	// Open decodes one image from the directory
	Open(ctx context.Context, name string) (image.Image, error)

	// Dir is the directory being served
	Dir() string

	// Clear removes every recognized image file from the directory
	Clear(ctx context.Context) (int, error)
}
