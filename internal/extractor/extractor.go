package extractor

import (
	"context"
	"image"

	"go-scan-sorter/internal/analyzer"
	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/ocr"
	"go-scan-sorter/internal/strategy"
	"go-scan-sorter/pkg/models"

	"github.com/sirupsen/logrus"
)

// EngineResolver maps an engine name to an engine, falling back to a default.
type EngineResolver interface {
	Resolve(name string) ocr.Engine
}

// Transformer runs the pre and post code attached to a region.
type Transformer interface {
	RunPre(code string, frame *analyzer.Frame) (*analyzer.Frame, error)
	RunPost(code, text string) (string, error)
}

// Extractor reads the text of every configured region of a classified image.
type Extractor struct {
	transforms Transformer
	engines    EngineResolver
	plan       *strategy.PlanContext
}

type Option func(*Extractor)

// WithPlan replaces the default region strategies.
func WithPlan(plan *strategy.PlanContext) Option {
	return func(e *Extractor) {
		e.plan = plan
	}
}

func New(transforms Transformer, engines EngineResolver, opts ...Option) *Extractor {
	e := &Extractor{
		transforms: transforms,
		engines:    engines,
		plan:       strategy.NewPlanContext(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract never fails as a whole: region level failures are logged and
// leave an empty or untransformed text behind.
func (e *Extractor) Extract(ctx context.Context, imageName string, category *models.Category, global models.Global, img image.Image) models.ImageResult {
	result := models.ImageResult{
		ImageName:       imageName,
		Category:        category.Alias,
		Regions:         []models.RegionResult{},
		NewTypeDetected: category.HasNewType(),
	}

	frame := analyzer.NewFrame(img)
	bounds := image.Rect(0, 0, frame.Width(), frame.Height())
	for _, job := range e.plan.Plan(category, global, bounds) {
		log := logger.ForImage(imageName, category.Alias).WithField("region", job.Name)
		result.Regions = append(result.Regions, e.extractRegion(ctx, log, frame, job))
	}

	if result.NewTypeDetected && category.OCROverride == nil {
		logger.ForImage(imageName, category.Alias).Warn("New-type regions skipped, category has no OCR override")
	}
	return result
}

func (e *Extractor) extractRegion(ctx context.Context, log *logrus.Entry, frame *analyzer.Frame, job strategy.RegionJob) models.RegionResult {
	res := models.RegionResult{
		RegionName: job.Name,
		RegionType: job.Type,
		Coords:     job.Coords,
	}
	if job.Coords == nil {
		res.Text = models.NoCoordinatesText
		return res
	}

	crop := frame.Crop(job.Coords.X1, job.Coords.Y1, job.Coords.X2, job.Coords.Y2)
	if crop.Width() == 0 || crop.Height() == 0 {
		log.Warn("Region lies outside the image")
		return res
	}

	pre, err := e.transforms.RunPre(job.Settings.PreCode, crop)
	if err != nil {
		log.WithError(err).Warn("Pre code failed, using untransformed region")
		pre = crop
	}

	engine := e.engines.Resolve(job.Settings.OCREngine)
	text, err := engine.Recognize(ctx, pre.Image())
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeCredential) {
			// the engine already reported it for this batch
			log.WithError(err).Debug("OCR skipped, credentials unusable")
		} else {
			log.WithError(err).WithField("engine", engine.Name()).Warn("OCR failed")
		}
		text = ""
	}

	post, err := e.transforms.RunPost(job.Settings.PostCode, text)
	if err != nil {
		log.WithError(err).Warn("Post code failed, using raw text")
		post = text
	}
	res.Text = post
	return res
}
