package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/report"
	"go-scan-sorter/internal/repository"
	"go-scan-sorter/internal/storage"
	"go-scan-sorter/internal/workflow"
	"go-scan-sorter/pkg/models"
	"go-scan-sorter/pkg/validation"

	"github.com/sirupsen/logrus"
)

// BatchService defines the operations exposed to the HTTP and CLI surfaces
type BatchService interface {
	// RunBatch copies, classifies and recognizes one batch. Only one batch
	// runs at a time; a second call while one is running is a conflict.
	RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error)
	Progress() models.ProgressSnapshot
	Metrics() map[string]interface{}

	Categories(ctx context.Context) []models.CategorySummary
	Category(ctx context.Context, alias string) (*models.Category, error)
	BasicTypes(ctx context.Context) models.Global
	SetBasicType(ctx context.Context, n int, settings models.EngineSettings) error
	ValidateRegistry(ctx context.Context) []validation.RegistryIssue

	// CheckPreconditions reports a missing image directory or registry location.
	CheckPreconditions() error
}

// Runner executes the pipeline phases
type Runner interface {
	Run(ctx context.Context, source storage.Source) (*models.BatchResult, error)
}

// SourceFactory builds the copy source for a source type and location.
// It returns nil, nil when no copy phase input is wanted.
type SourceFactory func(sourceType, location string) (storage.Source, error)

// ReportRenderer writes a grouped report to a file in dir
type ReportRenderer interface {
	Render(report models.GroupedReport, dir string) (string, error)
}

// ProgressSource is the read side of the progress observers
type ProgressSource interface {
	Snapshot() models.ProgressSnapshot
}

// MetricsSource exposes accumulated batch metrics
type MetricsSource interface {
	GetMetrics() map[string]interface{}
}

// Settings are the static inputs of the service
type Settings struct {
	ImageDir       string
	RegistryPath   string
	ReportDir      string
	SourceType     string
	SourceLocation string
}

// Option configures optional collaborators
type Option func(*batchService)

// WithRegistryValidator sets the validator behind ValidateRegistry.
func WithRegistryValidator(v *validation.RegistryValidator) Option {
	return func(s *batchService) {
		s.validator = v
	}
}

type batchService struct {
	settings Settings
	store    repository.CategoryStore
	runner   Runner
	sources  SourceFactory
	renderer ReportRenderer
	progress ProgressSource
	metrics  MetricsSource
	running  atomic.Bool

	validator *validation.RegistryValidator
}

// NewBatchService creates a new batch service. renderer, progress and
// metrics may be nil.
func NewBatchService(
	settings Settings,
	store repository.CategoryStore,
	runner Runner,
	sources SourceFactory,
	renderer ReportRenderer,
	progress ProgressSource,
	metrics MetricsSource,
	opts ...Option,
) BatchService {
	s := &batchService{
		settings: settings,
		store:    store,
		runner:   runner,
		sources:  sources,
		renderer: renderer,
		progress: progress,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validation.NewRegistryValidator(nil, nil)
	}
	return s
}

func (s *batchService) CheckPreconditions() error {
	info, err := os.Stat(s.settings.ImageDir)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("image directory %q is missing", s.settings.ImageDir), err)
	}
	if !info.IsDir() {
		return apperrors.NewValidationError(fmt.Sprintf("image directory %q is not a directory", s.settings.ImageDir), nil)
	}

	// the registry file may be absent, its directory may not
	dir := filepath.Dir(s.settings.RegistryPath)
	info, err = os.Stat(dir)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("registry location %q is missing", dir), err)
	}
	if !info.IsDir() {
		return apperrors.NewValidationError(fmt.Sprintf("registry location %q is not a directory", dir), nil)
	}
	return nil
}

func (s *batchService) RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, apperrors.NewConflictError("a batch is already running", nil)
	}
	defer s.running.Store(false)

	if err := s.CheckPreconditions(); err != nil {
		return nil, err
	}

	source, err := s.source(req)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	fields := logrus.Fields{"image_dir": s.settings.ImageDir}
	if source != nil {
		fields["source"] = source.Name()
	}
	logger.WithFields(fields).Info("Starting batch")

	result, err := s.runner.Run(ctx, source)
	if err != nil {
		return nil, apperrors.NewInternalError("batch failed", err)
	}

	result.Report = report.Assemble(result.Results, result.Classification)

	if req.RenderReport && s.renderer != nil {
		if err := os.MkdirAll(s.settings.ReportDir, 0o755); err != nil {
			return nil, apperrors.NewPersistenceError("failed to create report directory", err)
		}
		path, err := s.renderer.Render(result.Report, s.settings.ReportDir)
		if err != nil {
			return nil, apperrors.NewPersistenceError("failed to write report", err)
		}
		result.ReportPath = path
	}

	logger.WithFields(logrus.Fields{
		"batch_id":           result.ID,
		"images":             result.Total,
		"groups":             len(result.Report.Groups),
		"report":             result.ReportPath,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Batch completed successfully")

	return result, nil
}

// source picks the request's source over the configured one.
func (s *batchService) source(req models.BatchRequest) (storage.Source, error) {
	if s.sources == nil {
		return nil, nil
	}
	typ, loc := s.settings.SourceType, s.settings.SourceLocation
	if req.SourceType != "" {
		typ, loc = req.SourceType, req.SourceLocation
	}
	if typ == "" {
		return nil, nil
	}
	src, err := s.sources(typ, loc)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid copy source", err)
	}
	return src, nil
}

func (s *batchService) Progress() models.ProgressSnapshot {
	if s.progress == nil {
		return models.ProgressSnapshot{Running: s.running.Load()}
	}
	snap := s.progress.Snapshot()
	snap.Running = snap.Running || s.running.Load()
	return snap
}

func (s *batchService) Metrics() map[string]interface{} {
	if s.metrics == nil {
		return map[string]interface{}{}
	}
	return s.metrics.GetMetrics()
}

func (s *batchService) Categories(ctx context.Context) []models.CategorySummary {
	reg := s.store.Load(ctx)
	out := make([]models.CategorySummary, 0, reg.Len())
	for _, c := range reg.Categories() {
		out = append(out, models.Summarize(c))
	}
	return out
}

func (s *batchService) Category(ctx context.Context, alias string) (*models.Category, error) {
	c, ok := s.store.ReadCategory(ctx, alias)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("category %q not found", alias), nil)
	}
	return c, nil
}

func (s *batchService) BasicTypes(ctx context.Context) models.Global {
	return s.store.ReadGlobal(ctx)
}

func (s *batchService) SetBasicType(ctx context.Context, n int, settings models.EngineSettings) error {
	return workflow.SetBasicType(ctx, s.store, n, settings)
}

func (s *batchService) ValidateRegistry(ctx context.Context) []validation.RegistryIssue {
	issues := s.validator.Validate(s.store.Load(ctx))
	if issues == nil {
		issues = []validation.RegistryIssue{}
	}
	return issues
}
