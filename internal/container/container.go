package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go-scan-sorter/internal/analyzer"
	"go-scan-sorter/internal/config"
	"go-scan-sorter/internal/extractor"
	"go-scan-sorter/internal/factory"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/observer"
	"go-scan-sorter/internal/ocr"
	"go-scan-sorter/internal/pipeline"
	"go-scan-sorter/internal/report"
	"go-scan-sorter/internal/repository"
	"go-scan-sorter/internal/scripting"
	"go-scan-sorter/internal/service"
	"go-scan-sorter/internal/storage"
	"go-scan-sorter/internal/transport"
	"go-scan-sorter/internal/workflow"
	"go-scan-sorter/pkg/validation"
)

// Option adjusts how the container is built
type Option func(*options)

type options struct {
	observers []observer.Observer
	collector pipeline.OverrideCollector
}

// WithObservers adds progress observers next to the built-in ones.
func WithObservers(obs ...observer.Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs...)
	}
}

// WithOverrideCollector sets who is asked for new-type OCR settings.
func WithOverrideCollector(c pipeline.OverrideCollector) Option {
	return func(o *options) {
		o.collector = c
	}
}

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	store        repository.CategoryStore
	loader       *scripting.Loader
	engines      *ocr.Registry
	orchestrator *pipeline.Orchestrator
	metrics      *observer.MetricsObserver
	batchService service.BatchService
	inspector    service.InspectionService
	handler      http.Handler
	closers      []io.Closer
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger.Configure(cfg.LogLevel, cfg.LogFormat)

	c := &Container{config: cfg}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	c.store = store
	if closer, ok := store.(io.Closer); ok {
		c.closers = append(c.closers, closer)
	}

	// Build dependency graph
	components := factory.NewComponentFactory(cfg)
	engines, closer, err := components.EngineFactory.CreateEngines()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create OCR engines: %w", err)
	}
	c.engines = engines
	c.closers = append(c.closers, closer)

	c.loader = scripting.NewLoader(scripting.WithTimeout(cfg.ScriptTimeout))
	images := repository.NewDirImageRepository(cfg.ImageDir)

	c.metrics = observer.NewMetricsObserver()
	snapshot := observer.NewSnapshotObserver()
	publisher := observer.NewEventPublisher(
		append([]observer.Observer{
			observer.NewLoggingObserver(logger.Logger),
			c.metrics,
			snapshot,
		}, o.observers...)...,
	)

	c.orchestrator = pipeline.NewOrchestrator(
		store,
		images,
		c.loader,
		extractor.New(c.loader, engines),
		engines,
		publisher,
		pipeline.Options{
			ClearImageDir: cfg.ClearImageDir,
			CopyWorkers:   cfg.CopyWorkers,
		},
	)
	if o.collector != nil {
		c.orchestrator.SetOverrideCollector(o.collector)
	}

	sources := func(sourceType, location string) (storage.Source, error) {
		return components.StorageFactory.CreateSource(factory.StorageType(sourceType), location)
	}
	c.batchService = service.NewBatchService(
		service.Settings{
			ImageDir:       cfg.ImageDir,
			RegistryPath:   cfg.RegistryPath,
			ReportDir:      cfg.ReportDir,
			SourceType:     cfg.SourceType,
			SourceLocation: cfg.SourceLocation,
		},
		store,
		c.orchestrator,
		sources,
		report.NewXLSXRenderer(),
		snapshot,
		c.metrics,
		service.WithRegistryValidator(validation.NewRegistryValidator(
			func(alias, source string) error {
				_, err := c.loader.Compile(alias, source)
				return err
			},
			engines.Known,
		)),
	)
	c.inspector = service.NewInspectionService(
		analyzer.DefaultImageToolkit(),
		images,
		components.Client,
		validation.NewURLValidatorWithHosts(cfg.SourceAllowedHosts),
	)
	c.handler = transport.NewHandler(c.batchService, c.inspector, cfg)

	return c, nil
}

func openStore(cfg *config.Config) (repository.CategoryStore, error) {
	if cfg.UsesSQLite() {
		store, err := repository.NewSQLiteRepository(context.Background(), cfg.RegistryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open registry: %w", err)
		}
		return store, nil
	}
	return repository.NewYAMLRepository(cfg.RegistryPath), nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// BatchService returns the batch service shared by every surface
func (c *Container) BatchService() service.BatchService {
	return c.batchService
}

// Inspector returns the image quality service
func (c *Container) Inspector() service.InspectionService {
	return c.inspector
}

// Store returns the category store
func (c *Container) Store() repository.CategoryStore {
	return c.store
}

// Engines returns the OCR engine registry
func (c *Container) Engines() *ocr.Registry {
	return c.engines
}

// NewEditorSession starts an editor flow over the container's store.
func (c *Container) NewEditorSession() *workflow.Session {
	return workflow.NewSession(c.store, c.loader)
}

// Close releases the registry database and cache connections.
func (c *Container) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
