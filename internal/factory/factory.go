package factory

import (
	"fmt"
	"io"
	"strings"

	"go-scan-sorter/internal/config"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/ocr"
	"go-scan-sorter/internal/storage"
	"go-scan-sorter/pkg/validation"
)

// StorageType represents the copy source backends
type StorageType string

const (
	// HTTPStorage downloads a list of image URLs
	HTTPStorage StorageType = config.SourceHTTP
	// AzureStorage copies from a blob container
	AzureStorage StorageType = config.SourceAzure
	// LocalStorage copies from a drop directory
	LocalStorage StorageType = config.SourceLocal
)

// memoryCacheEntries bounds the in-process OCR cache
const memoryCacheEntries = 4096

// StorageFactory creates copy sources
type StorageFactory interface {
	CreateSource(storageType StorageType, location string) (storage.Source, error)
}

// EngineFactory creates the OCR engine registry. The returned closer
// releases cache connections and is never nil.
type EngineFactory interface {
	CreateEngines() (*ocr.Registry, io.Closer, error)
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg    *config.Config
	client *storage.RetryClient
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config, client *storage.RetryClient) StorageFactory {
	return &storageFactory{cfg: cfg, client: client}
}

// CreateSource creates a copy source based on the specified type
func (f *storageFactory) CreateSource(storageType StorageType, location string) (storage.Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%s source needs a location", storageType)
	}

	switch StorageType(strings.ToLower(string(storageType))) {
	case HTTPStorage:
		validator := validation.NewURLValidatorWithHosts(f.cfg.SourceAllowedHosts)
		return storage.NewHTTPSourceFromLocation(f.client, location, storage.WithURLValidator(validator))
	case AzureStorage:
		if f.cfg.AzureAccountName == "" || f.cfg.AzureAccountKey == "" {
			return nil, fmt.Errorf("azure source needs AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY")
		}
		client, err := storage.NewAzureClient(f.cfg.AzureAccountName, f.cfg.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("azure client: %w", err)
		}
		return storage.NewAzureSource(client, location), nil
	case LocalStorage:
		return storage.NewLocalSource(location), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// engineFactory implements EngineFactory
type engineFactory struct {
	cfg    *config.Config
	client *storage.RetryClient
}

// NewEngineFactory creates a new engine factory
func NewEngineFactory(cfg *config.Config, client *storage.RetryClient) EngineFactory {
	return &engineFactory{cfg: cfg, client: client}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// CreateEngines registers the local and cloud engines, both wrapped by
// the configured result cache.
func (f *engineFactory) CreateEngines() (*ocr.Registry, io.Closer, error) {
	engines := []ocr.Engine{
		ocr.NewTesseractEngine(f.cfg.TesseractLanguages),
		ocr.NewCloudEngine(ocr.CloudConfig{
			CredentialsPath: f.cfg.CredentialsPath,
			TokenURL:        f.cfg.CloudOCRTokenURL,
			Endpoint:        f.cfg.CloudOCREndpoint,
		}, f.client),
	}

	cache, closer, err := f.createCache()
	if err != nil {
		return nil, nil, err
	}
	if cache != nil {
		for i, e := range engines {
			engines[i] = ocr.NewCachedEngine(e, cache)
		}
	}

	registry, err := ocr.NewRegistry(f.cfg.DefaultOCREngine, engines...)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return registry, closer, nil
}

func (f *engineFactory) createCache() (ocr.Cache, io.Closer, error) {
	switch f.cfg.OCRCache {
	case config.CacheRedis:
		cache, err := ocr.NewRedisCache(f.cfg.OCRCacheRedisAddr, f.cfg.OCRCacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("ocr cache: %w", err)
		}
		logger.WithField("addr", f.cfg.OCRCacheRedisAddr).Info("OCR results cached in redis")
		return cache, cache, nil
	case config.CacheMemory:
		return ocr.NewMemoryCache(memoryCacheEntries, f.cfg.OCRCacheTTL), nopCloser{}, nil
	default:
		return nil, nopCloser{}, nil
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	EngineFactory  EngineFactory
	StorageFactory StorageFactory

	// Client is the retrying HTTP client every factory shares
	Client *storage.RetryClient
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	client := storage.NewRetryClient(cfg.ImageFetchTimeout)
	return &ComponentFactory{
		EngineFactory:  NewEngineFactory(cfg, client),
		StorageFactory: NewStorageFactory(cfg, client),
		Client:         client,
	}
}
