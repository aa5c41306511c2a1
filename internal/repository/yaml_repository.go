package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/pkg/models"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// YAMLRepository keeps the registry in a single YAML document.
// JSON registries are read as well since YAML is a superset.
type YAMLRepository struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewYAMLRepository creates a store over path. The file need not exist yet.
func NewYAMLRepository(path string) *YAMLRepository {
	return &YAMLRepository{path: path, now: time.Now}
}

// Path returns the registry file location
func (r *YAMLRepository) Path() string {
	return r.path
}

func (r *YAMLRepository) Load(ctx context.Context) *models.Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	root, err := r.readRoot()
	if err != nil {
		r.logReadFailure(err)
		return models.NewRegistry()
	}
	return registryFromNode(root, r.path)
}

func (r *YAMLRepository) Exists(ctx context.Context, alias string) bool {
	if alias == models.GlobalAlias {
		return false
	}
	_, ok := r.Load(ctx).Category(alias)
	return ok
}

func (r *YAMLRepository) ReadCategory(ctx context.Context, alias string) (*models.Category, bool) {
	return r.Load(ctx).Category(alias)
}

func (r *YAMLRepository) ReadGlobal(ctx context.Context) models.Global {
	return r.Load(ctx).Global
}

func (r *YAMLRepository) SaveOverride(ctx context.Context, alias string, settings models.EngineSettings) bool {
	return r.update(alias, keyOverride, editOverride(settings))
}

func (r *YAMLRepository) SaveSize(ctx context.Context, alias string, size models.Size) bool {
	return r.update(alias, keySize, editSize(size))
}

func (r *YAMLRepository) SaveClassification(ctx context.Context, alias, source string) bool {
	return r.update(alias, keyClassification, editClassification(source))
}

func (r *YAMLRepository) SaveRegions(ctx context.Context, alias string, boxes []models.Box) bool {
	return r.update(alias, keyRegions, editRegions(boxes))
}

func (r *YAMLRepository) SaveScheme(ctx context.Context, alias string, scheme models.Scheme) bool {
	return r.update(alias, keyScheme, editScheme(scheme))
}

func (r *YAMLRepository) SetBasicType(ctx context.Context, n int, settings models.EngineSettings) bool {
	return r.update(models.GlobalAlias, models.BasicTypeKey(n), editBasicType(n, settings))
}

func (r *YAMLRepository) Remove(ctx context.Context, alias string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	root, err := r.readRoot()
	if err != nil {
		r.logWriteFailure(alias, "remove", err)
		return false
	}
	if !removeKey(root, alias) {
		return false
	}
	if err := r.writeRoot(root); err != nil {
		r.logWriteFailure(alias, "remove", err)
		return false
	}
	logger.WithField("alias", alias).Info("Category removed")
	return true
}

// update applies edit to alias's record and rewrites the file.
// A missing file starts an empty registry; a corrupt one is never overwritten.
func (r *YAMLRepository) update(alias, key string, edit recordEdit) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	root, err := r.readRoot()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logWriteFailure(alias, key, err)
			return false
		}
		root = newMapping()
	}

	rec := recordFor(root, alias)
	if err := edit(rec); err != nil {
		r.logWriteFailure(alias, key, err)
		return false
	}
	if err := setValue(rec, keyTimestamp, r.now().Format(timestampLayout)); err != nil {
		r.logWriteFailure(alias, key, err)
		return false
	}
	if err := r.writeRoot(root); err != nil {
		r.logWriteFailure(alias, key, err)
		return false
	}

	logger.WithFields(logrus.Fields{"alias": alias, "key": key}).Debug("Registry record saved")
	return true
}

func (r *YAMLRepository) readRoot() (*yaml.Node, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return newMapping(), nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if len(doc.Content) == 0 {
		return newMapping(), nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotRegistryMapping
	}
	return root, nil
}

// writeRoot replaces the file atomically through a temp file in the same directory.
func (r *YAMLRepository) writeRoot(root *yaml.Node) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

func (r *YAMLRepository) logReadFailure(err error) {
	if errors.Is(err, fs.ErrNotExist) {
		logger.WithField("registry", r.path).Warn("Registry not found, using empty registry")
		return
	}
	logger.WithError(apperrors.NewPersistenceError("registry unreadable", err)).
		WithField("registry", r.path).
		Error("Failed to load registry, using empty registry")
}

func (r *YAMLRepository) logWriteFailure(alias, key string, err error) {
	logger.WithError(apperrors.NewPersistenceError("registry write failed", err)).
		WithFields(logrus.Fields{
			"alias":    alias,
			"key":      key,
			"registry": r.path,
		}).Error("Failed to save registry record")
}
