package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/pkg/models"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS categories (
	alias      TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteRepository stores one row per alias. The position column preserves
// insertion order and the payload holds the alias record as YAML.
type SQLiteRepository struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteRepository opens or creates the database at path.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteRepository{db: db, path: path, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}

func (s *SQLiteRepository) Load(ctx context.Context) *models.Registry {
	root, err := s.readRoot(ctx)
	if err != nil {
		logger.WithError(apperrors.NewPersistenceError("registry unreadable", err)).
			WithField("registry", s.path).
			Error("Failed to load registry, using empty registry")
		return models.NewRegistry()
	}
	return registryFromNode(root, s.path)
}

func (s *SQLiteRepository) Exists(ctx context.Context, alias string) bool {
	if alias == models.GlobalAlias {
		return false
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM categories WHERE alias = ?`, alias).Scan(&n)
	if err != nil {
		logger.WithError(err).WithField("alias", alias).Error("Failed to check category")
		return false
	}
	return n > 0
}

func (s *SQLiteRepository) ReadCategory(ctx context.Context, alias string) (*models.Category, bool) {
	if alias == models.GlobalAlias {
		return nil, false
	}
	rec, err := s.readRecord(ctx, s.db, alias)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.WithError(err).WithField("alias", alias).Error("Failed to read category")
		}
		return nil, false
	}
	c, err := decodeCategory(alias, rec)
	if err != nil {
		logger.WithError(err).WithField("alias", alias).Warn("Skipping malformed category")
		return nil, false
	}
	return c, true
}

func (s *SQLiteRepository) ReadGlobal(ctx context.Context) models.Global {
	rec, err := s.readRecord(ctx, s.db, models.GlobalAlias)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.WithError(err).Error("Failed to read global record")
		}
		return models.Global{}
	}
	return decodeGlobal(rec)
}

func (s *SQLiteRepository) SaveOverride(ctx context.Context, alias string, settings models.EngineSettings) bool {
	return s.update(ctx, alias, keyOverride, editOverride(settings))
}

func (s *SQLiteRepository) SaveSize(ctx context.Context, alias string, size models.Size) bool {
	return s.update(ctx, alias, keySize, editSize(size))
}

func (s *SQLiteRepository) SaveClassification(ctx context.Context, alias, source string) bool {
	return s.update(ctx, alias, keyClassification, editClassification(source))
}

func (s *SQLiteRepository) SaveRegions(ctx context.Context, alias string, boxes []models.Box) bool {
	return s.update(ctx, alias, keyRegions, editRegions(boxes))
}

func (s *SQLiteRepository) SaveScheme(ctx context.Context, alias string, scheme models.Scheme) bool {
	return s.update(ctx, alias, keyScheme, editScheme(scheme))
}

func (s *SQLiteRepository) SetBasicType(ctx context.Context, n int, settings models.EngineSettings) bool {
	return s.update(ctx, models.GlobalAlias, models.BasicTypeKey(n), editBasicType(n, settings))
}

func (s *SQLiteRepository) Remove(ctx context.Context, alias string) bool {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE alias = ?`, alias)
	if err != nil {
		s.logWriteFailure(alias, "remove", err)
		return false
	}
	n, err := res.RowsAffected()
	if err != nil {
		s.logWriteFailure(alias, "remove", err)
		return false
	}
	return n > 0
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteRepository) readRecord(ctx context.Context, q queryer, alias string) (*yaml.Node, error) {
	var payload string
	if err := q.QueryRowContext(ctx, `SELECT payload FROM categories WHERE alias = ?`, alias).Scan(&payload); err != nil {
		return nil, err
	}
	return parseRecord(payload)
}

func parseRecord(payload string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if len(doc.Content) == 0 {
		return newMapping(), nil
	}
	return doc.Content[0], nil
}

// readRoot rebuilds the registry document from rows in position order.
func (s *SQLiteRepository) readRoot(ctx context.Context) (*yaml.Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alias, payload FROM categories ORDER BY position, alias`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	root := newMapping()
	for rows.Next() {
		var alias, payload string
		if err := rows.Scan(&alias, &payload); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		rec, err := parseRecord(payload)
		if err != nil {
			logger.WithError(err).WithField("alias", alias).Warn("Skipping unparsable category row")
			continue
		}
		root.Content = append(root.Content, keyNode(alias), rec)
	}
	return root, rows.Err()
}

func (s *SQLiteRepository) update(ctx context.Context, alias, key string, edit recordEdit) bool {
	if err := s.updateTx(ctx, alias, edit); err != nil {
		s.logWriteFailure(alias, key, err)
		return false
	}
	logger.WithFields(logrus.Fields{"alias": alias, "key": key}).Debug("Registry record saved")
	return true
}

func (s *SQLiteRepository) updateTx(ctx context.Context, alias string, edit recordEdit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rec, err := s.readRecord(ctx, tx, alias)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec = newMapping()
	case err != nil:
		return err
	case rec.Kind != yaml.MappingNode:
		rec = newMapping()
	}

	if err := edit(rec); err != nil {
		return err
	}
	stamp := s.now().Format(timestampLayout)
	if err := setValue(rec, keyTimestamp, stamp); err != nil {
		return err
	}
	payload, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO categories (alias, position, payload, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM categories), ?, ?)
		ON CONFLICT(alias) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		alias, string(payload), stamp)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteRepository) logWriteFailure(alias, key string, err error) {
	logger.WithError(apperrors.NewPersistenceError("registry write failed", err)).
		WithFields(logrus.Fields{
			"alias":    alias,
			"key":      key,
			"registry": s.path,
		}).Error("Failed to save registry record")
}
