package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/repository"
	"go-scan-sorter/internal/scripting"
	"go-scan-sorter/pkg/models"
)

// State is a step of the category editor.
type State int

const (
	AwaitCategory State = iota
	AwaitScheme
	AwaitAnnotation
	AwaitOverride
	Done
)

func (s State) String() string {
	switch s {
	case AwaitCategory:
		return "await_category"
	case AwaitScheme:
		return "await_scheme"
	case AwaitAnnotation:
		return "await_annotation"
	case AwaitOverride:
		return "await_override"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrInvalidTransition is returned for a step submitted out of order.
	ErrInvalidTransition = errors.New("invalid editor transition")

	// ErrAliasExists is returned when an alias is reused without overwrite.
	ErrAliasExists = errors.New("alias already exists")
)

var reservedAliases = map[string]bool{
	models.GlobalAlias:        true,
	models.CategoryUnknown:    true,
	models.CategoryUnreadable: true,
}

// Session walks one category through naming, classification code,
// annotation and, when new-type boxes were drawn, the OCR override.
type Session struct {
	store  repository.CategoryStore
	loader *scripting.Loader
	state  State
	alias  string
}

func NewSession(store repository.CategoryStore, loader *scripting.Loader) *Session {
	return &Session{store: store, loader: loader, state: AwaitCategory}
}

func (s *Session) State() State  { return s.state }
func (s *Session) Alias() string { return s.alias }

func (s *Session) expect(want State) error {
	if s.state != want {
		return fmt.Errorf("%w: in %s, step needs %s", ErrInvalidTransition, s.state, want)
	}
	return nil
}

// SubmitCategory names the category and records the reference image size.
// Overwriting an existing alias drops everything stored under it.
func (s *Session) SubmitCategory(ctx context.Context, alias string, size models.Size, overwrite bool) error {
	if err := s.expect(AwaitCategory); err != nil {
		return err
	}
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return apperrors.NewValidationError("alias is required", nil)
	}
	if reservedAliases[alias] {
		return apperrors.NewValidationError(fmt.Sprintf("alias %q is reserved", alias), nil)
	}
	if size[0] < 0 || size[1] < 0 {
		return apperrors.NewValidationError(fmt.Sprintf("size must not be negative, got %v", size), nil)
	}

	if s.store.Exists(ctx, alias) {
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrAliasExists, alias)
		}
		if !s.store.Remove(ctx, alias) {
			return apperrors.NewPersistenceError("could not remove existing category", nil)
		}
		logger.WithField("alias", alias).Info("Existing category overwritten")
	}
	if !s.store.SaveSize(ctx, alias, size) {
		return apperrors.NewPersistenceError("could not save category", nil)
	}

	s.alias = alias
	s.state = AwaitScheme
	return nil
}

// SubmitScheme stores the classification source after checking that it
// compiles and defines the entry point.
func (s *Session) SubmitScheme(ctx context.Context, source string) error {
	if err := s.expect(AwaitScheme); err != nil {
		return err
	}
	if _, err := s.loader.Compile(s.alias, source); err != nil {
		return apperrors.NewValidationError("classification code rejected", err)
	}
	if !s.store.SaveClassification(ctx, s.alias, source) {
		return apperrors.NewPersistenceError("could not save classification code", nil)
	}
	s.state = AwaitAnnotation
	return nil
}

// SubmitNamedRegions stores named regions alongside the boxes. It may be
// called any number of times before SubmitAnnotation.
func (s *Session) SubmitNamedRegions(ctx context.Context, scheme models.Scheme) error {
	if err := s.expect(AwaitAnnotation); err != nil {
		return err
	}
	seen := make(map[string]bool, len(scheme))
	for _, r := range scheme {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return apperrors.NewValidationError("region name is required", nil)
		}
		if seen[name] {
			return apperrors.NewValidationError(fmt.Sprintf("duplicate region name %q", name), nil)
		}
		seen[name] = true
	}
	if !s.store.SaveScheme(ctx, s.alias, scheme) {
		return apperrors.NewPersistenceError("could not save named regions", nil)
	}
	return nil
}

// SubmitAnnotation stores the boxes. New-type boxes lead to AwaitOverride.
func (s *Session) SubmitAnnotation(ctx context.Context, boxes []models.Box) error {
	if err := s.expect(AwaitAnnotation); err != nil {
		return err
	}
	newType := false
	for i, b := range boxes {
		if b.RegionType < 1 || b.RegionType > models.NewTypeRegion {
			return apperrors.NewValidationError(fmt.Sprintf("box %d: region type must be 1 to 5, got %d", i, b.RegionType), nil)
		}
		if b.RegionType == models.NewTypeRegion {
			newType = true
		}
	}
	if !s.store.SaveRegions(ctx, s.alias, boxes) {
		return apperrors.NewPersistenceError("could not save regions", nil)
	}
	if newType {
		s.state = AwaitOverride
	} else {
		s.state = Done
	}
	return nil
}

// SubmitOverride stores the engine settings for new-type boxes.
func (s *Session) SubmitOverride(ctx context.Context, settings models.EngineSettings) error {
	if err := s.expect(AwaitOverride); err != nil {
		return err
	}
	if !s.store.SaveOverride(ctx, s.alias, settings) {
		return apperrors.NewPersistenceError("could not save override", nil)
	}
	s.state = Done
	return nil
}

// SetBasicType edits one of the shared basic-type settings. It is
// independent of any session.
func SetBasicType(ctx context.Context, store repository.CategoryWriter, n int, settings models.EngineSettings) error {
	if n < 1 || n > models.BasicTypeCount {
		return apperrors.NewValidationError(fmt.Sprintf("basic type must be 1 to 4, got %d", n), nil)
	}
	if !store.SetBasicType(ctx, n, settings) {
		return apperrors.NewPersistenceError("could not save basic type", nil)
	}
	return nil
}
