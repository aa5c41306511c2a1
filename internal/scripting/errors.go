package scripting

import (
	"fmt"

	apperrors "go-scan-sorter/internal/errors"
)

// LoadErrorKind says why a classification source could not be loaded.
type LoadErrorKind int

const (
	// CompileFailure covers syntax errors and exceptions thrown while the source runs.
	CompileFailure LoadErrorKind = iota
	// MissingEntryPoint means the source ran but defined no callable judge.
	MissingEntryPoint
)

func (k LoadErrorKind) String() string {
	switch k {
	case CompileFailure:
		return "compile_failure"
	case MissingEntryPoint:
		return "missing_entry_point"
	default:
		return fmt.Sprintf("load_error_kind(%d)", int(k))
	}
}

// LoadError reports a category whose predicate could not be built.
// It unwraps to a load-type AppError.
type LoadError struct {
	Alias string
	Kind  LoadErrorKind
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load %q: %s: %v", e.Alias, e.Kind, e.Cause)
	}
	return fmt.Sprintf("load %q: %s", e.Alias, e.Kind)
}

func (e *LoadError) Unwrap() error {
	return apperrors.NewLoadError(fmt.Sprintf("category %s: %s", e.Alias, e.Kind), e.Cause)
}
