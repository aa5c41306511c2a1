package scripting

import (
	"fmt"

	"go-scan-sorter/internal/analyzer"
	apperrors "go-scan-sorter/internal/errors"

	"github.com/dop251/goja"
)

// Predicate decides whether an image belongs to a category.
type Predicate interface {
	Alias() string
	Judge(frame *analyzer.Frame) (bool, error)
}

// jsPredicate owns the runtime its judge function was compiled in.
type jsPredicate struct {
	alias  string
	vm     *goja.Runtime
	fn     goja.Callable
	loader *Loader
}

func (p *jsPredicate) Alias() string {
	return p.alias
}

// Judge calls judge(image). Exceptions, panics and timeouts become predicate errors.
func (p *jsPredicate) Judge(frame *analyzer.Frame) (bool, error) {
	v, err := p.loader.guard(p.vm, func() (goja.Value, error) {
		return p.fn(goja.Undefined(), p.vm.ToValue(frame))
	})
	if err != nil {
		return false, apperrors.NewPredicateError(fmt.Sprintf("predicate %s failed", p.alias), err)
	}
	if v == nil {
		return false, nil
	}
	return v.ToBoolean(), nil
}

// PredicateSet keeps loaded predicates in registry order.
type PredicateSet struct {
	order   []string
	byAlias map[string]Predicate
	skipped []string
}

func NewPredicateSet() *PredicateSet {
	return &PredicateSet{byAlias: make(map[string]Predicate)}
}

// Add appends p, or replaces an existing predicate in place.
func (s *PredicateSet) Add(p Predicate) {
	if _, ok := s.byAlias[p.Alias()]; !ok {
		s.order = append(s.order, p.Alias())
	}
	s.byAlias[p.Alias()] = p
}

func (s *PredicateSet) skip(alias string) {
	s.skipped = append(s.skipped, alias)
}

// Ordered returns the predicates in evaluation order.
func (s *PredicateSet) Ordered() []Predicate {
	out := make([]Predicate, 0, len(s.order))
	for _, a := range s.order {
		out = append(out, s.byAlias[a])
	}
	return out
}

func (s *PredicateSet) Get(alias string) (Predicate, bool) {
	p, ok := s.byAlias[alias]
	return p, ok
}

func (s *PredicateSet) Aliases() []string {
	return append([]string(nil), s.order...)
}

// Skipped lists aliases whose source failed to load.
func (s *PredicateSet) Skipped() []string {
	return append([]string(nil), s.skipped...)
}

func (s *PredicateSet) Len() int {
	return len(s.order)
}
