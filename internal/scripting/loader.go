package scripting

import (
	"fmt"
	"time"

	"go-scan-sorter/internal/analyzer"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/pkg/models"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
)

// EntryPoint is the global every classification source must define.
const EntryPoint = "judge"

// Names under which values are exposed to user code.
const (
	imageToolkitName   = "cv"
	numericToolkitName = "np"
	textToolkitName    = "str"
	imageVar           = "img"
	textVar            = "text"
)

// Loader compiles classification sources and runs pre/post code. Each call
// gets a fresh runtime holding only the toolkits; nothing survives between calls.
type Loader struct {
	cv      *analyzer.ImageToolkit
	np      *analyzer.NumericToolkit
	str     *analyzer.TextToolkit
	timeout time.Duration
}

// Option configures a Loader
type Option func(*Loader)

// WithTimeout interrupts any single script call running longer than d.
// Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithImageToolkit replaces the cv library.
func WithImageToolkit(cv *analyzer.ImageToolkit) Option {
	return func(l *Loader) {
		l.cv = cv
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		cv:  analyzer.DefaultImageToolkit(),
		np:  analyzer.NewNumericToolkit(),
		str: analyzer.NewTextToolkit(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) newRuntime() *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	_ = vm.Set(imageToolkitName, l.cv)
	_ = vm.Set(numericToolkitName, l.np)
	return vm
}

// guard runs call with panic recovery and the optional timeout.
func (l *Loader) guard(vm *goja.Runtime, call func() (goja.Value, error)) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("script panic: %v", r)
		}
	}()
	if l.timeout > 0 {
		defer vm.ClearInterrupt()
		timer := time.AfterFunc(l.timeout, func() {
			vm.Interrupt(fmt.Sprintf("script exceeded %s", l.timeout))
		})
		defer timer.Stop()
	}
	return call()
}

// Compile runs source in a fresh runtime and extracts its judge function.
func (l *Loader) Compile(alias, source string) (Predicate, error) {
	prog, err := goja.Compile(alias, source, false)
	if err != nil {
		return nil, &LoadError{Alias: alias, Kind: CompileFailure, Cause: err}
	}

	vm := l.newRuntime()
	if _, err := l.guard(vm, func() (goja.Value, error) { return vm.RunProgram(prog) }); err != nil {
		return nil, &LoadError{Alias: alias, Kind: CompileFailure, Cause: err}
	}

	fn, ok := goja.AssertFunction(vm.Get(EntryPoint))
	if !ok {
		return nil, &LoadError{Alias: alias, Kind: MissingEntryPoint}
	}
	return &jsPredicate{alias: alias, vm: vm, fn: fn, loader: l}, nil
}

// LoadAll compiles every category in registry order. Failures are logged
// and skipped; loading never aborts.
func (l *Loader) LoadAll(reg *models.Registry) *PredicateSet {
	set := NewPredicateSet()
	for _, c := range reg.Categories() {
		p, err := l.Compile(c.Alias, c.ClassificationSource)
		if err != nil {
			fields := logrus.Fields{"alias": c.Alias}
			if le, ok := err.(*LoadError); ok {
				fields["kind"] = le.Kind.String()
			}
			logger.WithError(err).WithFields(fields).Warn("Skipping category with unloadable predicate")
			set.skip(c.Alias)
			continue
		}
		set.Add(p)
	}
	logger.WithFields(logrus.Fields{
		"loaded":  set.Len(),
		"skipped": len(set.Skipped()),
	}).Info("Predicates loaded")
	return set
}
