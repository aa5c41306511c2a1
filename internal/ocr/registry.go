package ocr

import (
	"fmt"
	"sort"
	"strings"

	"go-scan-sorter/internal/logger"
)

// names older registries used for the engines
var legacyNames = map[string]string{
	"tesseractOCR": DefaultEngineName,
	"Tesseract":    DefaultEngineName,
	"baiduOCR":     CloudEngineName,
	"baidu":        CloudEngineName,
	"百度OCR":        CloudEngineName,
}

// Registry resolves engine names from category settings.
type Registry struct {
	engines     map[string]Engine
	defaultName string
}

func NewRegistry(defaultName string, engines ...Engine) (*Registry, error) {
	r := &Registry{engines: make(map[string]Engine), defaultName: defaultName}
	for _, e := range engines {
		r.Register(e)
	}
	if _, ok := r.engines[defaultName]; !ok {
		return nil, fmt.Errorf("default OCR engine %q is not registered", defaultName)
	}
	return r, nil
}

// Register adds or replaces an engine under its own name.
func (r *Registry) Register(e Engine) {
	r.engines[e.Name()] = e
}

func (r *Registry) Default() Engine {
	return r.engines[r.defaultName]
}

// Resolve returns the named engine; empty or unknown names get the default.
func (r *Registry) Resolve(name string) Engine {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.Default()
	}
	if canonical, ok := legacyNames[name]; ok {
		name = canonical
	}
	if e, ok := r.engines[name]; ok {
		return e
	}
	logger.WithField("engine", name).Debug("Unknown OCR engine, using default")
	return r.Default()
}

// Known reports whether name, or its legacy spelling, is registered. The
// empty name stands for the default engine and is always known.
func (r *Registry) Known(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}
	if canonical, ok := legacyNames[name]; ok {
		name = canonical
	}
	_, ok := r.engines[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BeginBatch resets per-batch state on every engine that keeps some.
func (r *Registry) BeginBatch() {
	for _, e := range r.engines {
		if b, ok := e.(BatchAware); ok {
			b.BeginBatch()
		}
	}
}
