package validation

import (
	"fmt"
	"strings"

	"go-scan-sorter/pkg/models"
)

// Issue severities
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// RegistryIssue is one problem found in a category record
type RegistryIssue struct {
	Alias    string `json:"alias"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func (i RegistryIssue) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", i.Alias, i.Severity, i.Type, i.Message)
}

// CompileFunc checks that a classification source yields a predicate.
type CompileFunc func(alias, source string) error

// RegistryValidator audits a registry the way a batch would consume it,
// without touching any image.
type RegistryValidator struct {
	compile     CompileFunc
	engineKnown func(name string) bool
}

// NewRegistryValidator creates a validator. Either function may be nil to
// skip that check.
func NewRegistryValidator(compile CompileFunc, engineKnown func(name string) bool) *RegistryValidator {
	return &RegistryValidator{compile: compile, engineKnown: engineKnown}
}

// Validate returns every issue in registry order, global record first.
func (rv *RegistryValidator) Validate(reg *models.Registry) []RegistryIssue {
	var issues []RegistryIssue
	add := func(alias, typ, severity, format string, args ...interface{}) {
		issues = append(issues, RegistryIssue{
			Alias:    alias,
			Type:     typ,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	for i, s := range reg.Global.BasicTypes {
		rv.checkEngine(models.GlobalAlias, models.BasicTypeKey(i+1), s, add)
	}

	for _, c := range reg.Categories() {
		rv.validateCategory(c, add)
	}
	return issues
}

type addFunc func(alias, typ, severity, format string, args ...interface{})

func (rv *RegistryValidator) validateCategory(c *models.Category, add addFunc) {
	if strings.TrimSpace(c.ClassificationSource) == "" {
		add(c.Alias, "missing_source", SeverityError, "no classification script; the category never matches")
	} else if rv.compile != nil {
		if err := rv.compile(c.Alias, c.ClassificationSource); err != nil {
			add(c.Alias, "compile_failure", SeverityError, "%v", err)
		}
	}

	for i, box := range c.Regions {
		if box.RegionType < 1 || box.RegionType > models.NewTypeRegion {
			add(c.Alias, "invalid_region_type", SeverityError, "box %d has region type %d", i, box.RegionType)
			continue
		}
		r := box.Rect()
		if r.Width() == 0 || r.Height() == 0 {
			add(c.Alias, "empty_box", SeverityWarning, "box %d %s has no area", i, r)
		}
		if c.Size != nil && (r.X2 > c.Size[0] || r.Y2 > c.Size[1]) && c.Size[0] > 0 && c.Size[1] > 0 {
			add(c.Alias, "box_outside_reference", SeverityWarning,
				"box %d %s exceeds the %dx%d reference image", i, r, c.Size[0], c.Size[1])
		}
	}

	seen := make(map[string]bool, len(c.Scheme))
	for _, region := range c.Scheme {
		switch {
		case models.IsBasicTypeKey(region.Name):
			add(c.Alias, "reserved_region_name", SeverityWarning, "region %q collides with a basic type and is skipped", region.Name)
			continue
		case seen[region.Name]:
			add(c.Alias, "duplicate_region_name", SeverityError, "region %q is defined twice", region.Name)
		}
		seen[region.Name] = true

		if region.Coords == nil {
			add(c.Alias, "no_coordinates", SeverityInfo, "region %q has no coordinates", region.Name)
		}
		rv.checkEngine(c.Alias, region.Name, region.EngineSettings, add)
	}

	if c.HasNewType() && c.OCROverride == nil {
		add(c.Alias, "override_pending", SeverityInfo, "new-type boxes are skipped until an OCR override is stored")
	}
	if c.OCROverride != nil {
		rv.checkEngine(c.Alias, models.NewTypeRegionName, *c.OCROverride, add)
	}
}

func (rv *RegistryValidator) checkEngine(alias, region string, s models.EngineSettings, add addFunc) {
	if rv.engineKnown == nil || rv.engineKnown(s.OCREngine) {
		return
	}
	add(alias, "unknown_engine", SeverityWarning, "%s uses unknown OCR engine %q; the default is used", region, s.OCREngine)
}

// HasErrors reports whether any issue has error severity
func HasErrors(issues []RegistryIssue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
