package validation

import (
	"errors"
	"strings"
	"testing"

	"go-scan-sorter/pkg/models"
)

func issueTypes(issues []RegistryIssue, alias string) []string {
	var out []string
	for _, i := range issues {
		if i.Alias == alias {
			out = append(out, i.Type)
		}
	}
	return out
}

func rect(x1, y1, x2, y2 int) *models.Rect {
	r := models.NewRect(models.Point{x1, y1}, models.Point{x2, y2})
	return &r
}

func TestRegistryValidator_CleanRegistry(t *testing.T) {
	reg := models.NewRegistry()
	reg.Add(&models.Category{
		Alias:                "invoice",
		ClassificationSource: "function judge() { return true; }",
		Size:                 &models.Size{100, 100},
		Regions: []models.Box{
			{Pt1: models.Point{10, 10}, Pt2: models.Point{50, 20}, RegionType: 1},
		},
		Scheme: models.Scheme{
			{Name: "total", Coords: rect(0, 0, 10, 10), EngineSettings: models.EngineSettings{OCREngine: "cloud"}},
		},
	})

	validator := NewRegistryValidator(
		func(alias, source string) error { return nil },
		func(name string) bool { return name == "" || name == "cloud" || name == "tesseract" },
	)
	issues := validator.Validate(reg)
	if len(issues) != 0 {
		t.Errorf("Expected no issues, got %v", issues)
	}
	if HasErrors(issues) {
		t.Error("Expected HasErrors to be false")
	}
}

func TestRegistryValidator_Issues(t *testing.T) {
	reg := models.NewRegistry()
	reg.Global.BasicTypes[2].OCREngine = "paddle"
	reg.Add(&models.Category{Alias: "empty"})
	reg.Add(&models.Category{Alias: "broken", ClassificationSource: "function judge( {"})
	reg.Add(&models.Category{
		Alias:                "boxes",
		ClassificationSource: "function judge() { return false; }",
		Size:                 &models.Size{40, 40},
		Regions: []models.Box{
			{Pt1: models.Point{0, 0}, Pt2: models.Point{10, 10}, RegionType: 7},
			{Pt1: models.Point{5, 5}, Pt2: models.Point{5, 9}, RegionType: 2},
			{Pt1: models.Point{30, 30}, Pt2: models.Point{60, 35}, RegionType: 3},
			{Pt1: models.Point{0, 0}, Pt2: models.Point{4, 4}, RegionType: 5},
		},
		Scheme: models.Scheme{
			{Name: "basic_type_1", Coords: rect(0, 0, 1, 1)},
			{Name: "date"},
			{Name: "date", Coords: rect(0, 0, 2, 2)},
		},
	})
	reg.Add(&models.Category{
		Alias:                "override",
		ClassificationSource: "function judge() { return false; }",
		Regions:              []models.Box{{Pt1: models.Point{0, 0}, Pt2: models.Point{4, 4}, RegionType: 5}},
		OCROverride:          &models.EngineSettings{OCREngine: "paddle"},
	})

	validator := NewRegistryValidator(
		func(alias, source string) error {
			if strings.Contains(source, "( {") {
				return errors.New("syntax error")
			}
			return nil
		},
		func(name string) bool { return name == "" || name == "tesseract" },
	)
	issues := validator.Validate(reg)

	want := map[string][]string{
		models.GlobalAlias: {"unknown_engine"},
		"empty":            {"missing_source"},
		"broken":           {"compile_failure"},
		"boxes": {
			"invalid_region_type",
			"empty_box",
			"box_outside_reference",
			"reserved_region_name",
			"no_coordinates",
			"duplicate_region_name",
			"override_pending",
		},
		"override": {"unknown_engine"},
	}
	for alias, types := range want {
		got := issueTypes(issues, alias)
		if strings.Join(got, ",") != strings.Join(types, ",") {
			t.Errorf("%s: expected issues %v, got %v", alias, types, got)
		}
	}
	if !HasErrors(issues) {
		t.Error("Expected HasErrors to be true")
	}
	if issues[0].Alias != models.GlobalAlias {
		t.Errorf("Expected global issues first, got %s", issues[0].Alias)
	}
}

func TestRegistryValidator_NilChecks(t *testing.T) {
	reg := models.NewRegistry()
	reg.Global.BasicTypes[0].OCREngine = "anything"
	reg.Add(&models.Category{Alias: "a", ClassificationSource: "not even javascript"})

	issues := NewRegistryValidator(nil, nil).Validate(reg)
	if len(issues) != 0 {
		t.Errorf("Expected no issues without compile and engine checks, got %v", issues)
	}
}

func TestRegistryIssue_String(t *testing.T) {
	issue := RegistryIssue{Alias: "a", Type: "empty_box", Severity: SeverityWarning, Message: "box 0 has no area"}
	if got := issue.String(); got != "a [warning] empty_box: box 0 has no area" {
		t.Errorf("Unexpected format: %s", got)
	}
}
