package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-scan-sorter/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `
zeta:
  classification_source: |
    function judge(image) { return true; }
  regions:
    - {pt1: [50, 50], pt2: [10, 10], region_type: 1}
    - {pt1: [0, 0], pt2: [5.4, 7.6], region_type: 5}
  scheme:
    total:
      coords: [1, 2, 3, 4]
      pre_code: ""
      post_code: "text = text.trim()"
      ocr_engine: cloud
    basic_type_1:
      coords: [0, 0, 1, 1]
    missing: {}
  legacy_field: keep me
alpha:
  classification_source: "function judge(image) { return false; }"
__global__:
  basic_type_1: {ocr_engine: tesseract, pre_code: "", post_code: ""}
  basic_type_3: {ocr_engine: cloud, pre_code: "img = cv.gray(img)", post_code: ""}
mid:
  regions: []
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
}

func TestYAMLRepository_LoadMissingFile(t *testing.T) {
	repo := NewYAMLRepository(filepath.Join(t.TempDir(), "absent.yaml"))

	reg := repo.Load(context.Background())
	require.NotNil(t, reg)
	assert.Equal(t, 0, reg.Len())
	assert.False(t, repo.Exists(context.Background(), "anything"))
}

func TestYAMLRepository_LoadCorruptFile(t *testing.T) {
	repo := NewYAMLRepository(writeRegistry(t, "zeta: [unclosed"))

	reg := repo.Load(context.Background())
	require.NotNil(t, reg)
	assert.Equal(t, 0, reg.Len())
}

func TestYAMLRepository_LoadNonMappingDocument(t *testing.T) {
	repo := NewYAMLRepository(writeRegistry(t, "- a\n- b\n"))
	assert.Equal(t, 0, repo.Load(context.Background()).Len())
}

func TestYAMLRepository_LoadPreservesOrder(t *testing.T) {
	repo := NewYAMLRepository(writeRegistry(t, sampleRegistry))
	ctx := context.Background()

	reg := repo.Load(ctx)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, reg.Aliases())
	assert.False(t, repo.Exists(ctx, models.GlobalAlias))
	assert.True(t, repo.Exists(ctx, "alpha"))

	zeta, ok := reg.Category("zeta")
	require.True(t, ok)
	require.Len(t, zeta.Regions, 2)
	assert.Equal(t, models.Rect{X1: 10, Y1: 10, X2: 50, Y2: 50}, zeta.Regions[0].Rect())
	assert.Equal(t, models.Point{5, 8}, zeta.Regions[1].Pt2)
	assert.True(t, zeta.HasNewType())

	require.Len(t, zeta.Scheme, 3)
	assert.Equal(t, "total", zeta.Scheme[0].Name)
	assert.Equal(t, &models.Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}, zeta.Scheme[0].Coords)
	assert.Equal(t, "cloud", zeta.Scheme[0].OCREngine)
	assert.Equal(t, "basic_type_1", zeta.Scheme[1].Name)
	assert.Equal(t, "missing", zeta.Scheme[2].Name)
	assert.Nil(t, zeta.Scheme[2].Coords)
	assert.Empty(t, zeta.Scheme[2].OCREngine)
}

func TestYAMLRepository_ReadGlobal(t *testing.T) {
	repo := NewYAMLRepository(writeRegistry(t, sampleRegistry))

	g := repo.ReadGlobal(context.Background())
	bt1, ok := g.BasicType(1)
	require.True(t, ok)
	assert.Equal(t, "tesseract", bt1.OCREngine)

	bt2, _ := g.BasicType(2)
	assert.Equal(t, models.EngineSettings{}, bt2)

	bt3, _ := g.BasicType(3)
	assert.Equal(t, "img = cv.gray(img)", bt3.PreCode)

	_, ok = g.BasicType(5)
	assert.False(t, ok)
}

func TestYAMLRepository_SaveOverrideKeepsOtherKeys(t *testing.T) {
	path := writeRegistry(t, sampleRegistry)
	repo := NewYAMLRepository(path)
	repo.now = fixedClock
	ctx := context.Background()

	ok := repo.SaveOverride(ctx, "zeta", models.EngineSettings{OCREngine: "cloud", PostCode: "text = 'x'"})
	require.True(t, ok)

	zeta, found := repo.ReadCategory(ctx, "zeta")
	require.True(t, found)
	require.NotNil(t, zeta.OCROverride)
	assert.Equal(t, "cloud", zeta.OCROverride.OCREngine)
	assert.Equal(t, "2024-05-06 07:08:09", zeta.Timestamp)
	assert.Len(t, zeta.Regions, 2)
	assert.Len(t, zeta.Scheme, 3)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "legacy_field: keep me")

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, repo.Load(ctx).Aliases())
}

func TestYAMLRepository_WritesCreateFileAndAlias(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.yaml")
	repo := NewYAMLRepository(path)
	ctx := context.Background()

	require.True(t, repo.SaveClassification(ctx, "b", "function judge(i) { return true; }"))
	require.True(t, repo.SaveRegions(ctx, "b", []models.Box{{Pt1: models.Point{0, 0}, Pt2: models.Point{100, 50}, RegionType: 1}}))
	require.True(t, repo.SaveScheme(ctx, "b", models.Scheme{
		{Name: "second", EngineSettings: models.EngineSettings{OCREngine: "cloud"}},
		{Name: "first", Coords: &models.Rect{X1: 1, Y1: 1, X2: 9, Y2: 9}},
	}))
	require.True(t, repo.SaveSize(ctx, "b", models.Size{640, 480}))
	require.True(t, repo.SaveClassification(ctx, "a", "function judge(i) { return false; }"))
	require.True(t, repo.SetBasicType(ctx, 2, models.EngineSettings{OCREngine: "cloud"}))

	reg := repo.Load(ctx)
	assert.Equal(t, []string{"b", "a"}, reg.Aliases())

	b, _ := reg.Category("b")
	require.Len(t, b.Scheme, 2)
	assert.Equal(t, "second", b.Scheme[0].Name)
	assert.Equal(t, "first", b.Scheme[1].Name)
	require.NotNil(t, b.Size)
	assert.Equal(t, models.Size{640, 480}, *b.Size)
	assert.Equal(t, "function judge(i) { return true; }", b.ClassificationSource)

	bt2, _ := reg.Global.BasicType(2)
	assert.Equal(t, "cloud", bt2.OCREngine)
}

func TestYAMLRepository_CorruptFileIsNotOverwritten(t *testing.T) {
	path := writeRegistry(t, "zeta: [unclosed")
	repo := NewYAMLRepository(path)

	assert.False(t, repo.SaveOverride(context.Background(), "zeta", models.EngineSettings{}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "zeta: [unclosed", string(raw))
}

func TestYAMLRepository_SetBasicTypeOutOfRange(t *testing.T) {
	repo := NewYAMLRepository(filepath.Join(t.TempDir(), "r.yaml"))
	assert.False(t, repo.SetBasicType(context.Background(), 0, models.EngineSettings{}))
	assert.False(t, repo.SetBasicType(context.Background(), 5, models.EngineSettings{}))
}

func TestYAMLRepository_Remove(t *testing.T) {
	repo := NewYAMLRepository(writeRegistry(t, sampleRegistry))
	ctx := context.Background()

	assert.True(t, repo.Remove(ctx, "alpha"))
	assert.False(t, repo.Remove(ctx, "alpha"))
	assert.Equal(t, []string{"zeta", "mid"}, repo.Load(ctx).Aliases())
}

func TestYAMLRepository_ReadsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	content := `{"b": {"classification_source": "function judge(i){return true}"},
		"a": {"regions": [{"pt1": [0, 0], "pt2": [4, 4], "region_type": 2}]},
		"__global__": {"basic_type_2": {"ocr_engine": "cloud", "pre_code": "", "post_code": ""}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	reg := NewYAMLRepository(path).Load(context.Background())
	assert.Equal(t, []string{"b", "a"}, reg.Aliases())
	bt2, _ := reg.Global.BasicType(2)
	assert.Equal(t, "cloud", bt2.OCREngine)
}

func TestYAMLRepository_SkipsMalformedCategory(t *testing.T) {
	repo := NewYAMLRepository(writeRegistry(t, "good:\n  classification_source: x\nbad: 42\n"))
	assert.Equal(t, []string{"good"}, repo.Load(context.Background()).Aliases())
}
