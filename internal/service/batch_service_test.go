package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/repository"
	"go-scan-sorter/internal/storage"
	"go-scan-sorter/pkg/models"
	"go-scan-sorter/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	entered chan struct{}
	release chan struct{}
	source  storage.Source
	err     error
}

func (r *fakeRunner) Run(ctx context.Context, source storage.Source) (*models.BatchResult, error) {
	r.source = source
	if r.entered != nil {
		close(r.entered)
		<-r.release
	}
	if r.err != nil {
		return nil, r.err
	}
	c := models.NewClassification()
	c.Set("a.png", "invoice")
	c.Set("b.png", "unknown")
	one := 1
	return &models.BatchResult{
		ID:             "batch-1",
		Total:          2,
		Classification: c,
		Results: []models.ImageResult{
			{ImageName: "a.png", Category: "invoice", Regions: []models.RegionResult{
				{RegionName: "basic_type_1", RegionType: &one, Text: "42"},
			}},
			{ImageName: "b.png", Category: "unknown", Regions: []models.RegionResult{}},
		},
	}, nil
}

type fakeRenderer struct {
	dir    string
	report models.GroupedReport
}

func (r *fakeRenderer) Render(report models.GroupedReport, dir string) (string, error) {
	r.dir = dir
	r.report = report
	return filepath.Join(dir, "report.xlsx"), nil
}

type namedSource struct{ name string }

func (s namedSource) Name() string { return s.name }
func (s namedSource) List(context.Context) ([]string, error) { return nil, nil }
func (s namedSource) Copy(context.Context, string, string) error { return nil }

type fixture struct {
	settings Settings
	store    *repository.YAMLRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	imageDir := filepath.Join(root, "images")
	require.NoError(t, os.Mkdir(imageDir, 0o755))
	registry := filepath.Join(root, "categories.yaml")
	return fixture{
		settings: Settings{
			ImageDir:     imageDir,
			RegistryPath: registry,
			ReportDir:    filepath.Join(root, "results"),
		},
		store: repository.NewYAMLRepository(registry),
	}
}

func TestRunBatch_AssemblesAndRenders(t *testing.T) {
	f := newFixture(t)
	renderer := &fakeRenderer{}
	svc := NewBatchService(f.settings, f.store, &fakeRunner{}, nil, renderer, nil, nil)

	result, err := svc.RunBatch(context.Background(), models.BatchRequest{RenderReport: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"invoice", "unknown"}, result.Report.Categories())
	assert.Equal(t, "【1】\n42", result.Report.Groups[0].Rows[0].Buckets[0])
	assert.Equal(t, f.settings.ReportDir, renderer.dir)
	assert.Equal(t, filepath.Join(f.settings.ReportDir, "report.xlsx"), result.ReportPath)
	assert.DirExists(t, f.settings.ReportDir)
}

func TestRunBatch_WithoutRender(t *testing.T) {
	f := newFixture(t)
	renderer := &fakeRenderer{}
	svc := NewBatchService(f.settings, f.store, &fakeRunner{}, nil, renderer, nil, nil)

	result, err := svc.RunBatch(context.Background(), models.BatchRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.ReportPath)
	assert.Empty(t, renderer.dir)
}

func TestRunBatch_Preconditions(t *testing.T) {
	t.Run("missing image directory", func(t *testing.T) {
		f := newFixture(t)
		f.settings.ImageDir = filepath.Join(f.settings.ImageDir, "nope")
		svc := NewBatchService(f.settings, f.store, &fakeRunner{}, nil, nil, nil, nil)

		_, err := svc.RunBatch(context.Background(), models.BatchRequest{})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("missing registry location", func(t *testing.T) {
		f := newFixture(t)
		f.settings.RegistryPath = filepath.Join(t.TempDir(), "gone", "categories.yaml")
		svc := NewBatchService(f.settings, f.store, &fakeRunner{}, nil, nil, nil, nil)

		_, err := svc.RunBatch(context.Background(), models.BatchRequest{})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("absent registry file is fine", func(t *testing.T) {
		f := newFixture(t)
		svc := NewBatchService(f.settings, f.store, &fakeRunner{}, nil, nil, nil, nil)
		assert.NoError(t, svc.CheckPreconditions())
	})
}

func TestRunBatch_OneAtATime(t *testing.T) {
	f := newFixture(t)
	runner := &fakeRunner{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewBatchService(f.settings, f.store, runner, nil, nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunBatch(context.Background(), models.BatchRequest{})
		done <- err
	}()

	select {
	case <-runner.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first batch never started")
	}

	assert.True(t, svc.Progress().Running)
	_, err := svc.RunBatch(context.Background(), models.BatchRequest{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.Equal(t, 409, apperrors.GetStatusCode(err))

	close(runner.release)
	require.NoError(t, <-done)
	assert.False(t, svc.Progress().Running)
}

func TestRunBatch_RunnerFailure(t *testing.T) {
	f := newFixture(t)
	svc := NewBatchService(f.settings, f.store, &fakeRunner{err: errors.New("phase incomplete")}, nil, nil, nil, nil)

	_, err := svc.RunBatch(context.Background(), models.BatchRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))

	// the slot is released after a failure
	_, err = svc.RunBatch(context.Background(), models.BatchRequest{})
	assert.False(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestRunBatch_SourceSelection(t *testing.T) {
	f := newFixture(t)
	f.settings.SourceType = "local"
	f.settings.SourceLocation = "/configured"

	var gotType, gotLoc string
	sources := func(typ, loc string) (storage.Source, error) {
		if typ == "ftp" {
			return nil, errors.New("unsupported source type")
		}
		gotType, gotLoc = typ, loc
		return namedSource{name: typ + ":" + loc}, nil
	}
	runner := &fakeRunner{}
	svc := NewBatchService(f.settings, f.store, runner, sources, nil, nil, nil)

	_, err := svc.RunBatch(context.Background(), models.BatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, "local", gotType)
	assert.Equal(t, "/configured", gotLoc)
	assert.Equal(t, "local:/configured", runner.source.Name())

	_, err = svc.RunBatch(context.Background(), models.BatchRequest{SourceType: "http", SourceLocation: "urls.txt"})
	require.NoError(t, err)
	assert.Equal(t, "http", gotType)
	assert.Equal(t, "urls.txt", gotLoc)

	_, err = svc.RunBatch(context.Background(), models.BatchRequest{SourceType: "ftp"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestCategoriesAndBasicTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.store.SaveClassification(ctx, "receipt", "function judge() { return true; }"))
	require.True(t, f.store.SaveRegions(ctx, "receipt", []models.Box{
		{Pt1: models.Point{0, 0}, Pt2: models.Point{10, 10}, RegionType: 1},
		{Pt1: models.Point{0, 0}, Pt2: models.Point{5, 5}, RegionType: 5},
	}))
	svc := NewBatchService(f.settings, f.store, &fakeRunner{}, nil, nil, nil, nil)

	summaries := svc.Categories(ctx)
	require.Len(t, summaries, 1)
	assert.Equal(t, "receipt", summaries[0].Alias)
	assert.Equal(t, 2, summaries[0].Boxes)
	assert.True(t, summaries[0].NewType)

	c, err := svc.Category(ctx, "receipt")
	require.NoError(t, err)
	assert.Len(t, c.Regions, 2)

	_, err = svc.Category(ctx, "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	require.NoError(t, svc.SetBasicType(ctx, 2, models.EngineSettings{OCREngine: "cloud"}))
	assert.Equal(t, "cloud", svc.BasicTypes(ctx).BasicTypes[1].OCREngine)

	err = svc.SetBasicType(ctx, 5, models.EngineSettings{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestMetricsWithoutSource(t *testing.T) {
	f := newFixture(t)
	svc := NewBatchService(f.settings, f.store, &fakeRunner{}, nil, nil, nil, nil)
	assert.Empty(t, svc.Metrics())
	assert.False(t, svc.Progress().Running)
}

func TestValidateRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.store.SaveRegions(ctx, "draft", []models.Box{
		{Pt1: models.Point{0, 0}, Pt2: models.Point{5, 5}, RegionType: 5},
	}))

	svc := NewBatchService(f.settings, f.store, &fakeRunner{}, nil, nil, nil, nil,
		WithRegistryValidator(validation.NewRegistryValidator(nil, nil)))
	issues := svc.ValidateRegistry(ctx)
	require.Len(t, issues, 2)
	assert.Equal(t, "missing_source", issues[0].Type)
	assert.Equal(t, "override_pending", issues[1].Type)

	empty := newFixture(t)
	svc = NewBatchService(empty.settings, empty.store, &fakeRunner{}, nil, nil, nil, nil)
	assert.NotNil(t, svc.ValidateRegistry(ctx))
	assert.Empty(t, svc.ValidateRegistry(ctx))
}
