package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-scan-sorter/internal/config"
	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/pkg/models"
	"go-scan-sorter/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	runErr     error
	lastReq    models.BatchRequest
	precond    error
	global     models.Global
	setN       int
	setErr     error
	snapshot   models.ProgressSnapshot
	categories map[string]*models.Category
}

func (f *fakeService) RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error) {
	f.lastReq = req
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &models.BatchResult{ID: "b1", Total: 3, Classification: models.NewClassification()}, nil
}

func (f *fakeService) Progress() models.ProgressSnapshot { return f.snapshot }

func (f *fakeService) Metrics() map[string]interface{} {
	return map[string]interface{}{"total_batches": 2}
}

func (f *fakeService) Categories(ctx context.Context) []models.CategorySummary {
	out := []models.CategorySummary{}
	for _, c := range f.categories {
		out = append(out, models.Summarize(c))
	}
	return out
}

func (f *fakeService) Category(ctx context.Context, alias string) (*models.Category, error) {
	c, ok := f.categories[alias]
	if !ok {
		return nil, apperrors.NewNotFoundError("category not found", nil)
	}
	return c, nil
}

func (f *fakeService) BasicTypes(ctx context.Context) models.Global { return f.global }

func (f *fakeService) SetBasicType(ctx context.Context, n int, settings models.EngineSettings) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.setN = n
	f.global.BasicTypes[n-1] = settings
	return nil
}

func (f *fakeService) CheckPreconditions() error { return f.precond }

func (f *fakeService) ValidateRegistry(ctx context.Context) []validation.RegistryIssue {
	out := []validation.RegistryIssue{}
	for alias, c := range f.categories {
		if c.ClassificationSource == "" {
			out = append(out, validation.RegistryIssue{Alias: alias, Type: "missing_source", Severity: validation.SeverityError})
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1024,
	}
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthCheck(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, &fakeInspector{}, testConfig())

	rec := serve(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available"`)

	svc.precond = apperrors.NewValidationError("image directory missing", nil)
	rec = serve(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestRunBatchEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		query      string
		runErr     error
		wantStatus int
		wantRender bool
		wantSource string
	}{
		{name: "empty body", wantStatus: http.StatusOK},
		{name: "request body", body: `{"source_type":"http","source_location":"urls.txt","render_report":true}`,
			wantStatus: http.StatusOK, wantRender: true, wantSource: "http"},
		{name: "render query", query: "?render=true", wantStatus: http.StatusOK, wantRender: true},
		{name: "malformed body", body: `{"source_type":`, wantStatus: http.StatusBadRequest},
		{name: "batch running", runErr: apperrors.NewConflictError("a batch is already running", nil),
			wantStatus: http.StatusConflict},
		{name: "missing image dir", runErr: apperrors.NewValidationError("image directory missing", nil),
			wantStatus: http.StatusBadRequest},
		{name: "plain failure", runErr: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{runErr: tt.runErr}
			rec := serve(t, NewHandler(svc, &fakeInspector{}, testConfig()), http.MethodPost, "/batches"+tt.query, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				var resp models.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, http.StatusText(tt.wantStatus), resp.Error)
				return
			}
			assert.Equal(t, tt.wantRender, svc.lastReq.RenderReport)
			assert.Equal(t, tt.wantSource, svc.lastReq.SourceType)

			var result models.BatchResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, "b1", result.ID)
		})
	}
}

func TestRequestSizeLimit(t *testing.T) {
	svc := &fakeService{}
	body := `{"source_location":"` + strings.Repeat("x", 2048) + `"}`
	rec := serve(t, NewHandler(svc, &fakeInspector{}, testConfig()), http.MethodPost, "/batches", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressAndMetrics(t *testing.T) {
	svc := &fakeService{snapshot: models.ProgressSnapshot{BatchID: "b1", Phase: "classifying", Done: 2, Total: 5, Running: true}}
	h := NewHandler(svc, &fakeInspector{}, testConfig())

	rec := serve(t, h, http.MethodGet, "/batches/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, svc.snapshot.Phase, snap.Phase)
	assert.Equal(t, 2, snap.Done)
	assert.True(t, snap.Running)

	rec = serve(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_batches":2`)
}

func TestCategoryEndpoints(t *testing.T) {
	svc := &fakeService{categories: map[string]*models.Category{
		"invoice": {Alias: "invoice", Regions: []models.Box{{RegionType: 1}, {RegionType: 5}}},
	}}
	h := NewHandler(svc, &fakeInspector{}, testConfig())

	rec := serve(t, h, http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Categories []models.CategorySummary `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Categories, 1)
	assert.True(t, list.Categories[0].NewType)

	rec = serve(t, h, http.MethodGet, "/categories/invoice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alias":"invoice"`)

	rec = serve(t, h, http.MethodGet, "/categories/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBasicTypeEndpoints(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, &fakeInspector{}, testConfig())

	rec := serve(t, h, http.MethodPut, "/basic-types/3", `{"ocr_engine":"cloud","post_code":"text = text.trim();"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, svc.setN)

	rec = serve(t, h, http.MethodGet, "/basic-types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var global models.Global
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &global))
	assert.Equal(t, "cloud", global.BasicTypes[2].OCREngine)

	rec = serve(t, h, http.MethodPut, "/basic-types/x", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.setErr = apperrors.NewValidationError("basic type out of range", nil)
	rec = serve(t, h, http.MethodPut, "/basic-types/9", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetermineStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NewConflictError("busy", nil), http.StatusConflict},
		{errors.Join(errors.New("outer"), apperrors.NewNotFoundError("gone", nil)), http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, http.StatusTooManyRequests},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, determineStatusCode(tt.err), tt.err.Error())
	}
}

func TestRegistryIssuesEndpoint(t *testing.T) {
	svc := &fakeService{categories: map[string]*models.Category{
		"ok":    {Alias: "ok", ClassificationSource: "function judge() { return true; }"},
		"draft": {Alias: "draft"},
	}}
	rec := serve(t, NewHandler(svc, &fakeInspector{}, testConfig()), http.MethodGet, "/registry/issues", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Valid  bool                       `json:"valid"`
		Issues []validation.RegistryIssue `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Valid)
	require.Len(t, body.Issues, 1)
	assert.Equal(t, "draft", body.Issues[0].Alias)
}

type fakeInspector struct {
	req  models.InspectRequest
	resp *models.InspectResponse
	err  error
}

func (f *fakeInspector) Inspect(ctx context.Context, req models.InspectRequest) (*models.InspectResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestInspectEndpoint(t *testing.T) {
	inspector := &fakeInspector{resp: &models.InspectResponse{
		Source: "scan.png",
		Mode:   models.InspectModeOCR,
		Issues: []string{"blurry"},
	}}
	h := NewHandler(&fakeService{}, inspector, testConfig())

	rec := serve(t, h, http.MethodPost, "/inspect", `{"image":"scan.png","mode":"ocr","thresholds":{"blur":50}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "scan.png", inspector.req.Image)
	require.NotNil(t, inspector.req.Thresholds)
	assert.Equal(t, 50.0, *inspector.req.Thresholds.Blur)

	var resp models.InspectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"blurry"}, resp.Issues)
	assert.False(t, resp.Passed)

	rec = serve(t, h, http.MethodPost, "/inspect", `{"image":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	inspector.err = apperrors.NewDecodeError("cannot decode scan.png", nil)
	rec = serve(t, h, http.MethodPost, "/inspect", `{"image":"scan.png"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	inspector.err = apperrors.NewNetworkError("failed to fetch image", nil)
	rec = serve(t, h, http.MethodPost, "/inspect", `{"url":"https://example.com/a.png"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
