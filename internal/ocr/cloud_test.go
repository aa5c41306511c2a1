package ocr

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 60), uint8(y * 60), 0, 255})
		}
	}
	return img
}

func writeCredentials(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type fakeCloud struct {
	server      *httptest.Server
	tokenCalls  atomic.Int32
	ocrCalls    atomic.Int32
	rejectToken bool
	ocrReply    any
}

func newFakeCloud(t *testing.T) *fakeCloud {
	f := &fakeCloud{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/token":
			f.tokenCalls.Add(1)
			if f.rejectToken || r.PostForm.Get("client_id") != "key" || r.PostForm.Get("client_secret") != "secret" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid_client"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"tok-1","expires_in":3600,"token_type":"bearer"}`))
		case "/ocr":
			f.ocrCalls.Add(1)
			assert.Equal(t, "tok-1", r.URL.Query().Get("access_token"))
			assert.Equal(t, "CHN_ENG", r.PostForm.Get("language_type"))
			assert.NotEmpty(t, r.PostForm.Get("image"))
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(f.ocrReply)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCloud) engine(credentialsPath string) *CloudEngine {
	client := storage.NewRetryClient(5*time.Second, storage.WithBackoff(func(int) time.Duration { return 0 }))
	return NewCloudEngine(CloudConfig{
		CredentialsPath: credentialsPath,
		TokenURL:        f.server.URL + "/token",
		Endpoint:        f.server.URL + "/ocr",
	}, client)
}

func TestCloudEngine_Recognize(t *testing.T) {
	f := newFakeCloud(t)
	f.ocrReply = map[string]any{
		"words_result": []map[string]string{{"words": " 发票号码 "}, {"words": "12345 "}},
	}
	e := f.engine(writeCredentials(t, "API_KEY=\"key\"\nSECRET_KEY='secret'\n"))

	text, err := e.Recognize(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "发票号码 \n12345", text)

	_, err = e.Recognize(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.tokenCalls.Load(), "token is reused")
	assert.Equal(t, int32(2), f.ocrCalls.Load())
}

func TestCloudEngine_MissingCredentialsIsSticky(t *testing.T) {
	f := newFakeCloud(t)
	e := f.engine(filepath.Join(t.TempDir(), "absent.env"))

	for i := 0; i < 3; i++ {
		text, err := e.Recognize(context.Background(), testImage())
		assert.Empty(t, text)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCredential))
	}
	assert.Equal(t, int32(0), f.tokenCalls.Load())
	assert.Equal(t, int32(0), f.ocrCalls.Load())
}

func TestCloudEngine_IncompleteCredentials(t *testing.T) {
	_, err := LoadCredentials(writeCredentials(t, "API_KEY=key\n"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCredential))

	creds, err := LoadCredentials(writeCredentials(t, "API_KEY = \"key\"\nSECRET_KEY=secret\n"))
	require.NoError(t, err)
	assert.Equal(t, Credentials{APIKey: "key", SecretKey: "secret"}, creds)
}

func TestCloudEngine_RejectedTokenUntilNextBatch(t *testing.T) {
	f := newFakeCloud(t)
	f.rejectToken = true
	f.ocrReply = map[string]any{"words_result": []map[string]string{{"words": "ok"}}}
	e := f.engine(writeCredentials(t, "API_KEY=key\nSECRET_KEY=secret\n"))

	_, err := e.Recognize(context.Background(), testImage())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCredential))
	_, err = e.Recognize(context.Background(), testImage())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCredential))
	assert.Equal(t, int32(1), f.tokenCalls.Load(), "failure is remembered")

	f.rejectToken = false
	e.BeginBatch()
	text, err := e.Recognize(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestCloudEngine_ServiceErrors(t *testing.T) {
	f := newFakeCloud(t)
	e := f.engine(writeCredentials(t, "API_KEY=key\nSECRET_KEY=secret\n"))

	f.ocrReply = map[string]any{"error_code": 17, "error_msg": "Open api daily request limit reached"}
	_, err := e.Recognize(context.Background(), testImage())
	require.Error(t, err)
	assert.False(t, apperrors.IsType(err, apperrors.ErrorTypeCredential))
	assert.Contains(t, err.Error(), "17")

	f.ocrReply = map[string]any{"error_code": 110, "error_msg": "Access token invalid or no longer valid"}
	_, err = e.Recognize(context.Background(), testImage())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCredential))
}
