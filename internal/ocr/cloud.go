package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"sync"

	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/storage"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultTokenURL = "https://aip.baidubce.com/oauth/2.0/token"
	DefaultEndpoint = "https://aip.baidubce.com/rest/2.0/ocr/v1/accurate_basic"
)

// error codes the service uses for bad or expired access tokens
var credentialErrorCodes = map[int]bool{110: true, 111: true}

// Credentials are read from a dotenv style file holding API_KEY and SECRET_KEY.
type Credentials struct {
	APIKey    string
	SecretKey string
}

func LoadCredentials(path string) (Credentials, error) {
	if strings.TrimSpace(path) == "" {
		return Credentials{}, apperrors.NewCredentialError("no credentials file configured", nil)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return Credentials{}, apperrors.NewCredentialError("credentials file unreadable", err)
	}
	creds := Credentials{
		APIKey:    strings.TrimSpace(env["API_KEY"]),
		SecretKey: strings.TrimSpace(env["SECRET_KEY"]),
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return Credentials{}, apperrors.NewCredentialError("API_KEY and SECRET_KEY are required", nil)
	}
	return creds, nil
}

type CloudConfig struct {
	CredentialsPath string
	TokenURL        string
	Endpoint        string
	Language        string
}

// CloudEngine calls a hosted accurate-OCR endpoint. Credential failures are
// sticky until the next BeginBatch so a batch does not hammer the token
// endpoint once per region.
type CloudEngine struct {
	cfg    CloudConfig
	client *storage.RetryClient

	mu      sync.Mutex
	tokens  oauth2.TokenSource
	credErr error
	logged  bool
}

type cloudResponse struct {
	ErrorCode   int    `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	WordsResult []struct {
		Words string `json:"words"`
	} `json:"words_result"`
}

func NewCloudEngine(cfg CloudConfig, client *storage.RetryClient) *CloudEngine {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Language == "" {
		cfg.Language = "CHN_ENG"
	}
	return &CloudEngine{cfg: cfg, client: client}
}

func (e *CloudEngine) Name() string { return CloudEngineName }

// BeginBatch forgets cached tokens and any credential failure.
func (e *CloudEngine) BeginBatch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tokens = nil
	e.credErr = nil
	e.logged = false
}

func (e *CloudEngine) tokenSource() (oauth2.TokenSource, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.credErr != nil {
		return nil, e.credErr
	}
	if e.tokens != nil {
		return e.tokens, nil
	}

	creds, err := LoadCredentials(e.cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}
	conf := &clientcredentials.Config{
		ClientID:     creds.APIKey,
		ClientSecret: creds.SecretKey,
		TokenURL:     e.cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, e.client.HTTPClient())
	e.tokens = oauth2.ReuseTokenSource(nil, conf.TokenSource(tokenCtx))
	return e.tokens, nil
}

// fail records a credential failure and logs it once per batch.
func (e *CloudEngine) fail(err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.credErr == nil {
		e.credErr = err
	}
	if !e.logged {
		e.logged = true
		logger.WithError(err).WithField("engine", CloudEngineName).
			Error("Cloud OCR credentials unusable, cloud regions stay empty for this batch")
	}
	return e.credErr
}

func (e *CloudEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	ts, err := e.tokenSource()
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeCredential) {
			return "", e.fail(err)
		}
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return "", e.fail(apperrors.NewCredentialError("token exchange rejected", err))
		}
		return "", fmt.Errorf("token exchange: %w", err)
	}

	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	form := url.Values{
		"image":            {base64.StdEncoding.EncodeToString(data)},
		"language_type":    {e.cfg.Language},
		"detect_direction": {"false"},
		"paragraph":        {"false"},
		"probability":      {"false"},
	}
	body := form.Encode()
	endpoint := e.cfg.Endpoint + "?access_token=" + url.QueryEscape(tok.AccessToken)

	resp, err := e.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		tok.SetAuthHeader(req)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("cloud ocr: %w", err)
	}
	defer resp.Body.Close()

	var out cloudResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode cloud ocr response: %w", err)
	}
	if out.ErrorCode != 0 {
		cause := fmt.Errorf("cloud ocr error %d: %s", out.ErrorCode, out.ErrorMsg)
		if credentialErrorCodes[out.ErrorCode] {
			return "", e.fail(apperrors.NewCredentialError("access token rejected", cause))
		}
		return "", cause
	}

	lines := make([]string, 0, len(out.WordsResult))
	for _, w := range out.WordsResult {
		lines = append(lines, w.Words)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
