package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Source types for the copy phase
const (
	SourceNone  = ""
	SourceLocal = "local"
	SourceHTTP  = "http"
	SourceAzure = "azure"
)

// OCR cache modes
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64

	RegistryPath    string
	ImageDir        string
	ReportDir       string
	CredentialsPath string
	ClearImageDir   bool
	CopyWorkers     int

	DefaultOCREngine   string
	TesseractLanguages string
	CloudOCRTokenURL   string
	CloudOCREndpoint   string
	ScriptTimeout      time.Duration

	OCRCache          string
	OCRCacheRedisAddr string
	OCRCacheTTL       time.Duration

	SourceType         string
	SourceLocation     string
	SourceAllowedHosts []string
	AzureAccountName   string
	AzureAccountKey    string

	LogLevel  string
	LogFormat string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// UsesSQLite reports whether the registry path names a SQLite database.
func (c *Config) UsesSQLite() bool {
	p := strings.ToLower(c.RegistryPath)
	return strings.HasSuffix(p, ".db") || strings.HasSuffix(p, ".sqlite") || strings.HasSuffix(p, ".sqlite3")
}

// SetDefaults registers every key with its default so environment
// variables and bound flags resolve through the same viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("image_fetch_timeout", 15*time.Second)
	v.SetDefault("max_request_body_size", 10*1024*1024) // 10MB

	v.SetDefault("registry_path", "mu_ban/categories.yaml")
	v.SetDefault("image_dir", "lin_shi")
	v.SetDefault("report_dir", "results")
	v.SetDefault("credentials_path", "credentials.env")
	v.SetDefault("clear_image_dir", true)
	v.SetDefault("copy_workers", 4)

	v.SetDefault("default_ocr_engine", "tesseract")
	v.SetDefault("tesseract_languages", "chi_sim+eng")
	v.SetDefault("cloud_ocr_token_url", "https://aip.baidubce.com/oauth/2.0/token")
	v.SetDefault("cloud_ocr_endpoint", "https://aip.baidubce.com/rest/2.0/ocr/v1/accurate_basic")
	v.SetDefault("script_timeout", time.Duration(0))

	v.SetDefault("ocr_cache", "")
	v.SetDefault("ocr_cache_redis_addr", "")
	v.SetDefault("ocr_cache_ttl", 24*time.Hour)

	v.SetDefault("source_type", SourceNone)
	v.SetDefault("source_location", "")
	v.SetDefault("source_allowed_hosts", []string{})
	v.SetDefault("azure_account_name", "")
	v.SetDefault("azure_account_key", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// New returns a viper instance with defaults and environment lookup.
// A .env file in the working directory is loaded first when present.
func New() *viper.Viper {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

// Load reads an optional config file into v and validates the result.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds and validates a Config from already populated keys.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:               v.GetString("host"),
		Port:               v.GetString("port"),
		RequestTimeout:     v.GetDuration("request_timeout"),
		ImageFetchTimeout:  v.GetDuration("image_fetch_timeout"),
		MaxRequestBodySize: v.GetInt64("max_request_body_size"),

		RegistryPath:    strings.TrimSpace(v.GetString("registry_path")),
		ImageDir:        strings.TrimSpace(v.GetString("image_dir")),
		ReportDir:       strings.TrimSpace(v.GetString("report_dir")),
		CredentialsPath: strings.TrimSpace(v.GetString("credentials_path")),
		ClearImageDir:   v.GetBool("clear_image_dir"),
		CopyWorkers:     v.GetInt("copy_workers"),

		DefaultOCREngine:   strings.TrimSpace(v.GetString("default_ocr_engine")),
		TesseractLanguages: v.GetString("tesseract_languages"),
		CloudOCRTokenURL:   v.GetString("cloud_ocr_token_url"),
		CloudOCREndpoint:   v.GetString("cloud_ocr_endpoint"),
		ScriptTimeout:      v.GetDuration("script_timeout"),

		OCRCache:          strings.ToLower(strings.TrimSpace(v.GetString("ocr_cache"))),
		OCRCacheRedisAddr: strings.TrimSpace(v.GetString("ocr_cache_redis_addr")),
		OCRCacheTTL:       v.GetDuration("ocr_cache_ttl"),

		SourceType:         strings.ToLower(strings.TrimSpace(v.GetString("source_type"))),
		SourceLocation:     strings.TrimSpace(v.GetString("source_location")),
		SourceAllowedHosts: splitList(v.GetStringSlice("source_allowed_hosts")),
		AzureAccountName:   v.GetString("azure_account_name"),
		AzureAccountKey:    v.GetString("azure_account_key"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}

	// an unset cache mode follows the redis address
	if cfg.OCRCache == "" {
		cfg.OCRCache = CacheMemory
		if cfg.OCRCacheRedisAddr != "" {
			cfg.OCRCache = CacheRedis
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList flattens comma separated entries, the form a list takes in
// an environment variable.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the values the way the loader always has: ports are
// numeric, sizes and timeouts positive, and each mode has what it needs.
func (c *Config) Validate() error {
	var errs []error

	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT: %q", c.Port))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize))
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)",
			c.RequestTimeout, c.ImageFetchTimeout))
	}
	if c.ScriptTimeout < 0 {
		errs = append(errs, fmt.Errorf("SCRIPT_TIMEOUT must be >= 0 (got %s)", c.ScriptTimeout))
	}
	if c.RegistryPath == "" {
		errs = append(errs, errors.New("REGISTRY_PATH is required"))
	}
	if c.ImageDir == "" {
		errs = append(errs, errors.New("IMAGE_DIR is required"))
	}

	switch c.DefaultOCREngine {
	case "tesseract", "cloud":
	default:
		errs = append(errs, fmt.Errorf("DEFAULT_OCR_ENGINE must be tesseract or cloud (got %q)", c.DefaultOCREngine))
	}

	switch c.OCRCache {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.OCRCacheRedisAddr == "" {
			errs = append(errs, errors.New("OCR_CACHE_REDIS_ADDR is required when OCR_CACHE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("OCR_CACHE must be none, memory or redis (got %q)", c.OCRCache))
	}

	switch c.SourceType {
	case SourceNone:
	case SourceLocal, SourceHTTP:
		if c.SourceLocation == "" {
			errs = append(errs, fmt.Errorf("SOURCE_LOCATION is required for source type %s", c.SourceType))
		}
	case SourceAzure:
		if c.SourceLocation == "" {
			errs = append(errs, errors.New("SOURCE_LOCATION is required for source type azure"))
		}
		if c.AzureAccountName == "" || c.AzureAccountKey == "" {
			errs = append(errs, errors.New("AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are required for source type azure"))
		}
	default:
		errs = append(errs, fmt.Errorf("SOURCE_TYPE must be local, http or azure (got %q)", c.SourceType))
	}

	return errors.Join(errs...)
}
