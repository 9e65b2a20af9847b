package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/coursekit/meetingd/internal/token"
)

// Default values applied when the corresponding environment variable is unset.
const (
	DefaultRedirectURI = "http://localhost:8080/api/auth/oauth2callback"
	DefaultMongoURI    = "mongodb://localhost:27017"
	DefaultMongoDB     = "meetingd"
	DefaultHTTPAddr    = ":8080"

	// StoreMongo and StoreMemory are the supported credential store backends.
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// ValidationError reports required settings missing at startup. Fatal: the
// process fails fast instead of limping along without provider credentials.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// Config holds all runtime configuration for meetingd.
type Config struct {
	// Google OAuth client credentials. Required.
	GoogleClientID     string
	GoogleClientSecret string

	// RedirectURIs are the registered OAuth callback URIs. Multiple URIs may
	// be configured comma-separated; the first one is used for flows.
	RedirectURIs []string

	// BootstrapToken is the raw GOOGLE_OAUTH_TOKEN JSON blob, if supplied.
	BootstrapToken string

	// Store selection and Mongo connection settings.
	StoreType     string
	MongoURI      string
	MongoDatabase string

	// HTTPAddr is the listen address for the API server.
	HTTPAddr string

	// RetentionWindow bounds how long credential records are kept.
	// RefreshMargin is the pre-expiry buffer that triggers a refresh.
	RetentionWindow time.Duration
	RefreshMargin   time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present (development convenience); real
// environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		BootstrapToken:     os.Getenv("GOOGLE_OAUTH_TOKEN"),
		StoreType:          envOr("MEETINGD_STORE", StoreMongo),
		MongoURI:           envOr("MONGODB_URI", DefaultMongoURI),
		MongoDatabase:      envOr("MONGODB_DATABASE", DefaultMongoDB),
		HTTPAddr:           envOr("MEETINGD_HTTP_ADDR", DefaultHTTPAddr),
		RetentionWindow:    token.DefaultRetentionWindow,
		RefreshMargin:      token.DefaultRefreshMargin,
	}

	for _, uri := range strings.Split(envOr("GOOGLE_REDIRECT_URI", DefaultRedirectURI), ",") {
		if uri = strings.TrimSpace(uri); uri != "" {
			cfg.RedirectURIs = append(cfg.RedirectURIs, uri)
		}
	}

	if raw := os.Getenv("MEETINGD_RETENTION_WINDOW"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid MEETINGD_RETENTION_WINDOW: %w", err)
		}
		cfg.RetentionWindow = d
	}
	if raw := os.Getenv("MEETINGD_REFRESH_MARGIN"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid MEETINGD_REFRESH_MARGIN: %w", err)
		}
		cfg.RefreshMargin = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and supported values.
func (c *Config) Validate() error {
	var missing []string
	if c.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	switch c.StoreType {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unsupported store type %q (expected %q or %q)", c.StoreType, StoreMongo, StoreMemory)
	}
	return nil
}

// RedirectURI returns the primary OAuth callback URI.
func (c *Config) RedirectURI() string {
	if len(c.RedirectURIs) == 0 {
		return DefaultRedirectURI
	}
	return c.RedirectURIs[0]
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
