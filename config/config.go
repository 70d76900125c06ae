// Package config loads the portal configuration from the environment.
// Everything else receives a *Config; nothing outside this package calls os.Getenv.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	StorageR2  = "r2"
	StorageGCS = "gcs"
)

// Config holds all runtime settings.
type Config struct {
	Port           string
	AppURL         string
	LogLevel       string
	AllowedOrigins []string
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty trusts none, so the peer address is the client.
	TrustedProxies []string

	// DataStore selects the backing store: "mongo" (default) or "memory".
	DataStore    string
	MongoURI     string
	DatabaseName string

	JWTSecret      string
	SessionTTLDays int
	CookieSecure   bool
	CookieDomain   string

	// AdminEmail/AdminPassword seed the protected admin account at startup.
	AdminEmail    string
	AdminPassword string

	Mail    MailConfig
	Limit   RateLimitConfig
	Storage StorageConfig
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// RateLimitConfig bounds requests per client IP on the public auth endpoints.
// An empty RedisURL keeps the counters in process memory.
type RateLimitConfig struct {
	RedisURL string
	Requests int
	Window   time.Duration
}

// StorageConfig selects the bucket used for listing images: Cloudflare R2
// (default) or Google Cloud Storage.
type StorageConfig struct {
	Provider string

	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PublicDomain    string

	GCSBucket          string
	GCSCredentialsFile string

	MaxUploadMB int
}

// Load reads a .env file if present and builds a Config from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:           envOr("PORT", "8080"),
		AppURL:         strings.TrimRight(envOr("APP_URL", "http://localhost:8080"), "/"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
		DataStore:      strings.ToLower(envOr("DATA_STORE", StoreMongo)),
		MongoURI:       os.Getenv("MONGODB_URI"),
		DatabaseName:   envOr("DATABASE_NAME", "jobportal"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		SessionTTLDays: envInt("SESSION_TTL_DAYS", 30),
		CookieSecure:   os.Getenv("COOKIE_SECURE") == "true",
		CookieDomain:   os.Getenv("COOKIE_DOMAIN"),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		Mail: MailConfig{
			Host:     os.Getenv("EMAIL_SERVER_HOST"),
			Port:     envInt("EMAIL_SERVER_PORT", 587),
			User:     os.Getenv("EMAIL_SERVER_USER"),
			Password: os.Getenv("EMAIL_SERVER_PASSWORD"),
			From:     envOr("EMAIL_FROM", "noreply@jobcourseportal.com"),
		},
		Limit: RateLimitConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			Requests: envInt("AUTH_RATE_LIMIT", 10),
			Window:   time.Duration(envInt("AUTH_RATE_WINDOW_SECONDS", 60)) * time.Second,
		},
		Storage: StorageConfig{
			Provider: strings.ToLower(envOr("STORAGE_PROVIDER", StorageR2)),

			Bucket:          os.Getenv("R2_BUCKET"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Endpoint:        os.Getenv("R2_ENDPOINT"),
			PublicDomain:    strings.TrimRight(os.Getenv("R2_PUBLIC_DOMAIN"), "/"),

			GCSBucket:          os.Getenv("GCS_BUCKET"),
			GCSCredentialsFile: os.Getenv("CREDENTIALS_FILE_LOCATION"),

			MaxUploadMB: envInt("MAX_UPLOAD_SIZE_MB", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	switch c.DataStore {
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when DATA_STORE=mongo"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DATA_STORE %q", c.DataStore))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	if p := c.Storage.Provider; p != "" && p != StorageR2 && p != StorageGCS {
		errs = append(errs, fmt.Errorf("unknown STORAGE_PROVIDER %q", p))
	}
	if c.SessionTTLDays <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_DAYS must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLDays) * 24 * time.Hour
}

func (c *Config) MailConfigured() bool {
	return c.Mail.Host != ""
}

func (c *Config) StorageConfigured() bool {
	s := c.Storage
	if s.Provider == StorageGCS {
		return s.GCSBucket != ""
	}
	return s.Bucket != "" && s.AccessKeyID != "" && s.SecretAccessKey != "" && s.Endpoint != ""
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitList(s string) []string {
	out := make([]string, 0)
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
