// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Content backends.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string        `env:"CHAPEL_DB_PATH" envDefault:"./data/chapel.db"`
	SessionSecret string        `env:"CHAPEL_SESSION_SECRET,required"`
	JWTSecret     string        `env:"CHAPEL_JWT_SECRET,required"`
	JWTTTL        time.Duration `env:"CHAPEL_JWT_TTL" envDefault:"2h"`
	ServerHost    string        `env:"CHAPEL_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int           `env:"CHAPEL_SERVER_PORT" envDefault:"8080"`
	Env           string        `env:"CHAPEL_ENV" envDefault:"development"`
	LogLevel      string        `env:"CHAPEL_LOG_LEVEL" envDefault:"info"`
	TrustProxy    bool          `env:"CHAPEL_TRUST_PROXY" envDefault:"false"` // Honor X-Real-IP / X-Forwarded-For
	MetricsToken  string        `env:"CHAPEL_METRICS_TOKEN"`                   // Bearer token for /metrics; empty disables the endpoint

	// Super-admin account, always granted every permission.
	SuperAdminEmail string `env:"CHAPEL_SUPER_ADMIN_EMAIL" envDefault:"admin@church.local"`

	// Content storage
	ContentBackend string `env:"CHAPEL_CONTENT_BACKEND" envDefault:"sqlite"` // sqlite or mongo
	MongoURI       string `env:"CHAPEL_MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase  string `env:"CHAPEL_MONGO_DATABASE" envDefault:"chapel"`

	// Public site
	SiteDir       string `env:"CHAPEL_SITE_DIR" envDefault:"./site"`
	SelectorsFile string `env:"CHAPEL_SELECTORS_FILE"` // Optional override of the embedded selector table
	SchemaFile    string `env:"CHAPEL_SCHEMA_FILE"`    // Optional field schema registry

	// Media
	UploadsDir   string `env:"CHAPEL_UPLOADS_DIR" envDefault:"./uploads"`
	MediaBaseURL string `env:"CHAPEL_MEDIA_BASE_URL"`
	MaxUploadMB  int64  `env:"CHAPEL_MAX_UPLOAD_MB" envDefault:"10"`
	S3Endpoint   string `env:"CHAPEL_S3_ENDPOINT"`
	S3AccessKey  string `env:"CHAPEL_S3_ACCESS_KEY"`
	S3SecretKey  string `env:"CHAPEL_S3_SECRET_KEY"`
	S3Bucket     string `env:"CHAPEL_S3_BUCKET" envDefault:"chapel-media"`
	S3UseSSL     bool   `env:"CHAPEL_S3_USE_SSL" envDefault:"true"`

	// Login throttling
	RedisURL         string        `env:"CHAPEL_REDIS_URL"` // Optional shared limiter store
	RedisPrefix      string        `env:"CHAPEL_REDIS_PREFIX" envDefault:"chapel:"`
	LoginMaxAttempts int           `env:"CHAPEL_LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindow      time.Duration `env:"CHAPEL_LOGIN_WINDOW" envDefault:"15m"`

	// GeoIP configuration
	GeoIPDBPath string `env:"CHAPEL_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	EventRetentionDays int `env:"CHAPEL_EVENT_RETENTION_DAYS" envDefault:"90"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if the login limiter should use Redis.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// UseMongo returns true if content and users live in MongoDB.
func (c Config) UseMongo() bool {
	return c.ContentBackend == BackendMongo
}

// UseS3 returns true if media goes to an S3-compatible bucket.
func (c Config) UseS3() bool {
	return c.S3Endpoint != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// MinSecretLength is the minimum required length for session and token secrets.
const MinSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := checkSecret("CHAPEL_SESSION_SECRET", cfg.SessionSecret); err != nil {
		return nil, err
	}
	if err := checkSecret("CHAPEL_JWT_SECRET", cfg.JWTSecret); err != nil {
		return nil, err
	}

	switch cfg.ContentBackend {
	case BackendSQLite, BackendMongo:
	default:
		return nil, fmt.Errorf("CHAPEL_CONTENT_BACKEND must be %q or %q, got %q",
			BackendSQLite, BackendMongo, cfg.ContentBackend)
	}

	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("CHAPEL_MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}
	if cfg.LoginMaxAttempts <= 0 || cfg.LoginWindow <= 0 {
		return nil, fmt.Errorf("login throttling requires positive CHAPEL_LOGIN_MAX_ATTEMPTS and CHAPEL_LOGIN_WINDOW")
	}

	cfg.SuperAdminEmail = strings.ToLower(strings.TrimSpace(cfg.SuperAdminEmail))

	return cfg, nil
}

func checkSecret(name, secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%s must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			name, MinSecretLength, len(secret))
	}

	for _, weak := range knownWeakSecrets {
		if secret == weak {
			return fmt.Errorf("%s is a known default value and must not be used; "+
				"generate a secure secret with: openssl rand -base64 32", name)
		}
	}

	if !hasMinimumEntropy(secret) {
		slog.Warn(name + " has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
