// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environments recognized by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Database drivers recognized by DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Mail drivers recognized by MAIL_DRIVER.
const (
	MailDriverLog  = "log"
	MailDriverSMTP = "smtp"
	MailDriverHTTP = "http"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development" or "production"). Drives cookie security and startup checks.
	Env string `mapstructure:"APP_ENV"`
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// HealthGRPCAddr is the optional address of the gRPC health listener; empty disables it.
	HealthGRPCAddr string `mapstructure:"HEALTH_GRPC_ADDR"`

	// DatabaseDriver selects the credential store backend: postgres, sqlite or mongo.
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	// DatabaseURL is the Postgres DSN, SQLite file path, or MongoDB URI.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MongoDatabase is the database name used when DATABASE_DRIVER=mongo.
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	// JWTAccessSecret is the access-token key: an HMAC secret, inline PEM private key, or "file:<path>" to a PEM file.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret is the refresh-token key, same formats as JWTAccessSecret. Must differ from it.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTAccessPublicKey is the PEM public key matching a PEM JWTAccessSecret; derived from the private key when empty.
	JWTAccessPublicKey string `mapstructure:"JWT_ACCESS_PUBLIC_KEY"`
	// JWTRefreshPublicKey is the PEM public key matching a PEM JWTRefreshSecret.
	JWTRefreshPublicKey string `mapstructure:"JWT_REFRESH_PUBLIC_KEY"`
	// JWTMasterSecret derives both HMAC keys via HKDF when the access/refresh secrets are unset.
	JWTMasterSecret string `mapstructure:"JWT_MASTER_SECRET"`
	// JWTIssuer is the iss claim (e.g. "synq-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "synq-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`

	// MagicLinkBaseURL is the frontend page that receives ?token=<secret>.
	MagicLinkBaseURL string `mapstructure:"MAGIC_LINK_BASE_URL"`
	// MagicLinkTTLRaw is the magic-link lifetime (e.g. "15m").
	MagicLinkTTLRaw string `mapstructure:"MAGIC_LINK_TTL"`

	// CookieDomain is the Domain attribute of the session cookies; empty means host-only.
	CookieDomain string `mapstructure:"COOKIE_DOMAIN"`
	// CookieSameSite overrides the SameSite mode (lax, strict, none). none requires production.
	CookieSameSite string `mapstructure:"COOKIE_SAMESITE"`
	// CORSAllowedOrigins is a comma-separated list of origins allowed to call the API with credentials.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// MailDriver selects the magic-link delivery: log (development outbox), smtp or http.
	MailDriver string `mapstructure:"MAIL_DRIVER"`
	// MailFrom is the From address of magic-link emails.
	MailFrom string `mapstructure:"MAIL_FROM"`
	// SMTPHost is the SMTP relay host.
	SMTPHost string `mapstructure:"SMTP_HOST"`
	// SMTPPort is the SMTP relay port (default 587).
	SMTPPort int `mapstructure:"SMTP_PORT"`
	// SMTPUsername is the SMTP auth user; empty disables auth.
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	// SMTPPassword is the SMTP auth password.
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	// MailAPIURL is the endpoint of the transactional email HTTP API.
	MailAPIURL string `mapstructure:"MAIL_API_URL"`
	// MailAPIKey is the bearer key for MailAPIURL.
	MailAPIKey string `mapstructure:"MAIL_API_KEY"`

	// AdminEmails is a comma-separated list of emails allowed to call admin routes (e.g. waitlist listing).
	AdminEmails string `mapstructure:"ADMIN_EMAILS"`
	// PolicyFile is an optional path to a Rego module replacing the built-in access policy.
	PolicyFile string `mapstructure:"POLICY_FILE"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables auth event publishing.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventsTopic is the Kafka topic for auth events.
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the events worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the events worker pushes to (worker only).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HEALTH_GRPC_ADDR", "")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MONGO_DATABASE", "synq")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_PUBLIC_KEY", "")
	v.SetDefault("JWT_REFRESH_PUBLIC_KEY", "")
	v.SetDefault("JWT_MASTER_SECRET", "")
	v.SetDefault("JWT_ISSUER", "synq-auth")
	v.SetDefault("JWT_AUDIENCE", "synq-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("MAGIC_LINK_BASE_URL", "http://localhost:3000/onboarding/auth/verify")
	v.SetDefault("MAGIC_LINK_TTL", "15m")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SAMESITE", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("MAIL_DRIVER", MailDriverLog)
	v.SetDefault("MAIL_FROM", "Synq <no-reply@synq.local>")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_API_URL", "")
	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("ADMIN_EMAILS", "")
	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_KAFKA_TOPIC", "synq-auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "synq-auth-events-worker")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.MailDriver = strings.ToLower(strings.TrimSpace(cfg.MailDriver))
	cfg.CookieSameSite = strings.ToLower(strings.TrimSpace(cfg.CookieSameSite))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("config: APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("config: DATABASE_DRIVER must be postgres, sqlite or mongo, got %q", c.DatabaseDriver)
	}
	if _, err := url.ParseRequestURI(c.MagicLinkBaseURL); err != nil {
		return fmt.Errorf("config: MAGIC_LINK_BASE_URL: %w", err)
	}

	switch c.CookieSameSite {
	case "", "lax", "strict":
	case "none":
		if !c.IsProduction() {
			return errors.New("config: COOKIE_SAMESITE=none requires APP_ENV=production (Secure cookies)")
		}
	default:
		return fmt.Errorf("config: COOKIE_SAMESITE must be lax, strict or none, got %q", c.CookieSameSite)
	}

	switch c.MailDriver {
	case MailDriverLog:
		if c.IsProduction() {
			return errors.New("config: MAIL_DRIVER=log must not be used when APP_ENV=production")
		}
	case MailDriverSMTP:
		if c.SMTPHost == "" {
			return errors.New("config: SMTP_HOST must be set when MAIL_DRIVER=smtp")
		}
	case MailDriverHTTP:
		if c.MailAPIURL == "" || c.MailAPIKey == "" {
			return errors.New("config: MAIL_API_URL and MAIL_API_KEY must be set when MAIL_DRIVER=http")
		}
	default:
		return fmt.Errorf("config: MAIL_DRIVER must be log, smtp or http, got %q", c.MailDriver)
	}

	explicit := c.JWTAccessSecret != "" || c.JWTRefreshSecret != ""
	if explicit && (c.JWTAccessSecret == "" || c.JWTRefreshSecret == "") {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set together")
	}
	if explicit && c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.IsProduction() && !explicit && c.JWTMasterSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET/JWT_REFRESH_SECRET or JWT_MASTER_SECRET must be set when APP_ENV=production")
	}
	return nil
}

// IsProduction reports whether APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// MagicLinkTTL parses MagicLinkTTLRaw as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) MagicLinkTTL() time.Duration {
	d, err := time.ParseDuration(c.MagicLinkTTLRaw)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// CORSOrigins returns the allowed CORS origins.
func (c *Config) CORSOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

// AdminEmailList returns the lower-cased admin emails.
func (c *Config) AdminEmailList() []string {
	if c == nil {
		return nil
	}
	out := splitList(c.AdminEmails)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
