package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/policy"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/purge"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/scheduler"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the purge robot service.
// Environment variables are parsed from the BOT_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	BindAddress string `envconfig:"BIND_ADDRESS" default:""`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`

	// Storage: mongo, postgres, sqlite or memory
	DBDriver      string `envconfig:"DB_DRIVER" default:"mongo"`
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"robots"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/purgebot.db"`

	// Scheduling
	Schedule   string `envconfig:"SCHEDULE" default:"0 0 * * * *"`
	RunOnStart bool   `envconfig:"RUN_ON_START" default:"true"`

	// Atlassian directory
	OrganizationID string `envconfig:"ORGANIZATION_ID" default:""`
	AdminBaseURL   string `envconfig:"ADMIN_BASE_URL" default:"https://admin.atlassian.com"`
	SiteBaseURL    string `envconfig:"SITE_BASE_URL" default:""`

	// Email notifications; disabled when NotificationEmail is empty
	SMTPHost             string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort             int    `envconfig:"SMTP_PORT" default:"587"`
	NotificationEmail    string `envconfig:"NOTIFICATION_EMAIL" default:""`
	NotificationPassword string `envconfig:"NOTIFICATION_PASSWORD" default:""`

	// Object store for robot policy blobs; in-memory when S3AccessKey is empty
	S3Endpoint  string `envconfig:"S3_ENDPOINT" default:"sgp1.digitaloceanspaces.com"`
	S3Region    string `envconfig:"S3_REGION" default:"sgp1"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"atlassianbot"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:""`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"true"`

	// Purge lifecycle
	GraceDays           int     `envconfig:"GRACE_DAYS" default:"7"`
	AlertIntervalDays   int     `envconfig:"ALERT_INTERVAL_DAYS" default:"3"`
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.8"`
	CompareWorkers      int     `envconfig:"COMPARE_WORKERS" default:"4"`

	// Runtime
	MaxConcurrentRobots   int           `envconfig:"MAX_CONCURRENT_ROBOTS" default:"4"`
	CallTimeout           time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`
	RosterTimeout         time.Duration `envconfig:"ROSTER_TIMEOUT" default:"10m"`
	HealthIntervalSeconds int           `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
}

// ResolveDefaults validates the configuration. Any error here is fatal at startup.
func (c *Config) ResolveDefaults() error {
	allowedDB := map[string]bool{"mongo": true, "postgres": true, "sqlite": true, "memory": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when DB_DRIVER=postgres")
	}
	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=sqlite")
	}
	if _, err := scheduler.Parse(c.Schedule); err != nil {
		return err
	}
	if c.GraceDays <= 0 {
		return fmt.Errorf("GRACE_DAYS must be positive, got %d", c.GraceDays)
	}
	if c.AlertIntervalDays <= 0 {
		return fmt.Errorf("ALERT_INTERVAL_DAYS must be positive, got %d", c.AlertIntervalDays)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0,1], got %v", c.SimilarityThreshold)
	}
	if c.CompareWorkers <= 0 {
		c.CompareWorkers = 1
	}
	if c.MaxConcurrentRobots <= 0 {
		c.MaxConcurrentRobots = 1
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.RosterTimeout <= 0 {
		c.RosterTimeout = 10 * time.Minute
	}
	if c.HealthIntervalSeconds <= 0 {
		c.HealthIntervalSeconds = 30
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Example: BOT_DB_DRIVER, BOT_SCHEDULE, BOT_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("BOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("schedule", cfg.Schedule).
		Bool("run_on_start", cfg.RunOnStart).
		Str("admin_base_url", cfg.AdminBaseURL).
		Bool("notifications", cfg.NotificationsEnabled()).
		Bool("object_store", cfg.ObjectStoreEnabled()).
		Int("grace_days", cfg.GraceDays).
		Int("alert_interval_days", cfg.AlertIntervalDays).
		Float64("similarity_threshold", cfg.SimilarityThreshold).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:           EnvTesting,
		HTTPPort:              8080,
		DBDriver:              "memory",
		Schedule:              "@every 1m",
		AdminBaseURL:          "http://localhost",
		SiteBaseURL:           "http://localhost",
		S3Bucket:              "atlassianbot",
		GraceDays:             7,
		AlertIntervalDays:     3,
		SimilarityThreshold:   policy.DefaultSimilarityThreshold,
		CompareWorkers:        2,
		MaxConcurrentRobots:   2,
		CallTimeout:           5 * time.Second,
		RosterTimeout:         time.Minute,
		HealthIntervalSeconds: 1,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// NotificationsEnabled reports whether SMTP credentials are configured.
func (c *Config) NotificationsEnabled() bool { return c.NotificationEmail != "" }

// ObjectStoreEnabled reports whether S3 credentials are configured.
func (c *Config) ObjectStoreEnabled() bool { return c.S3AccessKey != "" && c.S3SecretKey != "" }

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.HTTPPort)
}

// PurgeRules converts the lifecycle windows.
func (c *Config) PurgeRules() purge.Rules {
	return purge.Rules{
		GraceWindow:   time.Duration(c.GraceDays) * model.Day,
		AlertInterval: time.Duration(c.AlertIntervalDays) * model.Day,
	}
}

// PolicyOptions converts the evaluator settings.
func (c *Config) PolicyOptions() policy.Options {
	return policy.Options{SimilarityThreshold: c.SimilarityThreshold, Workers: c.CompareWorkers}
}

// OrchestratorConfig assembles everything the tick orchestrator needs.
func (c *Config) OrchestratorConfig() purge.Config {
	return purge.Config{
		Rules:               c.PurgeRules(),
		Policy:              c.PolicyOptions(),
		MaxConcurrentRobots: c.MaxConcurrentRobots,
		CallTimeout:         c.CallTimeout,
		RosterTimeout:       c.RosterTimeout,
	}
}
