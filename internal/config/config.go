package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Env        string
	ServerPort string

	// Storage
	DatabaseType   string // mongo, sqlite, postgres, mysql
	MongoURI       string
	MongoDatabase  string
	DatabasePath   string
	DatabaseURL    string
	MigrationsPath string

	// Sessions and reset tokens
	SessionDuration      time.Duration
	ResetTokenTTL        time.Duration
	SweepInterval        time.Duration
	ResetTokenInResponse bool

	// OAuth
	StateSecret          string
	OAuthRedirectBaseURL string
	GoogleClientID       string
	GoogleClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string
	AppleClientID        string
	AppleClientSecret    string

	// Email (Amazon SES)
	AWSRegion    string
	FromEmail    string
	FromName     string
	AppBaseURL   string
	EmailDebug   bool
	RateLimitRPM int
	// TrustedProxies lists CIDRs whose X-Forwarded-For is believed
	TrustedProxies []string
}

// Load reads configuration from an optional .env file and environment variables
// with sensible defaults
func Load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env:                  v.GetString("APP_ENV"),
		ServerPort:           v.GetString("PORT"),
		DatabaseType:         strings.ToLower(v.GetString("DB_TYPE")),
		MongoURI:             v.GetString("MONGODB_URI"),
		MongoDatabase:        v.GetString("MONGODB_DATABASE"),
		DatabasePath:         v.GetString("DB_PATH"),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		MigrationsPath:       v.GetString("MIGRATIONS_PATH"),
		SessionDuration:      v.GetDuration("SESSION_DURATION"),
		ResetTokenTTL:        v.GetDuration("RESET_TOKEN_TTL"),
		SweepInterval:        v.GetDuration("SWEEP_INTERVAL"),
		ResetTokenInResponse: v.GetBool("RESET_TOKEN_IN_RESPONSE"),
		StateSecret:          v.GetString("STATE_SECRET"),
		OAuthRedirectBaseURL: v.GetString("OAUTH_REDIRECT_BASE_URL"),
		GoogleClientID:       v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   v.GetString("GOOGLE_CLIENT_SECRET"),
		FacebookClientID:     v.GetString("FACEBOOK_CLIENT_ID"),
		FacebookClientSecret: v.GetString("FACEBOOK_CLIENT_SECRET"),
		AppleClientID:        v.GetString("APPLE_CLIENT_ID"),
		AppleClientSecret:    v.GetString("APPLE_CLIENT_SECRET"),
		AWSRegion:            v.GetString("AWS_REGION"),
		FromEmail:            v.GetString("SES_FROM_EMAIL"),
		FromName:             v.GetString("SES_FROM_NAME"),
		AppBaseURL:           v.GetString("APP_BASE_URL"),
		EmailDebug:           v.GetBool("EMAIL_DEBUG"),
		RateLimitRPM:         v.GetInt("RATE_LIMIT_PER_MINUTE"),
		TrustedProxies:       splitList(v.GetString("TRUSTED_PROXIES")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("DB_TYPE", "mongo")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017/")
	v.SetDefault("MONGODB_DATABASE", "student_teacher_db")
	v.SetDefault("DB_PATH", "./classroom.db")
	v.SetDefault("MIGRATIONS_PATH", "./migrations")
	v.SetDefault("SESSION_DURATION", 24*time.Hour)
	v.SetDefault("RESET_TOKEN_TTL", time.Hour)
	v.SetDefault("SWEEP_INTERVAL", time.Hour)
	v.SetDefault("RESET_TOKEN_IN_RESPONSE", false)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SES_FROM_NAME", "Classroom")
	v.SetDefault("APP_BASE_URL", "http://localhost:5000")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 20)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks that the loaded values are usable together
func (c *Config) Validate() error {
	switch c.DatabaseType {
	case "mongo", "mongodb":
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required when DB_TYPE=mongo")
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_TYPE=%s", c.DatabaseType)
		}
	case "sqlite", "sqlite3", "":
	default:
		return fmt.Errorf("unsupported DB_TYPE: %s", c.DatabaseType)
	}

	if c.SessionDuration <= 0 {
		return errors.New("SESSION_DURATION must be positive")
	}
	if c.ResetTokenTTL <= 0 {
		return errors.New("RESET_TOKEN_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if c.RateLimitRPM <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.StateSecret == "" && c.Env == "production" {
		return errors.New("STATE_SECRET is required in production")
	}
	return nil
}

// IsMongo reports whether the document store backend is selected
func (c *Config) IsMongo() bool {
	return c.DatabaseType == "mongo" || c.DatabaseType == "mongodb"
}

// IsDevelopment reports whether the app runs with development defaults
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
