package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_TYPE", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SessionDuration != 24*time.Hour {
		t.Errorf("SessionDuration = %v, want 24h", cfg.SessionDuration)
	}
	if cfg.ResetTokenTTL != time.Hour {
		t.Errorf("ResetTokenTTL = %v, want 1h", cfg.ResetTokenTTL)
	}
	if cfg.IsMongo() {
		t.Error("IsMongo() = true for sqlite backend")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DB_TYPE", "mongo")
	t.Setenv("SESSION_DURATION", "2h")
	t.Setenv("PORT", "9090")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionDuration != 2*time.Hour {
		t.Errorf("SessionDuration = %v, want 2h", cfg.SessionDuration)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if !cfg.IsMongo() {
		t.Error("IsMongo() = false for mongo backend")
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[1] != "127.0.0.1" {
		t.Errorf("TrustedProxies = %v", cfg.TrustedProxies)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Env:             "development",
			DatabaseType:    "sqlite",
			SessionDuration: time.Hour,
			ResetTokenTTL:   time.Hour,
			SweepInterval:   time.Hour,
			RateLimitRPM:    10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid sqlite", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.DatabaseType = "cassandra" }, wantErr: true},
		{name: "postgres without url", mutate: func(c *Config) { c.DatabaseType = "postgres" }, wantErr: true},
		{name: "mongo without uri", mutate: func(c *Config) { c.DatabaseType = "mongo" }, wantErr: true},
		{name: "zero session duration", mutate: func(c *Config) { c.SessionDuration = 0 }, wantErr: true},
		{name: "production without state secret", mutate: func(c *Config) { c.Env = "production" }, wantErr: true},
		{name: "production with state secret", mutate: func(c *Config) {
			c.Env = "production"
			c.StateSecret = "s3cr3t"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
