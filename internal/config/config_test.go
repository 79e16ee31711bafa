package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	testAccessSecret  = "access-secret-at-least-16-chars"
	testRefreshSecret = "refresh-secret-at-least-16-chars"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", testAccessSecret)
	t.Setenv("JWT_REFRESH_SECRET", testRefreshSecret)
}

func TestLoad_DefaultsFromEnvOnly(t *testing.T) {
	setSecrets(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "http://localhost:3000" {
		t.Errorf("Server.BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Auth.AccessTokenTTL.Std() != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.RefreshTokenTTL.Std() != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 168h", cfg.Auth.RefreshTokenTTL)
	}
	if cfg.Storage.MaxFileSize != 10<<20 {
		t.Errorf("MaxFileSize = %d, want 10MB", cfg.Storage.MaxFileSize)
	}
	if cfg.Storage.MaxAvatarSize != 5<<20 {
		t.Errorf("MaxAvatarSize = %d, want 5MB", cfg.Storage.MaxAvatarSize)
	}
	if cfg.Mongo.ProfilesCollection != "userprofiles" {
		t.Errorf("Mongo.ProfilesCollection = %q, want userprofiles", cfg.Mongo.ProfilesCollection)
	}
	if cfg.GitHub.Enabled() {
		t.Error("GitHub should be disabled without client credentials")
	}
	if cfg.GitHub.CallbackURL != "http://localhost:3000/api/auth/github/callback" {
		t.Errorf("GitHub.CallbackURL = %q", cfg.GitHub.CallbackURL)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	setSecrets(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
server:
  port: 8081
  base_url: "https://api.example.com/"
database:
  driver: postgres
  dsn: "host=db user=app"
auth:
  access_token_ttl: 30m
mongo:
  database: profiles
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("MONGODB_PROFILES_COLLECTION", "profiles_v2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "https://api.example.com" {
		t.Errorf("Server.BaseURL = %q, want trailing slash trimmed", cfg.Server.BaseURL)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Auth.AccessTokenTTL.Std() != 30*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 30m from YAML", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Mongo.Database != "profiles" {
		t.Errorf("Mongo.Database = %q, want profiles", cfg.Mongo.Database)
	}
	if cfg.Mongo.ProfilesCollection != "profiles_v2" {
		t.Errorf("Mongo.ProfilesCollection = %q, want env override", cfg.Mongo.ProfilesCollection)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.Server.CORSOrigins)
	}
}

func TestLoad_DayDurations(t *testing.T) {
	setSecrets(t)
	t.Setenv("JWT_EXPIRES_IN", "900")
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "7d")
	t.Setenv("MONGODB_CONNECT_TIMEOUT", "30")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Auth.AccessTokenTTL.Std(); got != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 15m", got)
	}
	if got := cfg.Auth.RefreshTokenTTL.Std(); got != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 168h", got)
	}
	if cfg.Mongo.ConnectTimeout != 30*time.Second {
		t.Errorf("Mongo.ConnectTimeout = %v, want 30s", cfg.Mongo.ConnectTimeout)
	}
}

func TestLoad_DayDurationsFromYAML(t *testing.T) {
	setSecrets(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  refresh_token_ttl: 30d\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Auth.RefreshTokenTTL.Std(); got != 30*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 720h", got)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	setSecrets(t)
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "a week")

	if _, err := Load(""); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"15m", 15 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"0d", 0, false},
		{"3600", time.Hour, false},
		{" 2d ", 48 * time.Hour, false},
		{"", 0, false},
		{"1.5d", 0, true},
		{"-1d", 0, true},
		{"-60", 0, true},
		{"week", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing access secret",
			env:  map[string]string{"JWT_REFRESH_SECRET": testRefreshSecret},
		},
		{
			name: "missing refresh secret",
			env:  map[string]string{"JWT_SECRET": testAccessSecret},
		},
		{
			name: "short secret",
			env:  map[string]string{"JWT_SECRET": "short", "JWT_REFRESH_SECRET": testRefreshSecret},
		},
		{
			name: "identical secrets",
			env:  map[string]string{"JWT_SECRET": testAccessSecret, "JWT_REFRESH_SECRET": testAccessSecret},
		},
		{
			name: "unknown driver",
			env: map[string]string{
				"JWT_SECRET":         testAccessSecret,
				"JWT_REFRESH_SECRET": testRefreshSecret,
				"DATABASE_DRIVER":    "mysql",
			},
		},
		{
			name: "postgres without dsn",
			env: map[string]string{
				"JWT_SECRET":         testAccessSecret,
				"JWT_REFRESH_SECRET": testRefreshSecret,
				"DATABASE_DRIVER":    "postgres",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			t.Setenv("JWT_REFRESH_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(""); err == nil {
				t.Fatal("Load() should have returned a validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	setSecrets(t)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() should fail when the config file does not exist")
	}
}
