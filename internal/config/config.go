// Package config loads the server configuration.
//
// Sources are layered, later ones winning:
//
//  1. an optional YAML file (CONFIG_PATH)
//  2. environment variables (a .env file is loaded into the environment by main)
//  3. built-in defaults for anything still unset
//
// Secrets (JWT keys, OAuth client secret, database URLs) are normally supplied
// through the environment only.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const DefaultProfilesCollection = "userprofiles"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	GitHub   GitHubConfig   `yaml:"github"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host        string   `yaml:"host" env:"HOST"`
	Port        int      `yaml:"port" env:"PORT"`
	BaseURL     string   `yaml:"base_url" env:"API_BASE_URL"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
}

// DatabaseConfig selects the relational store. Driver is "sqlite" (DSN is a
// file path or ":memory:") or "postgres" (DSN is a libpq connection string).
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN    string `yaml:"dsn" env:"DATABASE_URL"`
}

type MongoConfig struct {
	URI            string        `yaml:"uri" env:"MONGODB_URI"`
	Database       string        `yaml:"database" env:"MONGODB_DATABASE"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"MONGODB_CONNECT_TIMEOUT"`

	// ProfilesCollection defaults to "userprofiles", the name existing
	// deployments already store profiles under.
	ProfilesCollection string `yaml:"profiles_collection" env:"MONGODB_PROFILES_COLLECTION"`
}

type AuthConfig struct {
	JWTSecret        string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTRefreshSecret string   `yaml:"jwt_refresh_secret" env:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   Duration `yaml:"access_token_ttl" env:"JWT_EXPIRES_IN"`
	RefreshTokenTTL  Duration `yaml:"refresh_token_ttl" env:"JWT_REFRESH_EXPIRES_IN"`
	BcryptCost       int      `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

type StorageConfig struct {
	UploadDir     string `yaml:"upload_dir" env:"UPLOAD_DIR"`
	MaxFileSize   int64  `yaml:"max_file_size" env:"MAX_FILE_SIZE"`
	MaxAvatarSize int64  `yaml:"max_avatar_size" env:"MAX_AVATAR_SIZE"`
}

// GitHubConfig enables the GitHub OAuth routes when ClientID is set.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id" env:"GITHUB_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GITHUB_CLIENT_SECRET"`
	CallbackURL  string `yaml:"callback_url" env:"GITHUB_CALLBACK_URL"`
}

func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load builds a Config from the YAML file at path (skipped when path is
// empty) and the process environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{FuncMap: durationParsers}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.DSN == "" && c.Database.Driver == DriverSQLite {
		c.Database.DSN = "data/profile.db"
	}

	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "neoori"
	}
	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = 10 * time.Second
	}
	if c.Mongo.ProfilesCollection == "" {
		c.Mongo.ProfilesCollection = DefaultProfilesCollection
	}

	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = Duration(15 * time.Minute)
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = Duration(7 * 24 * time.Hour)
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}

	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}
	if c.Storage.MaxFileSize == 0 {
		c.Storage.MaxFileSize = 10 << 20
	}
	if c.Storage.MaxAvatarSize == 0 {
		c.Storage.MaxAvatarSize = 5 << 20
	}

	if c.GitHub.CallbackURL == "" {
		c.GitHub.CallbackURL = c.Server.BaseURL + "/api/auth/github/callback"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (JWT_SECRET) is required"))
	} else if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.Auth.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("auth.jwt_refresh_secret (JWT_REFRESH_SECRET) is required"))
	} else if len(c.Auth.JWTRefreshSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_refresh_secret must be at least 16 characters"))
	}
	if c.Auth.JWTSecret != "" && c.Auth.JWTSecret == c.Auth.JWTRefreshSecret {
		errs = append(errs, errors.New("auth.jwt_secret and auth.jwt_refresh_secret must differ"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between 4 and 31, got %d", c.Auth.BcryptCost))
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn (DATABASE_URL) is required"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Storage.MaxFileSize <= 0 || c.Storage.MaxAvatarSize <= 0 {
		errs = append(errs, errors.New("storage size limits must be positive"))
	}

	return errors.Join(errs...)
}

// durationParsers let every duration variable use the day and seconds
// forms accepted by ParseDuration.
var durationParsers = map[reflect.Type]env.ParserFunc{
	reflect.TypeOf(Duration(0)): func(v string) (interface{}, error) {
		d, err := ParseDuration(v)
		return Duration(d), err
	},
	reflect.TypeOf(time.Duration(0)): func(v string) (interface{}, error) {
		return ParseDuration(v)
	},
}
