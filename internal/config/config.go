package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the workspace configuration file.
const FileName = "recon.yaml"

// Database drivers understood by the SQL store.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the top-level recon.yaml configuration.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Git       GitConfig       `yaml:"git"`
}

// WorkspaceConfig identifies the workspace and the acting user.
type WorkspaceConfig struct {
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
}

// DatabaseConfig selects the transaction store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`    // file path for sqlite, URL for postgres
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// GitConfig controls git integration of the workspace.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a recon.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// LoadWorkspace reads <dir>/recon.yaml, applies <dir>/.env and the process
// environment on top, and resolves a relative sqlite path against dir.
func LoadWorkspace(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}

	// Existing process variables win over .env, as with godotenv.Load.
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)

	if cfg.Database.Driver == DriverSQLite && cfg.Database.DSN != "" && !filepath.IsAbs(cfg.Database.DSN) {
		cfg.Database.DSN = filepath.Join(dir, cfg.Database.DSN)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables.
// RECON_DATABASE_URL (or DATABASE_URL) switches the store to postgres.
func (c *Config) ApplyEnv(getenv func(string) string) {
	url := getenv("RECON_DATABASE_URL")
	if url == "" {
		url = getenv("DATABASE_URL")
	}
	if url != "" {
		c.Database.Driver = DriverPostgres
		c.Database.DSN = url
	}
	if lvl := getenv("RECON_LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
	if owner := getenv("RECON_OWNER"); owner != "" {
		c.Workspace.Owner = owner
	}
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default(name, owner string) *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Name:  name,
			Owner: owner,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "recon.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Recon",
			AuthorEmail: "recon@cleared.dev",
		},
	}
}
