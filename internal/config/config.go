package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable viper binds
const EnvPrefix = "DEFECTSET"

// Config holds all configuration settings
type Config struct {
	// Repository under analysis
	Repository RepositoryConfig `mapstructure:"repository" yaml:"repository"`

	// Metric engine and worker pool settings
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// CSV export settings
	Export ExportConfig `mapstructure:"export" yaml:"export"`

	// Jira configuration
	Jira JiraConfig `mapstructure:"jira" yaml:"jira"`

	// Static release list, used instead of Jira when set
	Releases ReleasesConfig `mapstructure:"releases" yaml:"releases"`

	// Logging settings
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

type RepositoryConfig struct {
	Path      string `mapstructure:"path" yaml:"path"`
	GitBinary string `mapstructure:"git_binary" yaml:"git_binary"`
}

type EngineConfig struct {
	Workers         int           `mapstructure:"workers" yaml:"workers"`                   // 0 = one per CPU
	CallTimeout     time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`         // per git invocation, 0 = none
	SerializeCalls  bool          `mapstructure:"serialize_calls" yaml:"serialize_calls"`   // run git invocations one at a time
	ResolveStrategy string        `mapstructure:"resolve_strategy" yaml:"resolve_strategy"` // "date", "tag", "pattern"
	Extensions      []string      `mapstructure:"extensions" yaml:"extensions"`             // e.g. [".java"]; empty = all files
}

type StorageConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Type        string `mapstructure:"type" yaml:"type"` // "postgres", "sqlite"
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	LocalPath   string `mapstructure:"local_path" yaml:"local_path"`
}

type ExportConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type JiraConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Project   string        `mapstructure:"project" yaml:"project"`
	Token     string        `mapstructure:"token" yaml:"token"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	PageSize  int           `mapstructure:"page_size" yaml:"page_size"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ReleasesConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // auto, text, json
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Repository: RepositoryConfig{
			Path:      ".",
			GitBinary: "git",
		},
		Engine: EngineConfig{
			Workers:         0,
			CallTimeout:     2 * time.Minute,
			ResolveStrategy: "date",
		},
		Storage: StorageConfig{
			Enabled:   true,
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".defectset", "defectset.db"),
		},
		Export: ExportConfig{
			Enabled:   true,
			Directory: "output",
		},
		Jira: JiraConfig{
			BaseURL:   "https://issues.apache.org/jira",
			RateLimit: 5,
			PageSize:  1000,
			Timeout:   30 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// defaults flattens Default() into viper keys so AutomaticEnv can bind
// nested settings (DEFECTSET_ENGINE_WORKERS -> engine.workers)
func defaults(cfg *Config) map[string]interface{} {
	return map[string]interface{}{
		"repository.path":         cfg.Repository.Path,
		"repository.git_binary":   cfg.Repository.GitBinary,
		"engine.workers":          cfg.Engine.Workers,
		"engine.call_timeout":     cfg.Engine.CallTimeout,
		"engine.serialize_calls":  cfg.Engine.SerializeCalls,
		"engine.resolve_strategy": cfg.Engine.ResolveStrategy,
		"engine.extensions":       cfg.Engine.Extensions,
		"storage.enabled":         cfg.Storage.Enabled,
		"storage.type":            cfg.Storage.Type,
		"storage.postgres_dsn":    cfg.Storage.PostgresDSN,
		"storage.local_path":      cfg.Storage.LocalPath,
		"export.enabled":          cfg.Export.Enabled,
		"export.directory":        cfg.Export.Directory,
		"jira.base_url":           cfg.Jira.BaseURL,
		"jira.project":            cfg.Jira.Project,
		"jira.token":              cfg.Jira.Token,
		"jira.rate_limit":         cfg.Jira.RateLimit,
		"jira.page_size":          cfg.Jira.PageSize,
		"jira.timeout":            cfg.Jira.Timeout,
		"releases.file":           cfg.Releases.File,
		"log.level":               cfg.Log.Level,
		"log.format":              cfg.Log.Format,
		"log.file":                cfg.Log.File,
		"log.max_size_mb":         cfg.Log.MaxSizeMB,
		"log.max_backups":         cfg.Log.MaxBackups,
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	for key, value := range defaults(cfg) {
		v.SetDefault(key, value)
	}

	// Load from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".defectset")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".defectset"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg, NewKeyringManager(nil))

	cfg.Repository.Path = expandPath(cfg.Repository.Path)
	cfg.Storage.LocalPath = expandPath(cfg.Storage.LocalPath)
	cfg.Export.Directory = expandPath(cfg.Export.Directory)
	cfg.Releases.File = expandPath(cfg.Releases.File)
	cfg.Log.File = expandPath(cfg.Log.File)

	return cfg, nil
}

// applyEnvOverrides applies the unprefixed environment variables shared with
// other tools. The Jira token resolves env var, then keychain, then file.
func applyEnvOverrides(cfg *Config, km *KeyringManager) {
	// Jira configuration
	// Precedence: 1. Env var (highest) 2. Keychain 3. Config file (lowest)
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		cfg.Jira.Token = token
	} else if km != nil && km.IsAvailable() {
		if keychainToken, err := km.GetJiraToken(); err == nil && keychainToken != "" {
			cfg.Jira.Token = keychainToken
		}
	}
	cfg.Jira.BaseURL = GetString("JIRA_BASE_URL", cfg.Jira.BaseURL)
	cfg.Jira.Project = GetString("JIRA_PROJECT", cfg.Jira.Project)

	// Storage configuration
	cfg.Storage.Type = GetString("STORAGE_TYPE", cfg.Storage.Type)
	cfg.Storage.PostgresDSN = GetString("POSTGRES_DSN", cfg.Storage.PostgresDSN)
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	// Engine configuration
	cfg.Engine.Workers = GetInt("DEFECTSET_WORKERS", cfg.Engine.Workers)
	cfg.Repository.GitBinary = GetString("GIT_BINARY", cfg.Repository.GitBinary)

	// Logging configuration
	cfg.Log.Level = GetString("LOG_LEVEL", cfg.Log.Level)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	// Secrets stay in the environment or the keychain
	saved := *c
	saved.Jira.Token = ""
	for key, value := range defaults(&saved) {
		v.Set(key, value)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
