package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/sirupsen/logrus"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextBuild - defectset build needs the repository, a release source and a sink
	ValidationContextBuild ValidationContext = "build"
	// ValidationContextQuery - single-file and resolve commands need only the repository
	ValidationContextQuery ValidationContext = "query"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

var (
	validStrategies = []string{"date", "tag", "pattern"}
	validFormats    = []string{"auto", "text", "json"}
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Err converts a failed result into a config error; nil when valid
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(strings.TrimSpace(vr.Error()))
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateRepository(result)
	c.validateEngine(result)
	c.validateLog(result)

	switch ctx {
	case ValidationContextBuild:
		c.validateReleaseSource(result, true)
		c.validateSinks(result)
	case ValidationContextAll:
		c.validateReleaseSource(result, false)
		c.validateSinks(result)
	}

	return result
}

func (c *Config) validateRepository(result *ValidationResult) {
	if c.Repository.Path == "" {
		result.AddError("repository.path is required")
		return
	}
	info, err := os.Stat(c.Repository.Path)
	if err != nil {
		result.AddError("repository.path %s is not accessible: %v", c.Repository.Path, err)
		return
	}
	if !info.IsDir() {
		result.AddError("repository.path %s is not a directory", c.Repository.Path)
	}
	if c.Repository.GitBinary == "" {
		result.AddError("repository.git_binary is required")
	}
}

func (c *Config) validateEngine(result *ValidationResult) {
	if c.Engine.Workers < 0 {
		result.AddError("engine.workers must be >= 0, got %d", c.Engine.Workers)
	}
	if c.Engine.CallTimeout < 0 {
		result.AddError("engine.call_timeout must be >= 0, got %s", c.Engine.CallTimeout)
	}
	if c.Engine.CallTimeout == 0 {
		result.AddWarning("engine.call_timeout is 0; a stalled git call blocks its worker indefinitely")
	}
	if !contains(validStrategies, strings.ToLower(c.Engine.ResolveStrategy)) {
		result.AddError("engine.resolve_strategy must be one of %s, got %q", strings.Join(validStrategies, ", "), c.Engine.ResolveStrategy)
	}
	for _, ext := range c.Engine.Extensions {
		if !strings.HasPrefix(ext, ".") {
			result.AddWarning("engine.extensions entry %q has no leading dot; it matches any path ending in it", ext)
		}
	}
}

func (c *Config) validateReleaseSource(result *ValidationResult, required bool) {
	if c.Releases.File != "" {
		if _, err := os.Stat(c.Releases.File); err != nil {
			result.AddError("releases.file %s is not accessible: %v", c.Releases.File, err)
		}
		return
	}

	if c.Jira.Project == "" {
		if required {
			result.AddError("either releases.file or jira.project is required")
		}
		return
	}
	if u, err := url.Parse(c.Jira.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError("jira.base_url %q is not an absolute URL", c.Jira.BaseURL)
	}
	if c.Jira.RateLimit <= 0 {
		result.AddError("jira.rate_limit must be > 0")
	}
	if c.Jira.PageSize <= 0 {
		result.AddError("jira.page_size must be > 0")
	}
	if c.Jira.Token == "" {
		result.AddWarning("no Jira token configured; anonymous access may be rate limited")
	}
}

func (c *Config) validateSinks(result *ValidationResult) {
	if !c.Storage.Enabled && !c.Export.Enabled {
		result.AddWarning("storage and export are both disabled; metrics will not be kept")
	}
	if c.Storage.Enabled {
		switch c.Storage.Type {
		case "sqlite":
			if c.Storage.LocalPath == "" {
				result.AddError("storage.local_path is required for sqlite")
			}
		case "postgres":
			if c.Storage.PostgresDSN == "" {
				result.AddError("POSTGRES_DSN is required for postgres storage")
			} else if !strings.HasPrefix(c.Storage.PostgresDSN, "postgres://") && !strings.HasPrefix(c.Storage.PostgresDSN, "postgresql://") {
				result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
			}
		default:
			result.AddError("storage.type must be sqlite or postgres, got %q", c.Storage.Type)
		}
	}
	if c.Export.Enabled && c.Export.Directory == "" {
		result.AddError("export.directory is required when export is enabled")
	}
}

func (c *Config) validateLog(result *ValidationResult) {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result.AddError("log.level %q is invalid", c.Log.Level)
	}
	if !contains(validFormats, c.Log.Format) {
		result.AddError("log.format must be one of %s, got %q", strings.Join(validFormats, ", "), c.Log.Format)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
