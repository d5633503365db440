package main

import (
	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/its"
	"github.com/rohankatakam/defectset/internal/its/jira"
)

// openTracker returns the static release file when one is configured,
// otherwise the Jira project
func openTracker() (its.Tracker, error) {
	if cfg.Releases.File != "" {
		logger.WithField("file", cfg.Releases.File).Debug("Using release file")
		return its.LoadFile(cfg.Releases.File)
	}
	if cfg.Jira.Project == "" {
		return nil, errors.ConfigError("no release source: set releases.file or jira.project")
	}
	return jira.NewClient(jira.Config{
		BaseURL:   cfg.Jira.BaseURL,
		Project:   cfg.Jira.Project,
		Token:     cfg.Jira.Token,
		RateLimit: cfg.Jira.RateLimit,
		PageSize:  cfg.Jira.PageSize,
		Timeout:   cfg.Jira.Timeout,
	}, logger.Logger)
}
