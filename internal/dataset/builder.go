package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/rohankatakam/defectset/internal/vcs"
	"github.com/sirupsen/logrus"
)

// Strategy selects how a release is mapped to its commit
type Strategy string

const (
	// StrategyDate takes the last commit at or before the release date
	StrategyDate Strategy = "date"
	// StrategyTag resolves the release name as a tag
	StrategyTag Strategy = "tag"
	// StrategyPattern takes the last commit whose message matches the release name
	StrategyPattern Strategy = "pattern"
)

// ParseStrategy validates a strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyDate:
		return StrategyDate, nil
	case StrategyTag:
		return StrategyTag, nil
	case StrategyPattern:
		return StrategyPattern, nil
	default:
		return "", errors.ValidationErrorf("unknown resolve strategy %q (want date, tag or pattern)", s)
	}
}

// Sink receives the measured files of each release
type Sink interface {
	WriteRelease(ctx context.Context, result *models.ReleaseMetrics) error
}

// BuilderConfig holds configuration for dataset builds
type BuilderConfig struct {
	Workers  int      // Concurrent metric workers (default: NumCPU)
	Strategy Strategy // Release to commit mapping (default: date)
	// Extensions keeps only paths with one of these suffixes; empty keeps all
	Extensions []string
}

// DefaultBuilderConfig returns default configuration
func DefaultBuilderConfig() *BuilderConfig {
	return &BuilderConfig{
		Strategy: StrategyDate,
	}
}

// Report summarizes one release of a build
type Report struct {
	Release    models.Release
	Commit     models.Commit
	Skipped    bool
	SkipReason string
	FileCount  int
	Measured   int
	Failures   []models.Failure
	Duration   time.Duration
}

// Builder coordinates commit resolution, file enumeration, the worker pool
// and the sinks for a sequence of releases
type Builder struct {
	engine vcs.VersionControlSystem
	config *BuilderConfig
	sinks  []Sink
	logger *logrus.Logger
}

// NewBuilder creates a new dataset builder
func NewBuilder(engine vcs.VersionControlSystem, config *BuilderConfig, logger *logrus.Logger, sinks ...Sink) *Builder {
	if config == nil {
		config = DefaultBuilderConfig()
	}
	if config.Strategy == "" {
		config.Strategy = StrategyDate
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Builder{
		engine: engine,
		config: config,
		sinks:  sinks,
		logger: logger,
	}
}

// Build measures every release in order. Releases whose commit cannot be
// resolved are reported as skipped. The first fatal error stops the build and
// is returned with the reports gathered so far.
func (b *Builder) Build(ctx context.Context, releases []models.Release) ([]*Report, error) {
	startTime := time.Now()
	b.logger.WithFields(logrus.Fields{
		"releases": len(releases),
		"strategy": string(b.config.Strategy),
	}).Info("Starting dataset build")

	reports := make([]*Report, 0, len(releases))
	for _, release := range releases {
		report, err := b.BuildRelease(ctx, release)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, fmt.Errorf("release %s: %w", release.Name, err)
		}
	}

	var measured, failed, skipped int
	for _, r := range reports {
		measured += r.Measured
		failed += len(r.Failures)
		if r.Skipped {
			skipped++
		}
	}
	b.logger.WithFields(logrus.Fields{
		"duration": time.Since(startTime).String(),
		"releases": len(reports),
		"skipped":  skipped,
		"measured": measured,
		"failed":   failed,
	}).Info("Dataset build completed")

	return reports, nil
}

// BuildRelease resolves, measures and stores a single release
func (b *Builder) BuildRelease(ctx context.Context, release models.Release) (*Report, error) {
	startTime := time.Now()
	report := &Report{Release: release}

	commit, err := b.ResolveCommit(ctx, release)
	if err != nil {
		if errors.IsNotFound(err) {
			b.logger.WithFields(logrus.Fields{
				"release":  release.Name,
				"strategy": string(b.config.Strategy),
			}).WithError(err).Warn("Skipping release without commit")
			report.Skipped = true
			report.SkipReason = err.Error()
			report.Duration = time.Since(startTime)
			return report, nil
		}
		return nil, err
	}
	report.Commit = commit

	files, err := b.engine.Files(ctx, commit.Hash)
	if err != nil {
		return nil, err
	}
	selected := b.selectFiles(files)
	report.FileCount = len(selected)

	b.logger.WithFields(logrus.Fields{
		"release": release.Name,
		"commit":  commit.Short(),
		"files":   len(selected),
	}).Info("Measuring release")

	pool := NewWorkerPool(b.engine, b.config.Workers, b.logger)
	result, err := pool.Run(ctx, NewFileQueue(selected...), commit)
	if err != nil {
		return nil, err
	}
	report.Measured = len(result.Completed)
	report.Failures = result.Failures

	out := &models.ReleaseMetrics{
		Release:  release,
		Commit:   commit,
		Files:    result.Completed,
		Failures: result.Failures,
		Finished: time.Now(),
	}
	for _, sink := range b.sinks {
		if err := sink.WriteRelease(ctx, out); err != nil {
			return nil, fmt.Errorf("write release %s: %w", release.Name, err)
		}
	}

	report.Duration = time.Since(startTime)
	b.logger.WithFields(logrus.Fields{
		"release":  release.Name,
		"measured": report.Measured,
		"failed":   len(report.Failures),
		"duration": report.Duration.String(),
	}).Info("Release measured")
	return report, nil
}

// ResolveCommit maps a release to its commit with the configured strategy
func (b *Builder) ResolveCommit(ctx context.Context, release models.Release) (models.Commit, error) {
	switch b.config.Strategy {
	case StrategyTag:
		return b.engine.CommitByTag(ctx, release.Name)
	case StrategyPattern:
		return b.engine.CommitByLogPattern(ctx, release.Name)
	case StrategyDate:
		if release.Date.IsZero() {
			return models.Commit{}, errors.NotFoundf("release %s has no date", release.Name)
		}
		return b.engine.CommitByDate(ctx, release.Date)
	default:
		return models.Commit{}, errors.ValidationErrorf("unknown resolve strategy %q", b.config.Strategy)
	}
}

// selectFiles applies the extension filter and orders files by path
func (b *Builder) selectFiles(files map[string]*models.File) []*models.File {
	selected := make([]*models.File, 0, len(files))
	for name, f := range files {
		if b.keep(name) {
			selected = append(selected, f)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Name < selected[j].Name
	})
	return selected
}

func (b *Builder) keep(name string) bool {
	if len(b.config.Extensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range b.config.Extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
