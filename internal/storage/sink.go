package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/sirupsen/logrus"
)

// Config selects and configures a store
type Config struct {
	Type        string // "sqlite" or "postgres"
	LocalPath   string
	PostgresDSN string
}

// Open creates the store described by cfg
func Open(cfg Config, logger *logrus.Logger) (*SQLStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		if cfg.LocalPath == "" {
			return nil, errors.ConfigError("storage.local_path is required for sqlite")
		}
		return NewSQLiteStore(cfg.LocalPath, logger)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.ConfigError("storage.postgres_dsn is required for postgres")
		}
		return NewPostgresStore(cfg.PostgresDSN, logger)
	default:
		return nil, errors.ConfigErrorf("unknown storage type %q", cfg.Type)
	}
}

// NewRun creates an unfinished run with a fresh identifier
func NewRun(repository, strategy string) *Run {
	return &Run{
		ID:         uuid.NewString(),
		Repository: repository,
		Strategy:   strategy,
		StartedAt:  time.Now().UTC(),
	}
}

// Sink writes each measured release of a run to a Store
type Sink struct {
	store Store
	run   *Run
}

// NewSink saves run and returns a sink bound to it
func NewSink(ctx context.Context, store Store, run *Run) (*Sink, error) {
	if err := store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return &Sink{store: store, run: run}, nil
}

// RunID returns the identifier rows are written under
func (s *Sink) RunID() string {
	return s.run.ID
}

// WriteRelease stores the release, its file metrics and its failures
func (s *Sink) WriteRelease(ctx context.Context, result *models.ReleaseMetrics) error {
	record := &ReleaseRecord{
		RunID:      s.run.ID,
		ReleaseID:  result.Release.ID,
		Name:       result.Release.Name,
		Date:       result.Release.Date,
		CommitHash: result.Commit.Hash,
		CommitDate: result.Commit.Date,
		FileCount:  len(result.Files) + len(result.Failures),
	}
	if err := s.store.SaveRelease(ctx, record); err != nil {
		return err
	}
	if err := s.store.SaveFileMetrics(ctx, s.run.ID, result.Release.ID, result.Files); err != nil {
		return err
	}
	return s.store.SaveFailures(ctx, s.run.ID, result.Release.ID, result.Failures)
}

// Finish marks the run as completed
func (s *Sink) Finish(ctx context.Context) error {
	now := time.Now().UTC()
	s.run.FinishedAt = &now
	return s.store.SaveRun(ctx, s.run)
}
