package storage

import (
	"context"
	"time"

	"github.com/rohankatakam/defectset/internal/models"
)

// Run identifies one dataset build
type Run struct {
	ID         string     `db:"id"`
	Repository string     `db:"repository"`
	Strategy   string     `db:"strategy"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// ReleaseRecord is a measured release and the commit it resolved to
type ReleaseRecord struct {
	RunID      string    `db:"run_id"`
	ReleaseID  int       `db:"release_id"`
	Name       string    `db:"name"`
	Date       time.Time `db:"release_date"`
	CommitHash string    `db:"commit_hash"`
	CommitDate time.Time `db:"commit_date"`
	FileCount  int       `db:"file_count"`
}

// FailureRecord is a file whose metrics could not be computed
type FailureRecord struct {
	RunID     string    `db:"run_id"`
	ReleaseID int       `db:"release_id"`
	Path      string    `db:"path"`
	ErrorType string    `db:"error_type"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

// Store defines the storage interface
type Store interface {
	// Run operations. SaveRun upserts, so it also records completion.
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)

	// Release operations
	SaveRelease(ctx context.Context, record *ReleaseRecord) error
	GetReleases(ctx context.Context, runID string) ([]*ReleaseRecord, error)

	// Metric operations. Rows are keyed by (run, release, path).
	SaveFileMetrics(ctx context.Context, runID string, releaseID int, files []*models.File) error
	GetFileMetrics(ctx context.Context, runID string, releaseID int) ([]*models.File, error)

	// Failure operations
	SaveFailures(ctx context.Context, runID string, releaseID int, failures []models.Failure) error
	GetFailures(ctx context.Context, runID string, releaseID int) ([]*FailureRecord, error)

	// Close connection
	Close() error
}
