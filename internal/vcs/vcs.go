// Package vcs defines the capability interface the dataset builder uses to
// query a version-control backend.
package vcs

import (
	"context"
	"time"

	"github.com/rohankatakam/defectset/internal/models"
)

// VersionControlSystem abstracts the history queries needed to compute
// per-file evolution metrics.
//
// Commit lookups return an error matching errors.ErrResolution when nothing
// matches; callers may skip that release.
type VersionControlSystem interface {
	// CommitByTag resolves a tag, falling back to the first listed tag that
	// contains the given name.
	CommitByTag(ctx context.Context, tag string) (models.Commit, error)
	// CommitByDate returns the most recent commit at or before date.
	CommitByDate(ctx context.Context, date time.Time) (models.Commit, error)
	// CommitByLogPattern returns the most recent commit whose message matches pattern.
	CommitByLogPattern(ctx context.Context, pattern string) (models.Commit, error)

	// Files returns every file in the tree of the commit, keyed by path.
	Files(ctx context.Context, commitHash string) (map[string]*models.File, error)
	// ChangedFiles lists the paths touched by exactly that commit.
	ChangedFiles(ctx context.Context, commitHash string) ([]string, error)

	// ComputeFileMetrics populates every metric of file as of release. Any
	// previous values are discarded first; on error the file is left empty.
	ComputeFileMetrics(ctx context.Context, file *models.File, release models.Commit) error
}
