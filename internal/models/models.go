package models

import (
	"time"
)

// Commit represents a resolved git commit. Commits are values and are never
// mutated after resolution.
type Commit struct {
	Hash string    `json:"hash" yaml:"hash" db:"commit_hash"`
	Date time.Time `json:"date" yaml:"date" db:"commit_date"`
}

// NewCommit builds a commit from its hash and committer timestamp
func NewCommit(hash string, date time.Time) Commit {
	return Commit{Hash: hash, Date: date}
}

// IsZero reports whether the commit is unresolved
func (c Commit) IsZero() bool {
	return c.Hash == ""
}

// Short returns the abbreviated hash used in log lines
func (c Commit) Short() string {
	if len(c.Hash) > 8 {
		return c.Hash[:8]
	}
	return c.Hash
}

// Release represents a version published by the issue tracker
type Release struct {
	ID   int       `json:"id" yaml:"id" db:"release_id"`
	Name string    `json:"name" yaml:"name" db:"release_name"`
	Date time.Time `json:"date" yaml:"date" db:"release_date"`
}

// Issue represents a fixed bug reported in the issue tracker
type Issue struct {
	Key                string    `json:"key" yaml:"key"`
	AffectedVersionIDs []int     `json:"affected_version_ids" yaml:"affected_version_ids"`
	FixedVersionIDs    []int     `json:"fixed_version_ids" yaml:"fixed_version_ids"`
	Created            time.Time `json:"created" yaml:"created"`
}

// HasAffectedVersions reports whether the reporter recorded affected versions
func (i Issue) HasAffectedVersions() bool {
	return len(i.AffectedVersionIDs) > 0
}
