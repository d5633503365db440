package models

import "time"

// Failure records a file whose metrics could not be computed for a release
type Failure struct {
	Path string `json:"path" yaml:"path"`
	Err  error  `json:"-" yaml:"-"`
}

// Message returns the failure text, or "" when no error is attached
func (f Failure) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// ReleaseMetrics is the outcome of measuring every file at one release commit
type ReleaseMetrics struct {
	Release  Release   `json:"release" yaml:"release"`
	Commit   Commit    `json:"commit" yaml:"commit"`
	Files    []*File   `json:"-" yaml:"-"`
	Failures []Failure `json:"failures" yaml:"failures"`
	// Finished is when the worker pool drained the queue
	Finished time.Time `json:"finished" yaml:"finished"`
}
