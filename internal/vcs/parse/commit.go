package parse

import (
	"strings"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
)

// CommitFieldSeparator splits the hash and date of a formatted commit line
const CommitFieldSeparator = "<->"

// ParseTimestamp parses a strict ISO-8601 committer date (git %cI)
func ParseTimestamp(line string) (time.Time, error) {
	raw := trimQuotes(strings.TrimSpace(line))
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.MalformedOutput(line, "expected ISO-8601 timestamp")
	}
	return ts, nil
}

// ParseCommitLine parses "<hash><-><iso-date>" as produced by the commit line format
func ParseCommitLine(line string) (models.Commit, error) {
	raw := trimQuotes(strings.TrimSpace(line))
	hash, date, found := strings.Cut(raw, CommitFieldSeparator)
	if !found {
		return models.Commit{}, errors.MalformedOutput(line, "missing %q separator in commit line", CommitFieldSeparator)
	}
	hash = strings.TrimSpace(hash)
	if !isHash(hash) {
		return models.Commit{}, errors.MalformedOutput(line, "invalid commit hash %q", hash)
	}
	ts, err := ParseTimestamp(date)
	if err != nil {
		return models.Commit{}, errors.MalformedOutput(line, "invalid commit date %q", date)
	}
	return models.NewCommit(hash, ts), nil
}

// CommitReader captures the first formatted commit line of output
type CommitReader struct {
	commit models.Commit
	seen   bool
}

// Consume implements process.Consumer
func (p *CommitReader) Consume(line string) error {
	if p.seen || strings.TrimSpace(line) == "" {
		return nil
	}
	c, err := ParseCommitLine(line)
	if err != nil {
		return err
	}
	p.commit = c
	p.seen = true
	return nil
}

// Commit returns the parsed commit; ok is false when the output was empty
func (p *CommitReader) Commit() (models.Commit, bool) {
	return p.commit, p.seen
}

func trimQuotes(s string) string {
	return strings.Trim(s, `"'`)
}

func isHash(s string) bool {
	if len(s) < 4 {
		return false
	}
	for _, r := range s {
		if !('0' <= r && r <= '9' || 'a' <= r && r <= 'f') {
			return false
		}
	}
	return true
}
