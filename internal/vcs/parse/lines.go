// Package parse turns the textual output of git plumbing and log commands
// into typed values. Each parser is a process.Consumer fed one line at a time.
package parse

import (
	"strconv"
	"strings"
)

// OneLine keeps the first non-blank line of output
type OneLine struct {
	line string
	seen bool
}

// Consume implements process.Consumer
func (p *OneLine) Consume(line string) error {
	if !p.seen && strings.TrimSpace(line) != "" {
		p.line = strings.TrimSpace(line)
		p.seen = true
	}
	return nil
}

// Line returns the captured line; ok is false when the output was empty
func (p *OneLine) Line() (string, bool) {
	return p.line, p.seen
}

// LastLine keeps the last non-blank line of output
type LastLine struct {
	line string
	seen bool
}

// Consume implements process.Consumer
func (p *LastLine) Consume(line string) error {
	if strings.TrimSpace(line) != "" {
		p.line = strings.TrimSpace(line)
		p.seen = true
	}
	return nil
}

// Line returns the captured line; ok is false when the output was empty
func (p *LastLine) Line() (string, bool) {
	return p.line, p.seen
}

// LineList collects every non-blank line in output order
type LineList struct {
	// Unquote decodes git's C-style quoting of unusual path names
	Unquote bool
	lines   []string
}

// Consume implements process.Consumer
func (p *LineList) Consume(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if p.Unquote {
		line = UnquotePath(line)
	}
	p.lines = append(p.lines, line)
	return nil
}

// Lines returns the collected lines
func (p *LineList) Lines() []string {
	return p.lines
}

// LineCounter counts output lines. Blank lines count unless SkipBlank is set,
// so blob content is measured the way a line reader would see it.
type LineCounter struct {
	SkipBlank bool
	count     int64
}

// Consume implements process.Consumer
func (p *LineCounter) Consume(line string) error {
	if p.SkipBlank && strings.TrimSpace(line) == "" {
		return nil
	}
	p.count++
	return nil
}

// Count returns the number of lines seen
func (p *LineCounter) Count() int64 {
	return p.count
}

// UnquotePath decodes a path that git quoted because it contains special
// characters. Unquoted input is returned unchanged.
func UnquotePath(path string) string {
	if len(path) < 2 || path[0] != '"' || path[len(path)-1] != '"' {
		return path
	}
	unquoted, err := strconv.Unquote(path)
	if err != nil {
		return path
	}
	return unquoted
}
