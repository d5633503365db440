package parse

import (
	"strconv"
	"strings"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
)

// RevisionStat is the insertion/deletion count one revision applied to a file
type RevisionStat struct {
	Commit     models.Commit
	Insertions int64
	Deletions  int64
}

// Churn returns insertions minus deletions for the revision
func (r RevisionStat) Churn() int64 {
	return r.Insertions - r.Deletions
}

// Token positions in a diffstat summary line, after whitespace splitting:
//
//	1 file changed, 3 insertions(+), 9 deletions(-)
//	0 1    2        3 4              5 6
const (
	summaryFirstCount  = 3
	summaryFirstWord   = 4
	summarySecondCount = 5
	summarySecondWord  = 6
)

// StatBlockParser parses `git log --stat` output produced with the commit
// line format. Each history entry is a commit line followed by an indented
// block: one line per file ("path | N +++--") and a summary line
// ("1 file changed, N insertions(+), M deletions(-)"). Entries are separated by
// blank lines. Merge commits can appear with no block and count as zero.
//
// The "+"/"-" graph that closes the file line decides which counts the summary
// carries; the counts are then read from fixed token positions.
type StatBlockParser struct {
	revisions []RevisionStat
	current   *pendingStat
}

type pendingStat struct {
	stat     RevisionStat
	flag     string
	lastLine string
	hasFiles bool
	summed   bool
}

// Consume implements process.Consumer
func (p *StatBlockParser) Consume(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	if !strings.HasPrefix(line, " ") {
		if err := p.flush(); err != nil {
			return err
		}
		c, err := ParseCommitLine(line)
		if err != nil {
			return err
		}
		p.current = &pendingStat{stat: RevisionStat{Commit: c}}
		return nil
	}

	if p.current == nil {
		return errors.MalformedOutput(line, "stat line before any commit line")
	}
	if p.current.summed {
		return errors.MalformedOutput(line, "stat line after summary")
	}
	p.current.lastLine = line

	if isSummaryLine(line) {
		return p.summarize(line)
	}

	sep := strings.LastIndex(line, " | ")
	if sep < 0 {
		return errors.MalformedOutput(line, "expected \"path | count graph\" stat line")
	}
	fields := strings.Fields(line[sep+3:])
	if len(fields) == 0 {
		return errors.MalformedOutput(line, "empty change graph")
	}
	p.current.flag += fields[len(fields)-1]
	p.current.hasFiles = true
	return nil
}

func (p *StatBlockParser) summarize(line string) error {
	cur := p.current
	cur.summed = true

	plus := strings.Contains(cur.flag, "+")
	minus := strings.Contains(cur.flag, "-")
	tokens := strings.Fields(line)

	var err error
	switch {
	case plus && minus:
		if cur.stat.Insertions, err = countAt(line, tokens, summaryFirstCount, summaryFirstWord, "insertion"); err != nil {
			return err
		}
		cur.stat.Deletions, err = countAt(line, tokens, summarySecondCount, summarySecondWord, "deletion")
	case minus:
		cur.stat.Deletions, err = countAt(line, tokens, summaryFirstCount, summaryFirstWord, "deletion")
	case plus:
		cur.stat.Insertions, err = countAt(line, tokens, summaryFirstCount, summaryFirstWord, "insertion")
	}
	return err
}

// Revisions finalizes parsing and returns the entries in output order
// (newest first for git log).
func (p *StatBlockParser) Revisions() ([]RevisionStat, error) {
	if err := p.flush(); err != nil {
		return nil, err
	}
	return p.revisions, nil
}

func (p *StatBlockParser) flush() error {
	if p.current == nil {
		return nil
	}
	cur := p.current
	p.current = nil
	if cur.hasFiles && !cur.summed {
		return errors.MalformedOutput(cur.lastLine, "stat block for %s has no summary line", cur.stat.Commit.Short())
	}
	p.revisions = append(p.revisions, cur.stat)
	return nil
}

func isSummaryLine(line string) bool {
	tokens := strings.Fields(line)
	return len(tokens) >= 3 &&
		(tokens[1] == "file" || tokens[1] == "files") &&
		strings.HasPrefix(tokens[2], "changed")
}

func countAt(line string, tokens []string, countPos, wordPos int, word string) (int64, error) {
	if len(tokens) <= wordPos {
		return 0, errors.MalformedOutput(line, "expected %s count at token %d", word, countPos)
	}
	if !strings.HasPrefix(tokens[wordPos], word) {
		return 0, errors.MalformedOutput(line, "expected %q at token %d, found %q", word, wordPos, tokens[wordPos])
	}
	n, err := strconv.ParseInt(tokens[countPos], 10, 64)
	if err != nil || n < 0 {
		return 0, errors.MalformedOutput(line, "invalid %s count %q", word, tokens[countPos])
	}
	return n, nil
}
