package parse

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashA = "1111111111111111111111111111111111111111"
	hashB = "2222222222222222222222222222222222222222"
	hashC = "3333333333333333333333333333333333333333"
)

type consumer interface {
	Consume(line string) error
}

func feed(t *testing.T, c consumer, output string) error {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if err := c.Consume(line); err != nil {
			return err
		}
	}
	return nil
}

func TestLineParsers(t *testing.T) {
	output := "\nfirst\n\nsecond  \nthird\n"

	one := &OneLine{}
	require.NoError(t, feed(t, one, output))
	line, ok := one.Line()
	assert.True(t, ok)
	assert.Equal(t, "first", line)

	last := &LastLine{}
	require.NoError(t, feed(t, last, output))
	line, ok = last.Line()
	assert.True(t, ok)
	assert.Equal(t, "third", line)

	list := &LineList{}
	require.NoError(t, feed(t, list, output))
	assert.Equal(t, []string{"first", "second", "third"}, list.Lines())

	all := &LineCounter{}
	require.NoError(t, feed(t, all, "package a\n\nfunc f() {}"))
	assert.Equal(t, int64(3), all.Count())

	nonBlank := &LineCounter{SkipBlank: true}
	require.NoError(t, feed(t, nonBlank, "a.go\n\nb.go\n"))
	assert.Equal(t, int64(2), nonBlank.Count())

	empty := &OneLine{}
	_, ok = empty.Line()
	assert.False(t, ok)
}

func TestUnquotePath(t *testing.T) {
	assert.Equal(t, "src/plain.go", UnquotePath("src/plain.go"))
	assert.Equal(t, "src/café.go", UnquotePath(`"src/caf\303\251.go"`))
	assert.Equal(t, "with\ttab", UnquotePath(`"with\ttab"`))
	assert.Equal(t, `"broken`, UnquotePath(`"broken`))
}

func TestParseCommitLine(t *testing.T) {
	c, err := ParseCommitLine(hashA + "<->2021-03-04T10:20:30+02:00")
	require.NoError(t, err)
	assert.Equal(t, hashA, c.Hash)
	assert.True(t, c.Date.Equal(time.Date(2021, 3, 4, 8, 20, 30, 0, time.UTC)))

	quoted, err := ParseCommitLine(`"` + hashB + `<->2021-03-04T10:20:30Z"`)
	require.NoError(t, err)
	assert.Equal(t, hashB, quoted.Hash)

	tests := []struct {
		name string
		line string
	}{
		{"no separator", hashA + " 2021-03-04T10:20:30Z"},
		{"bad hash", "zzzz<->2021-03-04T10:20:30Z"},
		{"bad date", hashA + "<->yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommitLine(tt.line)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrParse))

			var e *errors.Error
			require.True(t, stderrors.As(err, &e))
			assert.Equal(t, tt.line, e.Context["line"])
		})
	}
}

func TestCommitReader(t *testing.T) {
	r := &CommitReader{}
	require.NoError(t, feed(t, r, hashA+"<->2020-01-01T00:00:00Z\n"+hashB+"<->2019-01-01T00:00:00Z"))
	c, ok := r.Commit()
	require.True(t, ok)
	assert.Equal(t, hashA, c.Hash)

	empty := &CommitReader{}
	require.NoError(t, feed(t, empty, ""))
	_, ok = empty.Commit()
	assert.False(t, ok)
}

func TestFileTree(t *testing.T) {
	output := strings.Join([]string{
		"100644 blob aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\tREADME.md",
		"100755 blob bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb\tsrc/main/App.java",
		"160000 commit cccccccccccccccccccccccccccccccccccccccc\tvendor/lib",
		"100644 blob dddddddddddddddddddddddddddddddddddddddd\t\"docs/caf\\303\\251.md\"",
	}, "\n")

	tree := NewFileTree()
	require.NoError(t, feed(t, tree, output))
	files := tree.Files()

	require.Len(t, files, 3)
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", files["README.md"].Hash)
	assert.Equal(t, "src/main/App.java", files["src/main/App.java"].Name)
	assert.Contains(t, files, "docs/café.md")
	assert.NotContains(t, files, "vendor/lib")

	err := NewFileTree().Consume("100644 blob aaaa README.md")
	assert.True(t, stderrors.Is(err, errors.ErrParse))
}

// Captured from: git log --follow --pretty=format:%H<->%cI --stat <release> -- src/App.java
func statSample() string {
	return strings.Join([]string{
		hashC + "<->2021-03-03T00:00:00Z",
		" src/App.java | 20 --------------------",
		" 1 file changed, 20 deletions(-)",
		"",
		hashB + "<->2021-02-02T00:00:00Z",
		" src/App.java | 5 +++++",
		" 1 file changed, 5 insertions(+)",
		"",
		hashA + "<->2021-01-01T00:00:00Z",
		" src/App.java | 60 ++++++++++++++++++++++++++++++++++++++++++++++++++----------",
		" 1 file changed, 50 insertions(+), 10 deletions(-)",
	}, "\n")
}

func TestStatBlockParser(t *testing.T) {
	p := &StatBlockParser{}
	require.NoError(t, feed(t, p, statSample()))

	revs, err := p.Revisions()
	require.NoError(t, err)
	require.Len(t, revs, 3)

	assert.Equal(t, hashC, revs[0].Commit.Hash)
	assert.Equal(t, RevisionStat{Commit: revs[0].Commit, Insertions: 0, Deletions: 20}, revs[0])
	assert.Equal(t, int64(5), revs[1].Insertions)
	assert.Equal(t, int64(0), revs[1].Deletions)
	assert.Equal(t, int64(50), revs[2].Insertions)
	assert.Equal(t, int64(10), revs[2].Deletions)
	assert.Equal(t, int64(40), revs[2].Churn())
}

func TestStatBlockParserEdgeEntries(t *testing.T) {
	output := strings.Join([]string{
		hashC + "<->2021-03-03T00:00:00Z",
		"",
		hashB + "<->2021-02-02T00:00:00Z",
		" logo.png | Bin 0 -> 1234 bytes",
		" 1 file changed, 0 insertions(+), 0 deletions(-)",
		"",
		hashA + "<->2021-01-01T00:00:00Z",
		" {old => new}/App.java | 0",
		" 1 file changed, 0 insertions(+), 0 deletions(-)",
	}, "\n")

	p := &StatBlockParser{}
	require.NoError(t, feed(t, p, output))
	revs, err := p.Revisions()
	require.NoError(t, err)
	require.Len(t, revs, 3, "a merge entry without a stat block still counts")
	for _, r := range revs {
		assert.Zero(t, r.Insertions)
		assert.Zero(t, r.Deletions)
	}
}

func TestStatBlockParserMalformed(t *testing.T) {
	tests := []struct {
		name   string
		output string
		bad    string
	}{
		{
			name:   "stat before header",
			output: " a.go | 1 +\n 1 file changed, 1 insertion(+)",
			bad:    " a.go | 1 +",
		},
		{
			name:   "words out of position",
			output: hashA + "<->2021-01-01T00:00:00Z\n a.go | 2 +-\n 1 file changed, 1 deletion(-), 1 insertion(+)",
			bad:    " 1 file changed, 1 deletion(-), 1 insertion(+)",
		},
		{
			name:   "missing deletion count",
			output: hashA + "<->2021-01-01T00:00:00Z\n a.go | 2 +-\n 1 file changed, 1 insertion(+)",
			bad:    " 1 file changed, 1 insertion(+)",
		},
		{
			name:   "not a stat line",
			output: hashA + "<->2021-01-01T00:00:00Z\n garbage",
			bad:    " garbage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &StatBlockParser{}
			err := feed(t, p, tt.output)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrParse))

			var e *errors.Error
			require.True(t, stderrors.As(err, &e))
			assert.Equal(t, tt.bad, e.Context["line"])
		})
	}
}

func TestStatBlockParserTruncatedBlock(t *testing.T) {
	p := &StatBlockParser{}
	require.NoError(t, feed(t, p, hashA+"<->2021-01-01T00:00:00Z\n a.go | 2 +-"))
	_, err := p.Revisions()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrParse))
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp(`"2020-05-06T07:08:09-03:00"`)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2020, 5, 6, 10, 8, 9, 0, time.UTC)))

	_, err = ParseTimestamp("Tue May 5 2020")
	assert.True(t, stderrors.Is(err, errors.ErrParse))
}
