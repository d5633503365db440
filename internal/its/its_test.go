package its

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohankatakam/defectset/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `
releases:
  - id: 3
    name: "2.0"
    date: 2013-05-01
  - id: 1
    name: "1.0"
    date: 2012-01-02
  - id: 2
    name: "1.1"
    date: 2012-06-30T12:00:00+02:00
issues:
  - key: PROJ-10
    affected_versions: [1]
    fixed_versions: [2]
    created: 2012-03-01T10:00:00Z
  - key: PROJ-11
    fixed_versions: [3]
    created: 2013-01-01
  - key: PROJ-12
    affected_versions: [2]
    created: 2013-02-01
`

func TestParseFile(t *testing.T) {
	src, err := ParseFile([]byte(sampleFile))
	require.NoError(t, err)

	releases, err := src.Releases(context.Background())
	require.NoError(t, err)
	require.Len(t, releases, 3)
	assert.Equal(t, []string{"1.0", "1.1", "2.0"}, []string{releases[0].Name, releases[1].Name, releases[2].Name})
	assert.Equal(t, time.Date(2012, 1, 2, 23, 59, 59, 0, time.UTC), releases[0].Date)

	issues, err := src.Issues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 2, "issues without fixed versions are dropped")

	with, without := SplitByAffectedVersions(issues)
	require.Len(t, with, 1)
	assert.Equal(t, "PROJ-10", with[0].Key)
	require.Len(t, without, 1)
	assert.Equal(t, "PROJ-11", without[0].Key)
}

func TestParseFileErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "releases: [\n"},
		{"missing name", "releases:\n  - id: 1\n    date: 2012-01-01\n"},
		{"duplicate id", "releases:\n  - {id: 1, name: a}\n  - {id: 1, name: b}\n"},
		{"bad date", "releases:\n  - {id: 1, name: a, date: yesterday}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0o644))

	src, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSortReleasesTieBreak(t *testing.T) {
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	releases := []models.Release{{ID: 9, Name: "b", Date: day}, {ID: 4, Name: "a", Date: day}}
	SortReleases(releases)
	assert.Equal(t, 4, releases[0].ID)
}
