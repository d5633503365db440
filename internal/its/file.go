package its

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"gopkg.in/yaml.v3"
)

// dayLayout is the date-only form. Such releases are placed at the last
// second of the day, UTC.
const dayLayout = "2006-01-02"

// FileSource reads releases and issues from a YAML document:
//
//	releases:
//	  - id: 12310000
//	    name: "1.0"
//	    date: 2012-01-02
//	issues:
//	  - key: PROJ-1
//	    affected_versions: [12310000]
//	    fixed_versions: [12310001]
//	    created: 2012-01-01T10:00:00Z
type FileSource struct {
	path     string
	releases []models.Release
	issues   []models.Issue
}

var _ Tracker = (*FileSource)(nil)

type fileDocument struct {
	Releases []struct {
		ID   int    `yaml:"id"`
		Name string `yaml:"name"`
		Date string `yaml:"date"`
	} `yaml:"releases"`
	Issues []struct {
		Key              string `yaml:"key"`
		AffectedVersions []int  `yaml:"affected_versions"`
		FixedVersions    []int  `yaml:"fixed_versions"`
		Created          string `yaml:"created"`
	} `yaml:"issues"`
}

// LoadFile parses a release file
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigErrorf("read release file %s: %v", path, err)
	}
	src, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src.path = path
	return src, nil
}

// ParseFile parses release file content
func ParseFile(data []byte) (*FileSource, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ValidationErrorf("invalid release file: %v", err)
	}

	src := &FileSource{}
	seen := make(map[int]bool, len(doc.Releases))
	for i, r := range doc.Releases {
		if strings.TrimSpace(r.Name) == "" {
			return nil, errors.ValidationErrorf("release %d has no name", i+1)
		}
		if seen[r.ID] {
			return nil, errors.ValidationErrorf("duplicate release id %d", r.ID)
		}
		seen[r.ID] = true

		var date time.Time
		if r.Date != "" {
			d, err := ParseReleaseDate(r.Date)
			if err != nil {
				return nil, errors.ValidationErrorf("release %s: %v", r.Name, err)
			}
			date = d
		}
		src.releases = append(src.releases, models.Release{ID: r.ID, Name: r.Name, Date: date})
	}
	SortReleases(src.releases)

	for _, is := range doc.Issues {
		created, err := ParseReleaseDate(is.Created)
		if err != nil {
			return nil, errors.ValidationErrorf("issue %s: %v", is.Key, err)
		}
		src.issues = append(src.issues, models.Issue{
			Key:                is.Key,
			AffectedVersionIDs: is.AffectedVersions,
			FixedVersionIDs:    is.FixedVersions,
			Created:            created,
		})
	}
	return src, nil
}

// ParseReleaseDate accepts RFC 3339 timestamps or plain dates. Plain dates
// resolve to 23:59:59 UTC.
func ParseReleaseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return EndOfDay(d), nil
}

// EndOfDay returns the last second of t's calendar day in UTC
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

// Path returns the file the source was loaded from
func (s *FileSource) Path() string {
	return s.path
}

// Releases implements ReleaseSource
func (s *FileSource) Releases(ctx context.Context) ([]models.Release, error) {
	out := make([]models.Release, len(s.releases))
	copy(out, s.releases)
	return out, nil
}

// Issues implements IssueSource. Issues without fixed versions are dropped.
func (s *FileSource) Issues(ctx context.Context) ([]models.Issue, error) {
	out := make([]models.Issue, 0, len(s.issues))
	for _, is := range s.issues {
		if len(is.FixedVersionIDs) > 0 {
			out = append(out, is)
		}
	}
	return out, nil
}
