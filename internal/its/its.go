// Package its defines the issue-tracker collaborators that supply releases
// and fixed bugs to the dataset builder.
package its

import (
	"context"
	"sort"

	"github.com/rohankatakam/defectset/internal/models"
)

// ReleaseSource lists the releases of a project ordered by date
type ReleaseSource interface {
	Releases(ctx context.Context) ([]models.Release, error)
}

// IssueSource lists the fixed bugs of a project
type IssueSource interface {
	Issues(ctx context.Context) ([]models.Issue, error)
}

// Tracker is a full issue tracker
type Tracker interface {
	ReleaseSource
	IssueSource
}

// SplitByAffectedVersions separates issues that record affected versions from
// those that do not. Input order is preserved.
func SplitByAffectedVersions(issues []models.Issue) (with, without []models.Issue) {
	for _, issue := range issues {
		if issue.HasAffectedVersions() {
			with = append(with, issue)
		} else {
			without = append(without, issue)
		}
	}
	return with, without
}

// SortReleases orders releases by date, then by id
func SortReleases(releases []models.Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		if !releases[i].Date.Equal(releases[j].Date) {
			return releases[i].Date.Before(releases[j].Date)
		}
		return releases[i].ID < releases[j].ID
	})
}
