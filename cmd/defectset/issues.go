package main

import (
	"fmt"
	"io"

	"github.com/rohankatakam/defectset/internal/its"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/spf13/cobra"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List the fixed bugs of the project",
	Long: `List fixed bugs from the release source, split by whether the reporter
recorded affected versions.`,
	RunE: runIssues,
}

var issuesOutput string

func init() {
	issuesCmd.Flags().StringVarP(&issuesOutput, "output", "o", outputText, "output format: text, json or yaml")
}

// issueSummary is the printable result of the issues command
type issueSummary struct {
	WithAffected    []models.Issue `json:"with_affected_versions" yaml:"with_affected_versions"`
	WithoutAffected []models.Issue `json:"without_affected_versions" yaml:"without_affected_versions"`
}

func runIssues(cmd *cobra.Command, args []string) error {
	if err := checkOutputFormat(issuesOutput); err != nil {
		return err
	}
	tracker, err := openTracker()
	if err != nil {
		return err
	}
	issues, err := tracker.Issues(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list issues: %w", err)
	}

	with, without := its.SplitByAffectedVersions(issues)
	summary := issueSummary{WithAffected: with, WithoutAffected: without}

	return render(stdout, issuesOutput, summary, func(w io.Writer) {
		fmt.Fprintf(w, "%d fixed bugs: %d with affected versions, %d without\n", len(issues), len(with), len(without))
		for _, issue := range with {
			fmt.Fprintf(w, "  %-16s affected=%v fixed=%v\n", issue.Key, issue.AffectedVersionIDs, issue.FixedVersionIDs)
		}
	})
}
