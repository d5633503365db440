package main

import (
	"context"
	"fmt"

	"github.com/rohankatakam/defectset/internal/its"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/rohankatakam/defectset/internal/vcs/git"
	"github.com/spf13/cobra"
)

// commitTarget selects one commit by tag, date, log pattern or revision
type commitTarget struct {
	Tag      string
	Date     string
	Pattern  string
	Revision string
}

func (t *commitTarget) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.Tag, "tag", "", "release tag (exact, else first tag containing it)")
	cmd.Flags().StringVar(&t.Date, "date", "", "last commit at or before this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&t.Pattern, "pattern", "", "last commit whose message matches this pattern")
	cmd.Flags().StringVar(&t.Revision, "commit", "", "any git revision")
}

func (t *commitTarget) validate() error {
	set := 0
	for _, v := range []string{t.Tag, t.Date, t.Pattern, t.Revision} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of --tag, --date, --pattern or --commit is required")
	}
	return nil
}

func (t *commitTarget) resolve(ctx context.Context, engine *git.Engine) (models.Commit, error) {
	if err := t.validate(); err != nil {
		return models.Commit{}, err
	}
	switch {
	case t.Tag != "":
		return engine.CommitByTag(ctx, t.Tag)
	case t.Pattern != "":
		return engine.CommitByLogPattern(ctx, t.Pattern)
	case t.Revision != "":
		return engine.CommitByRevision(ctx, t.Revision)
	default:
		date, err := its.ParseReleaseDate(t.Date)
		if err != nil {
			return models.Commit{}, err
		}
		return engine.CommitByDate(ctx, date)
	}
}
