package git

import (
	"context"
	"fmt"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/rohankatakam/defectset/internal/vcs/parse"
	"github.com/sirupsen/logrus"
)

// metricStep populates one group of metrics. Later steps may read values set
// by earlier ones.
type metricStep struct {
	name string
	run  func(ctx context.Context, file *models.File, release models.Commit) error
}

func (e *Engine) steps() []metricStep {
	return []metricStep{
		{"revisions", e.revisionMetrics},
		{"loc", e.locMetric},
		{"churn", e.churnMetrics},
		{"age", e.ageMetrics},
		{"authors", e.authorMetric},
	}
}

// ComputeFileMetrics populates every metric of file as of release
func (e *Engine) ComputeFileMetrics(ctx context.Context, file *models.File, release models.Commit) error {
	if file == nil || file.Name == "" {
		return errors.ValidationError("file has no path")
	}
	if err := checkRefArgument(release.Hash); err != nil {
		return err
	}

	file.Reset(release.Hash)
	start := time.Now()

	for _, step := range e.steps() {
		if err := step.run(ctx, file, release); err != nil {
			file.Reset(release.Hash)
			return fmt.Errorf("%s metrics for %s at %s: %w", step.name, file.Name, release.Short(), err)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"file":     file.Name,
		"release":  release.Short(),
		"duration": time.Since(start),
	}).Debug("Computed file metrics")
	return nil
}

// revisionMetrics sets NUMBER_OF_REVISIONS and the change set size metrics.
// A revision's change set is the number of other files it touched.
func (e *Engine) revisionMetrics(ctx context.Context, file *models.File, release models.Commit) error {
	revisions := parse.LineList{}
	args := logCommand("--follow", revisionHashFormat, release.Hash, "--", file.Name)
	if err := e.runner.Run(ctx, &revisions, args...); err != nil {
		return err
	}

	hashes := revisions.Lines()
	if len(hashes) == 0 {
		return errors.DegenerateMetricf("%s has no revisions up to %s", file.Name, release.Short())
	}

	var total, maxSize int64
	for _, rev := range hashes {
		touched := parse.LineCounter{SkipBlank: true}
		if err := e.runner.Run(ctx, &touched, changedFilesCommand(rev)...); err != nil {
			return err
		}
		size := touched.Count() - 1
		if size < 0 {
			size = 0
		}
		total += size
		if size > maxSize {
			maxSize = size
		}
	}

	count := int64(len(hashes))
	file.SetInt(models.NumberOfRevisions, count)
	file.SetInt(models.AverageChangeSetSize, total/count)
	file.SetInt(models.MaxChangeSetSize, maxSize)
	return nil
}

// locMetric sets LOC from the blob content. Files built without a blob hash
// are read through <release>:<path>.
func (e *Engine) locMetric(ctx context.Context, file *models.File, release models.Commit) error {
	object := file.Hash
	if object == "" {
		object = release.Hash + ":" + file.Name
	}
	lines := parse.LineCounter{}
	if err := e.runner.Run(ctx, &lines, "cat-file", "-p", object); err != nil {
		return err
	}
	file.SetInt(models.LOC, lines.Count())
	return nil
}

// churnMetrics sets the insertion, touch and churn metrics from the diffstat
// of every revision. Maxima start at zero.
func (e *Engine) churnMetrics(ctx context.Context, file *models.File, release models.Commit) error {
	revisions, ok := file.Int(models.NumberOfRevisions)
	if !ok || revisions == 0 {
		return errors.InternalError("churn metrics computed before revisions")
	}

	var stats parse.StatBlockParser
	args := logCommand("--follow", commitLineFormat, "--stat", release.Hash, "--", file.Name)
	if err := e.runner.Run(ctx, &stats, args...); err != nil {
		return err
	}
	entries, err := stats.Revisions()
	if err != nil {
		return err
	}

	var added, touched, churn, maxAdded, maxChurn int64
	for _, rev := range entries {
		added += rev.Insertions
		touched += rev.Insertions + rev.Deletions
		churn += rev.Churn()
		if rev.Insertions > maxAdded {
			maxAdded = rev.Insertions
		}
		if rev.Churn() > maxChurn {
			maxChurn = rev.Churn()
		}
	}

	file.SetInt(models.LOCAdded, added)
	file.SetInt(models.MaxLOCAdded, maxAdded)
	file.SetInt(models.AverageLOCAdded, added/revisions)
	file.SetInt(models.LOCTouched, touched)
	file.SetInt(models.Churn, churn)
	file.SetInt(models.MaxChurn, maxChurn)
	file.SetInt(models.AverageChurn, churn/revisions)
	return nil
}

// ageMetrics sets AGE_IN_WEEKS from the earliest commit touching the path and
// WEIGHTED_AGE_IN_WEEKS as age per touched line. Age counts whole days.
func (e *Engine) ageMetrics(ctx context.Context, file *models.File, release models.Commit) error {
	var earliest parse.LastLine
	args := logCommand(release.Hash, commitDateFormat, "--", file.Name)
	if err := e.runner.Run(ctx, &earliest, args...); err != nil {
		return err
	}
	line, ok := earliest.Line()
	if !ok {
		return errors.DegenerateMetricf("%s has no history up to %s", file.Name, release.Short())
	}
	created, err := parse.ParseTimestamp(line)
	if err != nil {
		return err
	}

	days := int64(release.Date.Sub(created) / (hoursPerDay * time.Hour))
	age := float64(days) / daysPerWeek
	file.SetFloat(models.AgeInWeeks, age)

	touched, _ := file.Int(models.LOCTouched)
	if touched == 0 {
		e.logger.WithFields(logrus.Fields{
			"file":    file.Name,
			"release": release.Short(),
		}).Warn("LOC_TOUCHED is zero; weighted age left undefined")
		file.Set(models.WeightedAgeInWeeks, models.Undefined("LOC_TOUCHED is zero"))
		return nil
	}
	file.SetFloat(models.WeightedAgeInWeeks, age/float64(touched))
	return nil
}

// authorMetric sets NUMBER_OF_AUTHORS from the shortlog summary
func (e *Engine) authorMetric(ctx context.Context, file *models.File, release models.Commit) error {
	authors := parse.LineCounter{SkipBlank: true}
	if err := e.runner.Run(ctx, &authors, "shortlog", "-s", release.Hash, "--", file.Name); err != nil {
		return err
	}
	file.SetInt(models.NumberOfAuthors, authors.Count())
	return nil
}
