// Package git implements vcs.VersionControlSystem on top of the git command
// line. Every query is a separate git invocation; nothing is cached between
// calls.
package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/rohankatakam/defectset/internal/vcs"
	"github.com/rohankatakam/defectset/internal/vcs/parse"
	"github.com/rohankatakam/defectset/internal/vcs/process"
	"github.com/sirupsen/logrus"
)

var _ vcs.VersionControlSystem = (*Engine)(nil)

// Engine runs git queries and turns their output into commits, file trees and metrics
type Engine struct {
	runner process.Runner
	logger *logrus.Logger
}

// NewEngine creates an engine over an existing runner
func NewEngine(runner process.Runner, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{runner: runner, logger: logger}
}

// Open creates an exec-backed engine and verifies the working directory is a
// git repository
func Open(ctx context.Context, opts process.Options) (*Engine, error) {
	runner, err := process.NewExecRunner(opts)
	if err != nil {
		return nil, err
	}
	e := NewEngine(runner, opts.Logger)

	var gitDir parse.OneLine
	if err := runner.Run(ctx, &gitDir, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("open repository %s: %w", opts.Dir, err)
	}
	return e, nil
}

// CommitByTag resolves tag exactly, or else the first tag in `git tag` order
// whose name contains it
func (e *Engine) CommitByTag(ctx context.Context, tag string) (models.Commit, error) {
	if err := checkRefArgument(tag); err != nil {
		return models.Commit{}, err
	}

	hash, found, err := e.resolveExactTag(ctx, tag)
	if err != nil {
		return models.Commit{}, err
	}

	if !found {
		var tags parse.LineList
		if err := e.runner.Run(ctx, &tags, "tag"); err != nil {
			return models.Commit{}, fmt.Errorf("list tags: %w", err)
		}
		for _, candidate := range tags.Lines() {
			if !strings.Contains(candidate, tag) {
				continue
			}
			hash, found, err = e.resolveExactTag(ctx, candidate)
			if err != nil {
				return models.Commit{}, err
			}
			if found {
				e.logger.WithFields(logrus.Fields{
					"tag":     tag,
					"matched": candidate,
				}).Debug("Resolved tag by substring")
				break
			}
		}
	}

	if !found {
		return models.Commit{}, errors.NotFoundf("no tag matches %q", tag)
	}
	return e.commitByHash(ctx, hash)
}

// CommitByDate returns the most recent commit at or before date
func (e *Engine) CommitByDate(ctx context.Context, date time.Time) (models.Commit, error) {
	var reader parse.CommitReader
	args := logCommand("--before="+date.Format(time.RFC3339), "--max-count=1", commitLineFormat)
	if err := e.runner.Run(ctx, &reader, args...); err != nil {
		return models.Commit{}, fmt.Errorf("resolve commit before %s: %w", date.Format(time.RFC3339), err)
	}
	c, ok := reader.Commit()
	if !ok {
		return models.Commit{}, errors.NotFoundf("no commit at or before %s", date.Format(time.RFC3339))
	}
	return c, nil
}

// CommitByLogPattern returns the most recent commit whose message matches pattern
func (e *Engine) CommitByLogPattern(ctx context.Context, pattern string) (models.Commit, error) {
	if pattern == "" {
		return models.Commit{}, errors.ValidationError("empty log pattern")
	}
	var reader parse.CommitReader
	args := logCommand("--grep="+pattern, "--max-count=1", commitLineFormat)
	if err := e.runner.Run(ctx, &reader, args...); err != nil {
		if invalidPattern(err) {
			return models.Commit{}, errors.Wrap(err, errors.ErrorTypeResolution, errors.SeverityLow,
				fmt.Sprintf("invalid log pattern %q", pattern))
		}
		return models.Commit{}, fmt.Errorf("resolve commit matching %q: %w", pattern, err)
	}
	c, ok := reader.Commit()
	if !ok {
		return models.Commit{}, errors.NotFoundf("no commit message matches %q", pattern)
	}
	return c, nil
}

// Files lists every blob in the tree of commitHash
func (e *Engine) Files(ctx context.Context, commitHash string) (map[string]*models.File, error) {
	if err := checkRefArgument(commitHash); err != nil {
		return nil, err
	}
	tree := parse.NewFileTree()
	if err := e.runner.Run(ctx, tree, "ls-tree", "-r", commitHash); err != nil {
		return nil, fmt.Errorf("list files at %s: %w", commitHash, err)
	}
	return tree.Files(), nil
}

// ChangedFiles lists the paths touched by commitHash alone
func (e *Engine) ChangedFiles(ctx context.Context, commitHash string) ([]string, error) {
	if err := checkRefArgument(commitHash); err != nil {
		return nil, err
	}
	paths := parse.LineList{Unquote: true}
	if err := e.runner.Run(ctx, &paths, changedFilesCommand(commitHash)...); err != nil {
		return nil, fmt.Errorf("list files changed by %s: %w", commitHash, err)
	}
	return paths.Lines(), nil
}

// CommitByRevision resolves any revision git understands (hash, branch,
// HEAD~n) to a commit with its committer timestamp
func (e *Engine) CommitByRevision(ctx context.Context, rev string) (models.Commit, error) {
	if err := checkRefArgument(rev); err != nil {
		return models.Commit{}, err
	}
	var line parse.OneLine
	err := e.runner.Run(ctx, &line, "rev-parse", "--verify", "--quiet", rev+peelToCommit)
	if err != nil {
		if code, ok := process.ExitCode(err); ok && code == notFoundExit {
			return models.Commit{}, errors.NotFoundf("no commit %q", rev)
		}
		return models.Commit{}, fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	hash, ok := line.Line()
	if !ok {
		return models.Commit{}, errors.NotFoundf("no commit %q", rev)
	}
	return e.commitByHash(ctx, hash)
}

// invalidPattern reports whether git rejected a --grep pattern it could not compile
func invalidPattern(err error) bool {
	code, ok := process.ExitCode(err)
	return ok && code == fatalExit && strings.Contains(process.Stderr(err), invalidPatternMarker)
}

// resolveExactTag peels refs/tags/<tag> to a commit hash. A missing tag is
// reported through found, not as an error.
func (e *Engine) resolveExactTag(ctx context.Context, tag string) (hash string, found bool, err error) {
	var line parse.OneLine
	err = e.runner.Run(ctx, &line, "rev-parse", "--verify", "--quiet", tagRefPrefix+tag+peelToCommit)
	if err != nil {
		if code, ok := process.ExitCode(err); ok && code == notFoundExit {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve tag %q: %w", tag, err)
	}
	hash, found = line.Line()
	return hash, found, nil
}

// commitByHash attaches the committer timestamp to a resolved hash
func (e *Engine) commitByHash(ctx context.Context, hash string) (models.Commit, error) {
	var last parse.LastLine
	if err := e.runner.Run(ctx, &last, "show", "-s", "--no-color", commitDateFormat, hash); err != nil {
		return models.Commit{}, fmt.Errorf("read date of %s: %w", hash, err)
	}
	line, ok := last.Line()
	if !ok {
		return models.Commit{}, errors.MalformedOutput("", "git show printed no date for %s", hash)
	}
	date, err := parse.ParseTimestamp(line)
	if err != nil {
		return models.Commit{}, err
	}
	return models.NewCommit(hash, date), nil
}

func checkRefArgument(ref string) error {
	if ref == "" {
		return errors.ValidationError("empty revision argument")
	}
	if strings.HasPrefix(ref, "-") {
		return errors.ValidationErrorf("revision %q looks like an option", ref)
	}
	return nil
}
