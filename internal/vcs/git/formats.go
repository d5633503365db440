package git

import "github.com/rohankatakam/defectset/internal/vcs/parse"

// Fixed output templates. The parsers in package parse depend on these exact
// shapes, so they are kept together here.
const (
	// commitLineFormat prints "<hash><-><strict ISO committer date>"
	commitLineFormat = "--pretty=format:%H" + parse.CommitFieldSeparator + "%cI"
	// commitDateFormat prints only the strict ISO committer date
	commitDateFormat = "--format=%cI"
	// revisionHashFormat prints one full hash per revision
	revisionHashFormat = "--format=%H"

	// tagRefPrefix restricts exact tag resolution to tags
	tagRefPrefix = "refs/tags/"
	// peelToCommit dereferences annotated tags to the tagged commit
	peelToCommit = "^{commit}"

	hoursPerDay  = 24
	daysPerWeek  = 7.0
	notFoundExit = 1

	// fatalExit with invalidPatternMarker on stderr means --grep could not
	// compile its pattern
	fatalExit            = 128
	invalidPatternMarker = "command line, '"
)

// logCommand returns the leading arguments shared by every history query.
// Colors and signature output would break the line formats.
func logCommand(args ...string) []string {
	return append([]string{"log", "--no-color", "--no-show-signature"}, args...)
}

// changedFilesCommand lists the paths touched by a single commit. --root
// makes the initial commit report the files it adds.
func changedFilesCommand(commitHash string) []string {
	return []string{"diff-tree", "--no-commit-id", "--name-only", "-r", "--root", commitHash}
}
