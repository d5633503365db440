package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/rohankatakam/defectset/internal/vcs/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRepo struct {
	t   *testing.T
	dir string
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")

	r := &testRepo{t: t, dir: t.TempDir()}
	r.git("init", "-q")
	r.git("config", "commit.gpgsign", "false")
	r.git("config", "tag.gpgsign", "false")
	r.git("config", "user.name", "Test")
	r.git("config", "user.email", "test@example.com")
	return r
}

func (r *testRepo) git(args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	require.NoError(r.t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func (r *testRepo) write(name, content string) {
	r.t.Helper()
	full := filepath.Join(r.dir, name)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0o644))
}

func (r *testRepo) commit(author, date, message string) string {
	r.t.Helper()
	r.git("add", "-A")
	cmd := exec.Command("git", "commit", "-q", "-m", message)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME="+author,
		"GIT_AUTHOR_EMAIL="+strings.ToLower(author)+"@example.com",
		"GIT_COMMITTER_NAME="+author,
		"GIT_COMMITTER_EMAIL="+strings.ToLower(author)+"@example.com",
		"GIT_AUTHOR_DATE="+date,
		"GIT_COMMITTER_DATE="+date,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(r.t, err, "git commit: %s", out)
	return r.git("rev-parse", "HEAD")
}

func TestEngineAgainstRepository(t *testing.T) {
	repo := newTestRepo(t)

	repo.write("src/main.go", "package main\n\nfunc main() {}\n")
	repo.write("README.md", "demo\n")
	root := repo.commit("Alice", "2021-01-01T00:00:00Z", "initial import")

	repo.write("src/main.go", "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println() }\n")
	repo.write("go.mod", "module demo\n")
	second := repo.commit("Bob", "2021-01-15T00:00:00Z", "Release 1.0 prep")
	repo.git("tag", "v1.0")
	repo.git("tag", "-a", "release-2.0", "-m", "second release")

	ctx := context.Background()
	e, err := Open(ctx, process.Options{Dir: repo.dir, Timeout: 30 * time.Second, Logger: quietLogger()})
	require.NoError(t, err)

	tagged, err := e.CommitByTag(ctx, "v1.0")
	require.NoError(t, err)
	assert.Equal(t, second, tagged.Hash)
	assert.True(t, tagged.Date.Equal(ts("2021-01-15T00:00:00Z")))

	annotated, err := e.CommitByTag(ctx, "2.0")
	require.NoError(t, err)
	assert.Equal(t, second, annotated.Hash, "annotated tags resolve to the tagged commit")

	_, err = e.CommitByTag(ctx, "9.9")
	assert.True(t, errors.IsNotFound(err))

	byDate, err := e.CommitByDate(ctx, ts("2021-01-10T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, root, byDate.Hash)

	byPattern, err := e.CommitByLogPattern(ctx, "Release 1.0")
	require.NoError(t, err)
	assert.Equal(t, second, byPattern.Hash)

	_, err = e.CommitByLogPattern(ctx, "[")
	assert.True(t, errors.IsNotFound(err), "an uncompilable pattern only skips the release")
	assert.False(t, errors.IsFatal(err))

	changed, err := e.ChangedFiles(ctx, root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"README.md", "src/main.go"}, changed)

	files, err := e.Files(ctx, tagged.Hash)
	require.NoError(t, err)
	require.Len(t, files, 3)
	f := files["src/main.go"]
	require.NotNil(t, f)

	require.NoError(t, e.ComputeFileMetrics(ctx, f, tagged))
	require.True(t, f.Populated())

	expect := map[models.MetricKey]int64{
		models.NumberOfRevisions:    2,
		models.AverageChangeSetSize: 1,
		models.MaxChangeSetSize:     1,
		models.LOC:                  5,
		models.LOCAdded:             6,
		models.MaxLOCAdded:          3,
		models.NumberOfAuthors:      2,
	}
	for key, want := range expect {
		got, _ := f.Int(key)
		assert.Equal(t, want, got, key.String())
	}
	age, _ := f.Float(models.AgeInWeeks)
	assert.InDelta(t, 2.0, age, 1e-9)
}

func TestOpenRejectsNonRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())
	dir := t.TempDir()

	_, err := Open(context.Background(), process.Options{Dir: dir, Logger: quietLogger()})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
