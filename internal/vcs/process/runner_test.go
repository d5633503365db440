package process

import (
	"context"
	stderrors "errors"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShellRunner(t *testing.T, timeout time.Duration) *ExecRunner {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	r, err := NewExecRunner(Options{Binary: "sh", Dir: t.TempDir(), Timeout: timeout, Logger: logger})
	require.NoError(t, err)
	return r
}

func collect(lines *[]string) Consumer {
	return ConsumerFunc(func(line string) error {
		*lines = append(*lines, line)
		return nil
	})
}

func TestExecRunnerStreamsLines(t *testing.T) {
	r := newShellRunner(t, 0)

	var lines []string
	err := r.Run(context.Background(), collect(&lines), "-c", `printf 'first\n\nthird\r\nlast'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "", "third", "last"}, lines)
}

func TestExecRunnerRunsInWorkingDirectory(t *testing.T) {
	r := newShellRunner(t, 0)

	var lines []string
	require.NoError(t, r.Run(context.Background(), collect(&lines), "-c", "pwd -P"))
	require.Len(t, lines, 1)

	want, err := filepath.EvalSymlinks(r.Dir())
	require.NoError(t, err)
	assert.Equal(t, want, lines[0])
}

func TestExecRunnerExitStatus(t *testing.T) {
	r := newShellRunner(t, 0)

	err := r.Run(context.Background(), nil, "-c", "echo oops >&2; exit 3")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrProcess))
	assert.True(t, errors.IsFatal(err))

	code, ok := ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 3, code)
	assert.Contains(t, err.Error(), "oops")
	assert.Equal(t, "oops", Stderr(err))
	assert.Empty(t, Stderr(nil))
}

func TestExecRunnerTimeout(t *testing.T) {
	r := newShellRunner(t, 50*time.Millisecond)

	err := r.Run(context.Background(), nil, "-c", "exec sleep 5")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTimeout))
	assert.False(t, errors.IsFatal(err), "a timeout aborts one file, not the run")
}

func TestExecRunnerConsumerErrorDrainsOutput(t *testing.T) {
	r := newShellRunner(t, 0)

	sentinel := stderrors.New("stop")
	calls := 0
	err := r.Run(context.Background(), ConsumerFunc(func(string) error {
		calls++
		return sentinel
	}), "-c", "seq 1 20000")

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestNewExecRunnerValidation(t *testing.T) {
	_, err := NewExecRunner(Options{Binary: "definitely-not-a-binary-xyz", Dir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	if _, lookErr := exec.LookPath("sh"); lookErr != nil {
		t.Skip("sh not available")
	}
	_, err = NewExecRunner(Options{Binary: "sh", Dir: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrProcess))
}
