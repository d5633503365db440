package dataset

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// fakeEngine derives metrics from the path so results can be compared across
// runs. failures maps paths to the error ComputeFileMetrics returns.
type fakeEngine struct {
	tags     map[string]models.Commit
	byDate   []models.Commit // oldest first
	trees    map[string]map[string]string
	failures map[string]error
	delay    time.Duration

	computed atomic.Int64
	mu       sync.Mutex
	seen     map[string]int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		tags:     make(map[string]models.Commit),
		trees:    make(map[string]map[string]string),
		failures: make(map[string]error),
		seen:     make(map[string]int),
	}
}

func (f *fakeEngine) CommitByTag(ctx context.Context, tag string) (models.Commit, error) {
	if c, ok := f.tags[tag]; ok {
		return c, nil
	}
	return models.Commit{}, errors.NotFoundf("no tag matches %q", tag)
}

func (f *fakeEngine) CommitByDate(ctx context.Context, date time.Time) (models.Commit, error) {
	var found models.Commit
	for _, c := range f.byDate {
		if !c.Date.After(date) {
			found = c
		}
	}
	if found.IsZero() {
		return found, errors.NotFoundf("no commit before %s", date)
	}
	return found, nil
}

func (f *fakeEngine) CommitByLogPattern(ctx context.Context, pattern string) (models.Commit, error) {
	return f.CommitByTag(ctx, "pattern:"+pattern)
}

func (f *fakeEngine) Files(ctx context.Context, commitHash string) (map[string]*models.File, error) {
	tree, ok := f.trees[commitHash]
	if !ok {
		return nil, errors.ProcessErrorf(fmt.Errorf("bad object"), "ls-tree %s", commitHash)
	}
	out := make(map[string]*models.File, len(tree))
	for path, blob := range tree {
		out[path] = models.NewFile(path, blob)
	}
	return out, nil
}

func (f *fakeEngine) ChangedFiles(ctx context.Context, commitHash string) ([]string, error) {
	return nil, nil
}

func (f *fakeEngine) ComputeFileMetrics(ctx context.Context, file *models.File, release models.Commit) error {
	f.mu.Lock()
	f.seen[file.Name]++
	f.mu.Unlock()
	f.computed.Add(1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	file.Reset(release.Hash)
	if err, ok := f.failures[file.Name]; ok {
		file.SetInt(models.LOC, 1)
		return err
	}
	n := int64(len(file.Name))
	for _, k := range models.AllMetricKeys() {
		if k.Kind() == models.KindFloat {
			file.SetFloat(k, float64(n)/7)
		} else {
			file.SetInt(k, n+int64(k))
		}
	}
	return nil
}

func (f *fakeEngine) timesSeen(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[path]
}

type recordingSink struct {
	mu      sync.Mutex
	results []*models.ReleaseMetrics
	err     error
}

func (s *recordingSink) WriteRelease(ctx context.Context, result *models.ReleaseMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return s.err
}
