package dataset

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var releaseCommit = models.NewCommit("cccccccccccccccccccccccccccccccccccccccc", time.Date(2021, 3, 3, 0, 0, 0, 0, time.UTC))

func makeFiles(n int) []*models.File {
	files := make([]*models.File, n)
	for i := range files {
		files[i] = models.NewFile(fmt.Sprintf("src/pkg%03d/File%d.java", i%17, i), fmt.Sprintf("%040d", i))
	}
	return files
}

func TestFileQueueOrder(t *testing.T) {
	files := makeFiles(3)
	q := NewFileQueue(files[:2]...)
	q.PushAll(files[2:])
	assert.Equal(t, 3, q.Len())

	for _, want := range files {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Same(t, want, got)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestFileQueueConcurrentPop(t *testing.T) {
	files := makeFiles(5000)
	q := NewFileQueue(files...)

	var mu sync.Mutex
	seen := make(map[*models.File]int)
	var wg sync.WaitGroup
	for w := 0; w < 32; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				f, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				seen[f]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, len(files))
	for f, n := range seen {
		assert.Equal(t, 1, n, f.Name)
	}
}

func snapshot(files []*models.File) map[string]map[models.MetricKey]models.Value {
	out := make(map[string]map[models.MetricKey]models.Value, len(files))
	for _, f := range files {
		out[f.Name] = f.Metrics()
	}
	return out
}

func TestWorkerPoolOrderIndependent(t *testing.T) {
	engine := newFakeEngine()

	single, err := NewWorkerPool(engine, 1, quietLogger()).Run(context.Background(), NewFileQueue(makeFiles(200)...), releaseCommit)
	require.NoError(t, err)

	many, err := NewWorkerPool(engine, 12, quietLogger()).Run(context.Background(), NewFileQueue(makeFiles(200)...), releaseCommit)
	require.NoError(t, err)

	require.Len(t, single.Completed, 200)
	assert.Equal(t, snapshot(single.Completed), snapshot(many.Completed))
	for i := 1; i < len(many.Completed); i++ {
		assert.Less(t, many.Completed[i-1].Name, many.Completed[i].Name)
	}
	for _, f := range makeFiles(200) {
		assert.Equal(t, 2, engine.timesSeen(f.Name), "each file is computed once per run")
	}
}

func TestWorkerPoolRecordsFileFailures(t *testing.T) {
	engine := newFakeEngine()
	files := makeFiles(20)
	engine.failures[files[3].Name] = errors.MalformedOutput("garbage", "unexpected token")
	engine.failures[files[11].Name] = errors.DegenerateMetricf("no revisions")

	result, err := NewWorkerPool(engine, 4, quietLogger()).Run(context.Background(), NewFileQueue(files...), releaseCommit)
	require.NoError(t, err)
	assert.Len(t, result.Completed, 18)
	require.Len(t, result.Failures, 2)

	paths := []string{result.Failures[0].Path, result.Failures[1].Path}
	assert.ElementsMatch(t, []string{files[3].Name, files[11].Name}, paths)
	assert.Empty(t, files[3].Metrics(), "failed files keep no partial metrics")
	assert.NotEmpty(t, result.Failures[0].Message())
}

func TestWorkerPoolStopsOnFatalError(t *testing.T) {
	engine := newFakeEngine()
	engine.delay = 5 * time.Millisecond
	files := makeFiles(100)
	engine.failures[files[2].Name] = errors.ProcessErrorf(fmt.Errorf("exit status 128"), "git log failed")

	result, err := NewWorkerPool(engine, 2, quietLogger()).Run(context.Background(), NewFileQueue(files...), releaseCommit)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Less(t, engine.computed.Load(), int64(len(files)))
	assert.Empty(t, result.Failures)
}

func TestWorkerPoolHonorsCancellation(t *testing.T) {
	engine := newFakeEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWorkerPool(engine, 3, quietLogger()).Run(ctx, NewFileQueue(makeFiles(10)...), releaseCommit)
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.Zero(t, engine.computed.Load())
}

func TestNewWorkerPoolDefaults(t *testing.T) {
	p := NewWorkerPool(newFakeEngine(), 0, nil)
	assert.GreaterOrEqual(t, p.Workers(), 1)
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"date": StrategyDate, " TAG ": StrategyTag, "pattern": StrategyPattern} {
		got, err := ParseStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("latest")
	assert.Error(t, err)
}

func builderFixture() *fakeEngine {
	engine := newFakeEngine()
	c1 := models.NewCommit("1111111111111111111111111111111111111111", time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC))
	c2 := models.NewCommit("2222222222222222222222222222222222222222", time.Date(2020, 6, 10, 0, 0, 0, 0, time.UTC))
	engine.byDate = []models.Commit{c1, c2}
	engine.tags["1.0"] = c1
	engine.tags["2.0"] = c2
	engine.tags["pattern:2.0"] = c2
	engine.trees[c1.Hash] = map[string]string{
		"src/A.java": "a1",
		"README.md":  "r1",
	}
	engine.trees[c2.Hash] = map[string]string{
		"src/A.java":    "a2",
		"src/B.JAVA":    "b2",
		"docs/intro.md": "d2",
	}
	return engine
}

func TestBuilderByDate(t *testing.T) {
	engine := builderFixture()
	sink := &recordingSink{}
	b := NewBuilder(engine, &BuilderConfig{Workers: 2, Strategy: StrategyDate, Extensions: []string{".java"}}, quietLogger(), sink)

	releases := []models.Release{
		{ID: 1, Name: "0.1", Date: time.Date(2019, 1, 1, 23, 59, 59, 0, time.UTC)},
		{ID: 2, Name: "1.0", Date: time.Date(2020, 2, 1, 23, 59, 59, 0, time.UTC)},
		{ID: 3, Name: "2.0", Date: time.Date(2020, 7, 1, 23, 59, 59, 0, time.UTC)},
	}
	reports, err := b.Build(context.Background(), releases)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.True(t, reports[0].Skipped, "no commit predates the first release")
	assert.NotEmpty(t, reports[0].SkipReason)

	assert.Equal(t, engine.byDate[0], reports[1].Commit)
	assert.Equal(t, 1, reports[1].FileCount)
	assert.Equal(t, engine.byDate[1], reports[2].Commit)
	assert.Equal(t, 2, reports[2].Measured, "extension filter is case-insensitive")

	require.Len(t, sink.results, 2)
	last := sink.results[1]
	assert.Equal(t, releases[2], last.Release)
	require.Len(t, last.Files, 2)
	assert.Equal(t, "src/A.java", last.Files[0].Name)
	assert.Equal(t, "src/B.JAVA", last.Files[1].Name)
	assert.True(t, last.Files[0].Populated())
	assert.Equal(t, engine.byDate[1].Hash, last.Files[0].Commit())
}

func TestBuilderStrategies(t *testing.T) {
	engine := builderFixture()
	release := models.Release{ID: 3, Name: "2.0"}

	tag := NewBuilder(engine, &BuilderConfig{Strategy: StrategyTag}, quietLogger())
	c, err := tag.ResolveCommit(context.Background(), release)
	require.NoError(t, err)
	assert.Equal(t, engine.byDate[1], c)

	pattern := NewBuilder(engine, &BuilderConfig{Strategy: StrategyPattern}, quietLogger())
	c, err = pattern.ResolveCommit(context.Background(), release)
	require.NoError(t, err)
	assert.Equal(t, engine.byDate[1], c)

	date := NewBuilder(engine, nil, quietLogger())
	_, err = date.ResolveCommit(context.Background(), release)
	assert.True(t, errors.IsNotFound(err), "a release without a date cannot be placed")
}

func TestBuilderPropagatesFatalErrors(t *testing.T) {
	engine := builderFixture()
	delete(engine.trees, engine.byDate[1].Hash)
	b := NewBuilder(engine, &BuilderConfig{Strategy: StrategyTag}, quietLogger())

	reports, err := b.Build(context.Background(), []models.Release{{ID: 2, Name: "1.0"}, {ID: 3, Name: "2.0"}, {ID: 4, Name: "3.0"}})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Len(t, reports, 1)
}

func TestBuilderSinkError(t *testing.T) {
	engine := builderFixture()
	sink := &recordingSink{err: errors.StorageError(fmt.Errorf("disk full"), "save metrics")}
	b := NewBuilder(engine, &BuilderConfig{Strategy: StrategyTag}, quietLogger(), sink)

	_, err := b.BuildRelease(context.Background(), models.Release{ID: 2, Name: "1.0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
