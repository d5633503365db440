package dataset

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/rohankatakam/defectset/internal/vcs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PoolResult holds the files a pool finished and the ones it gave up on
type PoolResult struct {
	Completed []*models.File
	Failures  []models.Failure
	Duration  time.Duration
}

// WorkerPool computes file metrics with a fixed number of workers sharing one
// engine
type WorkerPool struct {
	engine  vcs.VersionControlSystem
	workers int
	logger  *logrus.Logger
}

// NewWorkerPool creates a pool. workers < 1 selects runtime.NumCPU().
func NewWorkerPool(engine vcs.VersionControlSystem, workers int, logger *logrus.Logger) *WorkerPool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WorkerPool{engine: engine, workers: workers, logger: logger}
}

// Workers returns the pool size
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Run drains queue, computing every file's metrics as of release. Files that
// fail with a non-fatal error are cleared and reported in Failures. A fatal
// error stops all workers after their current file and is returned.
// Completed and Failures are sorted by path.
func (p *WorkerPool) Run(ctx context.Context, queue *FileQueue, release models.Commit) (*PoolResult, error) {
	start := time.Now()
	result := &PoolResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.workers; w++ {
		worker := w
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				file, ok := queue.Pop()
				if !ok {
					return nil
				}

				err := p.engine.ComputeFileMetrics(gctx, file, release)
				if err == nil {
					mu.Lock()
					result.Completed = append(result.Completed, file)
					mu.Unlock()
					continue
				}

				if errors.IsFatal(err) {
					return err
				}
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}

				p.logger.WithFields(logrus.Fields{
					"worker":  worker,
					"file":    file.Name,
					"release": release.Short(),
					"type":    errors.GetType(err).String(),
				}).WithError(err).Error("File metrics failed")

				file.Reset(release.Hash)
				mu.Lock()
				result.Failures = append(result.Failures, models.Failure{Path: file.Name, Err: err})
				mu.Unlock()
			}
		})
	}

	err := g.Wait()
	sort.Slice(result.Completed, func(i, j int) bool {
		return result.Completed[i].Name < result.Completed[j].Name
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Path < result.Failures[j].Path
	})
	result.Duration = time.Since(start)
	if err != nil {
		return result, err
	}
	return result, nil
}
