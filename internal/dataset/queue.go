// Package dataset drives metric computation: it loads the files of a release
// commit into a shared queue and drains it with a pool of workers.
package dataset

import (
	"sync"

	"github.com/rohankatakam/defectset/internal/models"
)

// FileQueue is a mutex-protected FIFO of files. Loading happens once before
// the workers start; Pop is safe for concurrent use and hands every file to
// exactly one caller.
type FileQueue struct {
	mu    sync.Mutex
	items []*models.File
	head  int
}

// NewFileQueue creates a queue preloaded with files
func NewFileQueue(files ...*models.File) *FileQueue {
	q := &FileQueue{}
	q.PushAll(files)
	return q
}

// PushAll appends files in order
func (q *FileQueue) PushAll(files []*models.File) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, files...)
}

// Pop removes and returns the oldest file; ok is false once the queue is empty
func (q *FileQueue) Pop() (file *models.File, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.items) {
		return nil, false
	}
	file = q.items[q.head]
	q.items[q.head] = nil
	q.head++
	return file, true
}

// Len returns the number of files not yet taken
func (q *FileQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
