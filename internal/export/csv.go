// Package export writes measured releases as a CSV dataset, one row per
// release and file.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
)

// Header returns the column names: release id, release name, path, then every
// metric in enumeration order
func Header() []string {
	header := []string{"RELEASE_ID", "RELEASE_NAME", "FILE"}
	for _, k := range models.AllMetricKeys() {
		header = append(header, k.String())
	}
	return header
}

// Row formats one file. Missing or undefined metrics are empty cells.
func Row(release models.Release, file *models.File) []string {
	row := []string{strconv.Itoa(release.ID), release.Name, file.Name}
	for _, k := range models.AllMetricKeys() {
		v, _ := file.Value(k)
		row = append(row, v.String())
	}
	return row
}

// CSVWriter appends release rows to a CSV stream. The header is written
// before the first row. It is safe for concurrent use.
type CSVWriter struct {
	mu      sync.Mutex
	out     *csv.Writer
	closer  io.Closer
	path    string
	started bool
	rows    int
}

// NewCSVWriter writes to w
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{out: csv.NewWriter(w)}
}

// CreateCSV creates (or truncates) path, creating parent directories
func CreateCSV(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.StorageErrorf(err, "create export directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.StorageErrorf(err, "create %s", path)
	}
	w := NewCSVWriter(f)
	w.closer = f
	w.path = path
	return w, nil
}

// Path returns the output file, or "" for stream writers
func (w *CSVWriter) Path() string {
	return w.path
}

// Rows returns the number of data rows written
func (w *CSVWriter) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// WriteRelease appends one row per measured file
func (w *CSVWriter) WriteRelease(ctx context.Context, result *models.ReleaseMetrics) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		if err := w.out.Write(Header()); err != nil {
			return errors.StorageError(err, "write csv header")
		}
		w.started = true
	}
	for _, f := range result.Files {
		if err := w.out.Write(Row(result.Release, f)); err != nil {
			return errors.StorageErrorf(err, "write csv row for %s", f.Name)
		}
		w.rows++
	}
	w.out.Flush()
	if err := w.out.Error(); err != nil {
		return errors.StorageError(err, "flush csv")
	}
	return nil
}

// Close flushes buffered rows and closes the underlying file
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.out.Flush()
	err := w.out.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return errors.StorageError(err, "close csv")
	}
	return nil
}
