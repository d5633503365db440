// Package storage persists dataset runs, per-release file metrics and
// per-file failures in SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by getters when no row matches
var ErrNotFound = stderrors.New("not found")

// SQLStore implements Store over any sqlx driver with ON CONFLICT upserts.
// Queries are written with "?" placeholders and rebound for the driver.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  *logrus.Logger
}

var _ Store = (*SQLStore)(nil)

func newSQLStore(db *sqlx.DB, d dialect, logger *logrus.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &SQLStore{db: db, dialect: d, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.StorageError(err, "init schema")
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	for _, stmt := range strings.Split(s.dialect.schema(), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Driver returns the database/sql driver name
func (s *SQLStore) Driver() string {
	return s.dialect.driver
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Run operations

func (s *SQLStore) SaveRun(ctx context.Context, run *Run) error {
	query := s.db.Rebind(`
		INSERT INTO runs (id, repository, strategy, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			repository = excluded.repository,
			strategy = excluded.strategy,
			finished_at = excluded.finished_at
	`)
	_, err := s.db.ExecContext(ctx, query, run.ID, run.Repository, run.Strategy, run.StartedAt.UTC(), utcPtr(run.FinishedAt))
	if err != nil {
		return errors.StorageErrorf(err, "save run %s", run.ID)
	}
	return nil
}

func (s *SQLStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	query := s.db.Rebind(`SELECT id, repository, strategy, started_at, finished_at FROM runs WHERE id = ?`)
	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.StorageErrorf(err, "get run %s", runID)
	}
	return &run, nil
}

// Release operations

func (s *SQLStore) SaveRelease(ctx context.Context, record *ReleaseRecord) error {
	query := s.db.Rebind(`
		INSERT INTO releases (run_id, release_id, name, release_date, commit_hash, commit_date, file_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, release_id) DO UPDATE SET
			name = excluded.name,
			release_date = excluded.release_date,
			commit_hash = excluded.commit_hash,
			commit_date = excluded.commit_date,
			file_count = excluded.file_count
	`)
	_, err := s.db.ExecContext(ctx, query,
		record.RunID, record.ReleaseID, record.Name, record.Date.UTC(),
		record.CommitHash, record.CommitDate.UTC(), record.FileCount)
	if err != nil {
		return errors.StorageErrorf(err, "save release %s", record.Name)
	}
	return nil
}

func (s *SQLStore) GetReleases(ctx context.Context, runID string) ([]*ReleaseRecord, error) {
	var records []*ReleaseRecord
	query := s.db.Rebind(`
		SELECT run_id, release_id, name, release_date, commit_hash, commit_date, file_count
		FROM releases WHERE run_id = ? ORDER BY release_date, release_id
	`)
	if err := s.db.SelectContext(ctx, &records, query, runID); err != nil {
		return nil, errors.StorageErrorf(err, "get releases of run %s", runID)
	}
	return records, nil
}

// Metric operations

func (s *SQLStore) SaveFileMetrics(ctx context.Context, runID string, releaseID int, files []*models.File) error {
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StorageError(err, "begin transaction")
	}
	defer tx.Rollback()

	cols := metricColumns()
	updates := make([]string, 0, len(cols)+1)
	updates = append(updates, "blob_hash = excluded.blob_hash")
	for _, c := range cols {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+4), ", ")
	query := s.db.Rebind(fmt.Sprintf(`
		INSERT INTO file_metrics (run_id, release_id, path, blob_hash, %s)
		VALUES (%s)
		ON CONFLICT (run_id, release_id, path) DO UPDATE SET %s
	`, strings.Join(cols, ", "), placeholders, strings.Join(updates, ", ")))

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return errors.StorageError(err, "prepare metric insert")
	}
	defer stmt.Close()

	for _, file := range files {
		args := make([]interface{}, 0, len(cols)+4)
		args = append(args, runID, releaseID, file.Name, file.Hash)
		for _, k := range models.AllMetricKeys() {
			v, _ := file.Value(k)
			args = append(args, v.Interface())
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.StorageErrorf(err, "save metrics for %s", file.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError(err, "commit metrics")
	}
	s.logger.WithFields(logrus.Fields{
		"run":     runID,
		"release": releaseID,
		"files":   len(files),
	}).Debug("Saved file metrics")
	return nil
}

func (s *SQLStore) GetFileMetrics(ctx context.Context, runID string, releaseID int) ([]*models.File, error) {
	keys := models.AllMetricKeys()
	query := s.db.Rebind(fmt.Sprintf(`
		SELECT path, blob_hash, %s FROM file_metrics
		WHERE run_id = ? AND release_id = ? ORDER BY path
	`, strings.Join(metricColumns(), ", ")))

	var commit string
	err := s.db.GetContext(ctx, &commit, s.db.Rebind(`SELECT commit_hash FROM releases WHERE run_id = ? AND release_id = ?`), runID, releaseID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.StorageErrorf(err, "get release %d of run %s", releaseID, runID)
	}

	rows, err := s.db.QueryxContext(ctx, query, runID, releaseID)
	if err != nil {
		return nil, errors.StorageErrorf(err, "query metrics of release %d", releaseID)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		var path string
		var blob sql.NullString
		ints := make([]sql.NullInt64, len(keys))
		floats := make([]sql.NullFloat64, len(keys))
		dest := []interface{}{&path, &blob}
		for i, k := range keys {
			if k.Kind() == models.KindFloat {
				dest = append(dest, &floats[i])
			} else {
				dest = append(dest, &ints[i])
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.StorageError(err, "scan metrics row")
		}

		file := models.NewFile(path, blob.String)
		file.Reset(commit)
		for i, k := range keys {
			switch {
			case k.Kind() == models.KindFloat && floats[i].Valid:
				file.SetFloat(k, floats[i].Float64)
			case k.Kind() != models.KindFloat && ints[i].Valid:
				file.SetInt(k, ints[i].Int64)
			default:
				file.Set(k, models.Undefined("stored as NULL"))
			}
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError(err, "iterate metrics rows")
	}
	return files, nil
}

// Failure operations

func (s *SQLStore) SaveFailures(ctx context.Context, runID string, releaseID int, failures []models.Failure) error {
	if len(failures) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StorageError(err, "begin transaction")
	}
	defer tx.Rollback()

	query := s.db.Rebind(`
		INSERT INTO failures (run_id, release_id, path, error_type, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, release_id, path) DO UPDATE SET
			error_type = excluded.error_type,
			message = excluded.message,
			created_at = excluded.created_at
	`)
	now := time.Now().UTC()
	for _, f := range failures {
		if _, err := tx.ExecContext(ctx, query, runID, releaseID, f.Path, errors.GetType(f.Err).String(), f.Message(), now); err != nil {
			return errors.StorageErrorf(err, "save failure for %s", f.Path)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError(err, "commit failures")
	}

	s.logger.WithFields(logrus.Fields{
		"run":      runID,
		"release":  releaseID,
		"failures": len(failures),
	}).Warn("Recorded file failures")
	return nil
}

func (s *SQLStore) GetFailures(ctx context.Context, runID string, releaseID int) ([]*FailureRecord, error) {
	var records []*FailureRecord
	query := s.db.Rebind(`
		SELECT run_id, release_id, path, error_type, message, created_at
		FROM failures WHERE run_id = ? AND release_id = ? ORDER BY path
	`)
	if err := s.db.SelectContext(ctx, &records, query, runID, releaseID); err != nil {
		return nil, errors.StorageErrorf(err, "get failures of release %d", releaseID)
	}
	return records, nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
