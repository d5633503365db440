package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/sirupsen/logrus"
)

// NewSQLiteStore opens (creating if needed) a SQLite database file
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.StorageError(err, "create database directory")
	}

	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.StorageError(err, fmt.Sprintf("connect to sqlite %s", path))
	}
	// One writer; also keeps the schema visible to every query
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteDialect, logger)
}
