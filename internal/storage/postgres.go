package storage

import (
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/sirupsen/logrus"
)

// NewPostgresStore connects to PostgreSQL through the pgx stdlib driver
func NewPostgresStore(dsn string, logger *logrus.Logger) (*SQLStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, errors.StorageError(err, "connect to postgres")
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, postgresDialect, logger)
}
