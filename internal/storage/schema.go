package storage

import (
	"fmt"
	"strings"

	"github.com/rohankatakam/defectset/internal/models"
)

// dialect carries the column types that differ between drivers
type dialect struct {
	driver    string
	integer   string
	real      string
	timestamp string
}

var (
	sqliteDialect   = dialect{driver: "sqlite3", integer: "INTEGER", real: "REAL", timestamp: "DATETIME"}
	postgresDialect = dialect{driver: "pgx", integer: "BIGINT", real: "DOUBLE PRECISION", timestamp: "TIMESTAMPTZ"}
)

// metricColumn is the column holding key, e.g. "loc_added"
func metricColumn(key models.MetricKey) string {
	return strings.ToLower(key.String())
}

func metricColumns() []string {
	keys := models.AllMetricKeys()
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = metricColumn(k)
	}
	return cols
}

func (d dialect) schema() string {
	var metrics strings.Builder
	for _, k := range models.AllMetricKeys() {
		typ := d.integer
		if k.Kind() == models.KindFloat {
			typ = d.real
		}
		fmt.Fprintf(&metrics, "\t\t%s %s,\n", metricColumn(k), typ)
	}

	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		repository TEXT NOT NULL,
		strategy TEXT NOT NULL,
		started_at %[1]s NOT NULL,
		finished_at %[1]s
	);

	CREATE TABLE IF NOT EXISTS releases (
		run_id TEXT NOT NULL REFERENCES runs(id),
		release_id %[2]s NOT NULL,
		name TEXT NOT NULL,
		release_date %[1]s,
		commit_hash TEXT NOT NULL,
		commit_date %[1]s,
		file_count %[2]s NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, release_id)
	);

	CREATE TABLE IF NOT EXISTS file_metrics (
		run_id TEXT NOT NULL,
		release_id %[2]s NOT NULL,
		path TEXT NOT NULL,
		blob_hash TEXT,
%[3]s		PRIMARY KEY (run_id, release_id, path),
		FOREIGN KEY (run_id, release_id) REFERENCES releases(run_id, release_id)
	);

	CREATE TABLE IF NOT EXISTS failures (
		run_id TEXT NOT NULL,
		release_id %[2]s NOT NULL,
		path TEXT NOT NULL,
		error_type TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at %[1]s NOT NULL,
		PRIMARY KEY (run_id, release_id, path),
		FOREIGN KEY (run_id, release_id) REFERENCES releases(run_id, release_id)
	);

	CREATE INDEX IF NOT EXISTS idx_file_metrics_path ON file_metrics(path);
	`, d.timestamp, d.integer, metrics.String())
}
