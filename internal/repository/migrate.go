package repository

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
)

const jobsTable = "jobs"

// column types differ between the production and the embedded store
type columnTypes struct {
	id, json, text, timestamp string
}

func typesFor(d string) columnTypes {
	if d == dialect.Postgres {
		return columnTypes{id: "uuid", json: "jsonb", text: "text", timestamp: "timestamptz"}
	}
	return columnTypes{id: "text", json: "text", text: "text", timestamp: "datetime"}
}

func createJobsTable(t columnTypes) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s NOT NULL PRIMARY KEY,
	type varchar(64) NOT NULL,
	status varchar(16) NOT NULL,
	payload %s NOT NULL,
	result %s NULL,
	error %s NULL,
	message %s NULL,
	created_by varchar(255) NOT NULL,
	related_entity_id varchar(255) NULL,
	attempts integer NOT NULL DEFAULT 0,
	version bigint NOT NULL DEFAULT 0,
	created_at %s NOT NULL,
	updated_at %s NOT NULL
)`, jobsTable, t.id, t.json, t.json, t.text, t.text, t.timestamp, t.timestamp)
}

// Migrate creates the jobs table and its indexes when missing.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	stmts := []string{
		createJobsTable(typesFor(db.Dialect)),
		"CREATE INDEX IF NOT EXISTS jobs_created_by_created_at ON jobs (created_by, created_at)",
		"CREATE INDEX IF NOT EXISTS jobs_status ON jobs (status)",
		"CREATE INDEX IF NOT EXISTS jobs_related_entity_id ON jobs (related_entity_id)",
	}
	for i, q := range stmts {
		if err := db.Driver.Exec(ctx, q, []any{}, nil); err != nil {
			logger.Error("migration failed", "statement", i, "error", err)
			return fmt.Errorf("migrate jobs: %w", err)
		}
	}
	logger.Info("migration complete", "table", jobsTable, "dialect", db.Dialect)
	return nil
}
