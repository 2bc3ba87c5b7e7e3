package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schemaVersion = 1

// schemaV1 is portable between SQLite and PostgreSQL: timestamps are
// fixed-width UTC text so they sort lexically.
var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
    id               TEXT PRIMARY KEY,
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    code_template    TEXT NOT NULL DEFAULT '',
    test_cases       TEXT NOT NULL DEFAULT '{"tests":[]}',
    difficulty       TEXT NOT NULL DEFAULT 'EASY'
                     CHECK(difficulty IN ('EASY','MEDIUM','HARD','EXPERT')),
    max_output_chars INTEGER NOT NULL DEFAULT 0,
    published        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS submissions (
    id            TEXT PRIMARY KEY,
    task_id       TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    code          TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'PENDING'
                  CHECK(status IN ('PENDING','PASSED','FAILED','ERROR')),
    test_results  TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    tests_passed  INTEGER NOT NULL DEFAULT 0,
    tests_total   INTEGER NOT NULL DEFAULT 0,
    resubmission  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_task ON submissions(task_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status)`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if current < 1 {
		for _, stmt := range schemaV1 {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema v1: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_version (version) VALUES (?)`), schemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}
