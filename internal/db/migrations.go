package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.DB) error
}

// migrations is the list of all migrations in order. SchemaSQL reflects the
// state after the last entry; fresh installs apply SchemaSQL and stamp the
// whole history, existing databases replay only what they are missing.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_governance_schema",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_stalled_notified_at_to_playbook_runs",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_job_correlation_index_for_run_cancellation",
		Up:      migrationV3,
	},
}

// migrationV1 creates the initial governance schema.
func migrationV1(conn *sql.DB) error {
	_, err := conn.Exec(SchemaSQL)
	return err
}

// migrationV2 adds the stalled-run notification stamp so the sweeper can
// report a stalled run exactly once.
func migrationV2(conn *sql.DB) error {
	_, err := conn.Exec(`ALTER TABLE playbook_runs ADD COLUMN stalled_notified_at DATETIME`)
	return err
}

// migrationV3 adds the correlation index used when cancelling a run's
// still-queued jobs.
func migrationV3(conn *sql.DB) error {
	_, err := conn.Exec(`CREATE INDEX IF NOT EXISTS idx_jobs_correlation ON async_jobs(correlation_id, status)`)
	return err
}

// RunMigrations executes all pending migrations
func RunMigrations() error {
	conn, err := GetDB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}
	return runMigrationsOn(conn)
}

func runMigrationsOn(conn *sql.DB) error {
	if err := ensureVersionTable(conn); err != nil {
		return err
	}

	var currentVersion int
	err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		if err := migration.Up(conn); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}
		if err := stampVersion(conn, migration.Version, migration.Name); err != nil {
			return err
		}
	}

	return nil
}

// StampAllMigrations marks the full history applied without executing it.
// Called after a fresh install applies SchemaSQL directly.
func StampAllMigrations(conn *sql.DB) error {
	if err := ensureVersionTable(conn); err != nil {
		return err
	}
	for _, migration := range migrations {
		if err := stampVersion(conn, migration.Version, migration.Name); err != nil {
			return err
		}
	}
	return nil
}

func ensureVersionTable(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			name TEXT,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

func stampVersion(conn *sql.DB, version int, name string) error {
	_, err := conn.Exec("INSERT OR IGNORE INTO schema_version (version, name) VALUES (?, ?)", version, name)
	if err != nil {
		return fmt.Errorf("failed to record migration %d: %w", version, err)
	}
	return nil
}
