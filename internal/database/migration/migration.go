package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is the table whose presence marks the schema as migrated.
const sentinelTable = "public.rockets"

var steps = []migrationStep{
	{
		Name: "create_table_rockets",
		SQL: `CREATE TABLE IF NOT EXISTS rockets (
  id                  TEXT        PRIMARY KEY,
  type                TEXT        NOT NULL DEFAULT '',
  speed               INTEGER     NOT NULL DEFAULT 0,
  mission             TEXT        NOT NULL DEFAULT '',
  launch_time         TIMESTAMPTZ NULL,
  last_message_number INTEGER     NOT NULL CHECK (last_message_number >= 0),
  status              TEXT        NOT NULL DEFAULT '',
  mission_end_time    TIMESTAMPTZ NULL,
  updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_rockets_type",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_rockets_type ON rockets (type);`,
	},
	{
		Name: "create_index_rockets_updated_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_rockets_updated_at ON rockets (updated_at);`,
	},
}

// EnsureMigrated creates the snapshot schema unless the rockets table already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"))

	var exists bool
	err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", sentinelTable).Scan(&exists)
	if err != nil {
		log.Error("db_migration_failed", zap.Error(err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip", zap.String("reason", "schema already exists"))
		return nil
	}

	log.Info("db_migration_start", zap.Int("steps", len(steps)))
	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Debug("db_migration_step",
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success", zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}
