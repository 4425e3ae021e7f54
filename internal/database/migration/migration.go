package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is checked before migrating; when it exists the schema is assumed current.
const sentinelTable = "public.assets"

var steps = []migrationStep{
	{
		Name: "create_table_assets",
		SQL: `CREATE TABLE IF NOT EXISTS assets (
  id              TEXT        PRIMARY KEY,
  original_name   TEXT        NOT NULL,
  filename        TEXT        NOT NULL UNIQUE,
  mime_type       TEXT        NOT NULL,
  kind            TEXT        NOT NULL,
  size            BIGINT      NOT NULL CHECK (size >= 0),
  storage_key     TEXT        NOT NULL UNIQUE,
  path            TEXT        NOT NULL,
  url             TEXT        NOT NULL,
  thumbnail_key   TEXT        NOT NULL DEFAULT '',
  thumbnail_url   TEXT        NOT NULL DEFAULT '',
  metadata        JSONB       NOT NULL DEFAULT '{}'::jsonb,
  client_metadata JSONB,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_assets_kind",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_assets_kind ON assets (kind);`,
	},
	{
		Name: "create_index_assets_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets (created_at);`,
	},
}

// EnsureMigrated creates the catalog schema when the assets table is absent.
func EnsureMigrated(ctx context.Context, db *sql.DB, log logrus.FieldLogger, dbHost string) error {
	start := time.Now()
	log = log.WithFields(logrus.Fields{"component": "database", "db_host": dbHost})

	log.WithField("event", "db_migration_check").Info("checking schema")

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", sentinelTable).Scan(&exists); err != nil {
		log.WithFields(logrus.Fields{
			"event":       "db_migration_failed",
			"duration_ms": time.Since(start).Milliseconds(),
		}).WithError(err).Error("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.WithFields(logrus.Fields{
			"event":       "db_migration_skip",
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("schema already exists, skipping migration")
		return nil
	}

	log.WithField("event", "db_migration_start").Info("applying schema")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.WithFields(logrus.Fields{
				"event":            "db_migration_failed",
				"migration_step":   step.Name,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			}).WithError(err).Error("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.WithFields(logrus.Fields{
			"event":            "db_migration_step",
			"migration_step":   step.Name,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		}).Info("migration step applied")
	}

	log.WithFields(logrus.Fields{
		"event":       "db_migration_success",
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("schema migrated")

	return nil
}
