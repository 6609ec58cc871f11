package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables and indexes the harvester needs. It is
// idempotent and run at startup.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL,
			authors         TEXT[] NOT NULL DEFAULT '{}',
			description     TEXT NOT NULL DEFAULT '',
			keywords        TEXT[] NOT NULL DEFAULT '{}',
			year            INT NOT NULL DEFAULT 0,
			source          TEXT NOT NULL DEFAULT '',
			type            TEXT NOT NULL DEFAULT '',
			identifier      TEXT NOT NULL DEFAULT '',
			identifier_type TEXT NOT NULL DEFAULT '',
			url             TEXT NOT NULL DEFAULT '',
			category        TEXT NOT NULL,
			signature       TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_category ON records (category, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_records_signature ON records (signature)`,
		`CREATE TABLE IF NOT EXISTS harvest_meta (
			key            TEXT PRIMARY KEY,
			last_updated   TIMESTAMPTZ NOT NULL DEFAULT now(),
			thesis_count   INT NOT NULL DEFAULT 0,
			article_count  INT NOT NULL DEFAULT 0,
			research_count INT NOT NULL DEFAULT 0,
			total          INT NOT NULL DEFAULT 0,
			last_harvest   TIMESTAMPTZ NOT NULL DEFAULT now(),
			error_context  TEXT,
			error_message  TEXT,
			error_time     TIMESTAMPTZ
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
