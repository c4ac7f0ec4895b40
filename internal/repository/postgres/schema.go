package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
	CREATE TABLE IF NOT EXISTS history_snapshots (
		id UUID PRIMARY KEY,
		channel_id TEXT NOT NULL CHECK (length(channel_id) > 0),
		day DATE,
		requested_count INTEGER NOT NULL,
		taken_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS history_snapshots_channel_taken_idx
		ON history_snapshots (channel_id, taken_at DESC);

	CREATE TABLE IF NOT EXISTS snapshot_messages (
		snapshot_id UUID NOT NULL REFERENCES history_snapshots(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		ts TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		thread_ts TEXT NOT NULL DEFAULT '',
		reactions JSONB NOT NULL DEFAULT '{}'::jsonb,
		PRIMARY KEY (snapshot_id, position)
	);
`

// Migrate creates the archive tables when they do not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
