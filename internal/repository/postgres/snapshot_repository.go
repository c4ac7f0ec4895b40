package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"channel-history/internal/domain"
	"channel-history/internal/observability"
)

const (
	snapshotsPrimaryKey = "history_snapshots_pkey"

	insertSnapshotQuery = `
		INSERT INTO history_snapshots (id, channel_id, day, requested_count, taken_at)
		VALUES ($1, $2, $3, $4, $5)`

	insertSnapshotMessageQuery = `
		INSERT INTO snapshot_messages (snapshot_id, position, ts, user_id, text, thread_ts, reactions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	latestSnapshotQuery = `
		SELECT id, channel_id, day, requested_count, taken_at
		FROM history_snapshots
		WHERE channel_id = $1
		ORDER BY taken_at DESC
		LIMIT 1`

	snapshotMessagesQuery = `
		SELECT ts, user_id, text, thread_ts, reactions
		FROM snapshot_messages
		WHERE snapshot_id = $1
		ORDER BY position`
)

// ErrSnapshotExists is returned when a snapshot id is reused
var ErrSnapshotExists = errors.New("snapshot already exists")

// SnapshotRepository archives fetched histories in PostgreSQL
type SnapshotRepository struct {
	tx *TxManager
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{tx: NewTxManager(db)}
}

// Save stores the snapshot and its messages in one transaction
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	start := time.Now()
	defer func() {
		observability.DBQueryDuration.WithLabelValues("insert", "history_snapshots").Observe(time.Since(start).Seconds())
	}()

	err := r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertSnapshotQuery, snapshot.ID, snapshot.ChannelID, nullableDay(snapshot.Day), snapshot.Count, snapshot.TakenAt)
		if err != nil {
			return err
		}

		if len(snapshot.Messages) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, insertSnapshotMessageQuery)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, msg := range snapshot.Messages {
			reactions, err := json.Marshal(reactionsOrEmpty(msg.Reactions))
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, snapshot.ID, i, msg.Timestamp, msg.User, msg.Text, msg.ThreadTimestamp, reactions); err != nil {
				return err
			}
		}
		return nil
	})

	if IsUniqueViolation(err, snapshotsPrimaryKey) {
		return fmt.Errorf("%w: %s", ErrSnapshotExists, snapshot.ID)
	}
	if IsUndefinedTable(err) {
		return fmt.Errorf("archive schema is missing: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot of a channel
func (r *SnapshotRepository) Latest(ctx context.Context, channelID string) (*domain.Snapshot, error) {
	start := time.Now()
	defer func() {
		observability.DBQueryDuration.WithLabelValues("select", "history_snapshots").Observe(time.Since(start).Seconds())
	}()

	snapshot := &domain.Snapshot{Messages: make([]*domain.Message, 0)}

	err := r.tx.WithReadOnlyTx(ctx, func(tx *sql.Tx) error {
		var day sql.NullTime
		err := tx.QueryRowContext(ctx, latestSnapshotQuery, channelID).Scan(&snapshot.ID, &snapshot.ChannelID, &day, &snapshot.Count, &snapshot.TakenAt)
		if err != nil {
			return err
		}
		if day.Valid {
			d := day.Time.UTC()
			snapshot.Day = &d
		}

		rows, err := tx.QueryContext(ctx, snapshotMessagesQuery, snapshot.ID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			msg := domain.NewMessage(snapshot.ChannelID, "", "", "")
			var reactions []byte
			if err := rows.Scan(&msg.Timestamp, &msg.User, &msg.Text, &msg.ThreadTimestamp, &reactions); err != nil {
				return fmt.Errorf("failed to scan message: %w", err)
			}
			if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
				return fmt.Errorf("failed to decode reactions: %w", err)
			}
			snapshot.Messages = append(snapshot.Messages, msg)
		}
		return rows.Err()
	})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snapshot, nil
}

func nullableDay(day *time.Time) sql.NullTime {
	if day == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *day, Valid: true}
}

func reactionsOrEmpty(reactions map[string]int) map[string]int {
	if reactions == nil {
		return map[string]int{}
	}
	return reactions
}
