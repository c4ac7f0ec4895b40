package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"channel-history/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSnapshot() *domain.Snapshot {
	first := domain.NewMessage("C1", "1705276800.000100", "U1", "hello")
	first.Reactions["fire"] = 2
	second := domain.NewMessage("C1", "1705276700.000100", "U2", "earlier")
	second.ThreadTimestamp = "1705276600.000100"

	day := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	return &domain.Snapshot{
		ID:        "3f0c9a3e-6c55-4c1d-9d0e-2f7d3a1b9e10",
		ChannelID: "C1",
		Day:       &day,
		Count:     1000,
		TakenAt:   time.Date(2024, time.January, 16, 9, 0, 0, 0, time.UTC),
		Messages:  []*domain.Message{first, second},
	}
}

func TestSnapshotRepository_Save(t *testing.T) {
	t.Run("inserts_snapshot_and_messages", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSnapshotRepository(db)
		snapshot := newTestSnapshot()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(insertSnapshotQuery)).
			WithArgs(snapshot.ID, "C1", sqlmock.AnyArg(), 1000, snapshot.TakenAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		prep := mock.ExpectPrepare(regexp.QuoteMeta(insertSnapshotMessageQuery))
		prep.ExpectExec().
			WithArgs(snapshot.ID, 0, "1705276800.000100", "U1", "hello", "", []byte(`{"fire":2}`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().
			WithArgs(snapshot.ID, 1, "1705276700.000100", "U2", "earlier", "1705276600.000100", []byte(`{}`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = repo.Save(context.Background(), snapshot)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty_history_skips_message_insert", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSnapshotRepository(db)
		snapshot := newTestSnapshot()
		snapshot.Messages = nil
		snapshot.Day = nil

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(insertSnapshotQuery)).
			WithArgs(snapshot.ID, "C1", nil, 1000, snapshot.TakenAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Save(context.Background(), snapshot))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate_id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSnapshotRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(insertSnapshotQuery)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "history_snapshots_pkey"})
		mock.ExpectRollback()

		err = repo.Save(context.Background(), newTestSnapshot())
		assert.ErrorIs(t, err, ErrSnapshotExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("message_insert_failure_rolls_back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSnapshotRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(insertSnapshotQuery)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectPrepare(regexp.QuoteMeta(insertSnapshotMessageQuery)).
			ExpectExec().WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err = repo.Save(context.Background(), newTestSnapshot())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save snapshot")
		assert.Contains(t, err.Error(), "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSnapshotRepository_Latest(t *testing.T) {
	t.Run("loads_snapshot_in_position_order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSnapshotRepository(db)
		takenAt := time.Date(2024, time.January, 16, 9, 0, 0, 0, time.UTC)
		day := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(latestSnapshotQuery)).
			WithArgs("C1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "channel_id", "day", "requested_count", "taken_at"}).
				AddRow("snap-1", "C1", day, 50, takenAt))
		mock.ExpectQuery(regexp.QuoteMeta(snapshotMessagesQuery)).
			WithArgs("snap-1").
			WillReturnRows(sqlmock.NewRows([]string{"ts", "user_id", "text", "thread_ts", "reactions"}).
				AddRow("2.0", "U1", "second", "", []byte(`{"fire":2}`)).
				AddRow("1.0", "U2", "first", "", []byte(`{}`)))
		mock.ExpectCommit()

		snapshot, err := repo.Latest(context.Background(), "C1")
		require.NoError(t, err)

		assert.Equal(t, "snap-1", snapshot.ID)
		assert.Equal(t, 50, snapshot.Count)
		require.NotNil(t, snapshot.Day)
		assert.True(t, day.Equal(*snapshot.Day))
		require.Len(t, snapshot.Messages, 2)
		assert.Equal(t, "second", snapshot.Messages[0].Text)
		assert.Equal(t, "C1", snapshot.Messages[0].ChannelID)
		assert.Equal(t, map[string]int{"fire": 2}, snapshot.Messages[0].Reactions)
		assert.Empty(t, snapshot.Messages[1].Reactions)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no_snapshot", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSnapshotRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(latestSnapshotQuery)).
			WithArgs("C404").
			WillReturnRows(sqlmock.NewRows([]string{"id", "channel_id", "day", "requested_count", "taken_at"}))
		mock.ExpectRollback()

		_, err = repo.Latest(context.Background(), "C404")
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt_reactions", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewSnapshotRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(latestSnapshotQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "channel_id", "day", "requested_count", "taken_at"}).
				AddRow("snap-1", "C1", nil, 1000, time.Now()))
		mock.ExpectQuery(regexp.QuoteMeta(snapshotMessagesQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"ts", "user_id", "text", "thread_ts", "reactions"}).
				AddRow("1.0", "U1", "x", "", []byte(`not json`)))
		mock.ExpectRollback()

		_, err = repo.Latest(context.Background(), "C1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode reactions")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSnapshotRepository_MissingSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSnapshotRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertSnapshotQuery)).
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "history_snapshots" does not exist`})
	mock.ExpectRollback()

	err = repo.Save(context.Background(), newTestSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive schema is missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}
