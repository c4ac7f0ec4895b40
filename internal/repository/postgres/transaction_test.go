package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxManager_WithTx(t *testing.T) {
	t.Run("successful_transaction_commits", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO history_snapshots").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			_, err := tx.Exec("INSERT INTO history_snapshots DEFAULT VALUES")
			return err
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("function_error_rolls_back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)
		opErr := errors.New("operation failed")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err = tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			return opErr
		})

		assert.Equal(t, opErr, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin_transaction_failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin().WillReturnError(errors.New("begin failed"))

		called := false
		err = tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			called = true
			return nil
		})

		require.Error(t, err)
		assert.False(t, called)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit_failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("commit failed"))

		err = tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			return nil
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback_failure_keeps_both_errors", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)
		opErr := errors.New("operation error")

		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("rollback failed"))

		err = tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			return opErr
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, opErr)
		assert.Contains(t, err.Error(), "rollback failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTxManager_WithReadOnlyTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectCommit()

	var n int
	err = tm.WithReadOnlyTx(context.Background(), func(tx *sql.Tx) error {
		return tx.QueryRow("SELECT 1").Scan(&n)
	})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
