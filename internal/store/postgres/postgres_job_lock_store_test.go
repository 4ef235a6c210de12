package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresJobLockStore_Add(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresJobLockStore(db, testExecutor())

	mock.ExpectExec("INSERT INTO sched_schema.job_locks").
		WithArgs("job-1", time.UnixMilli(90_000).UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Add(context.Background(), "job-1", 90_000))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobLockStore_Find(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresJobLockStore(db, testExecutor())

	mock.ExpectQuery("SELECT expires_at FROM sched_schema.job_locks").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(time.UnixMilli(5_000)))

	lock, err := s.Find(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, lock.Locked)
	assert.Equal(t, int64(5_000), lock.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobLockStore_Find_Unlocked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresJobLockStore(db, testExecutor())

	mock.ExpectQuery("SELECT expires_at FROM sched_schema.job_locks").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}))

	lock, err := s.Find(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, lock.Locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobLockStore_FindAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresJobLockStore(db, testExecutor())

	mock.ExpectQuery("SELECT id, expires_at FROM sched_schema.job_locks").
		WillReturnRows(sqlmock.NewRows([]string{"id", "expires_at"}).
			AddRow("a", time.UnixMilli(1_000)).
			AddRow("b", time.UnixMilli(2_000)))

	locks, err := s.FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, locks, 2)
	assert.Equal(t, int64(2_000), locks["b"].ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobLockStore_DeleteAndDeleteAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresJobLockStore(db, testExecutor())

	mock.ExpectExec("DELETE FROM sched_schema.job_locks WHERE id").
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM sched_schema.job_locks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "a"))
	require.NoError(t, s.DeleteAll(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
