package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE session (
  id         INTEGER PRIMARY KEY CHECK (id = 1),
  token      TEXT    NOT NULL,
  patient_id TEXT    NOT NULL,
  expires_at INTEGER NOT NULL,
  saved_at   INTEGER NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestGet_Empty_ReturnsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	s, err := r.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSaveAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, r.Save(ctx, Session{Token: "tok", PatientID: "RSSMRA80A01H501U", ExpiresAt: exp}))

	s, err := r.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, "RSSMRA80A01H501U", s.PatientID)
	assert.True(t, exp.Equal(s.ExpiresAt))
}

func TestSave_ReplacesPrevious(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, Session{Token: "old", PatientID: "a", ExpiresAt: time.Now()}))
	require.NoError(t, r.Save(ctx, Session{Token: "new", PatientID: "b", ExpiresAt: time.Now()}))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM session`).Scan(&n))
	assert.Equal(t, 1, n)

	s, err := r.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", s.Token)
	assert.Equal(t, "b", s.PatientID)
}

func TestClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, Session{Token: "tok", PatientID: "p", ExpiresAt: time.Now()}))
	require.NoError(t, r.Clear(ctx))

	s, err := r.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGet_DBError_IsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT token, patient_id, expires_at FROM session`).WillReturnError(sql.ErrConnDone)

	_, err = NewSQLiteRepository(db).Get(context.Background())
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "failed to get session")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, Session{ExpiresAt: now}.Expired(now))
	assert.True(t, Session{ExpiresAt: now.Add(-time.Second)}.Expired(now))
	assert.False(t, Session{ExpiresAt: now.Add(time.Minute)}.Expired(now))
}
