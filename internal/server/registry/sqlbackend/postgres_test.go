package sqlbackend

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresMock(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Postgres), mock
}

func TestPostgres_Get(t *testing.T) {
	b, mock := newPostgresMock(t)

	q := `^SELECT value FROM registry WHERE collection = \$1 AND key = \$2$`
	mock.ExpectQuery(q).
		WithArgs("authorized", "RSSMRA80A01H501Z").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"patient_id":"RSSMRA80A01H501Z"}`)))

	v, err := b.Get(context.Background(), registry.Authorized, "RSSMRA80A01H501Z")
	require.NoError(t, err)
	assert.JSONEq(t, `{"patient_id":"RSSMRA80A01H501Z"}`, string(v))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetNotFound(t *testing.T) {
	b, mock := newPostgresMock(t)

	mock.ExpectQuery(`^SELECT value FROM registry`).
		WithArgs("pending", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := b.Get(context.Background(), registry.Pending, "missing")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestPostgres_GetDBError(t *testing.T) {
	b, mock := newPostgresMock(t)

	mock.ExpectQuery(`^SELECT value FROM registry`).
		WillReturnError(errors.New("db down"))

	_, err := b.Get(context.Background(), registry.Pending, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestPostgres_List(t *testing.T) {
	b, mock := newPostgresMock(t)

	q := `^SELECT key, value FROM registry WHERE collection = \$1 ORDER BY key$`
	mock.ExpectQuery(q).
		WithArgs("invites").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("a", []byte(`1`)).
			AddRow("b", []byte(`2`)))

	recs, err := b.List(context.Background(), registry.Invites)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[1].Key)
	assert.Equal(t, []byte(`2`), recs[1].Value)
}

func TestPostgres_ApplyRunsInOneTransaction(t *testing.T) {
	b, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`^INSERT INTO registry \(collection,key,value,updated_at\) VALUES \(\$1,\$2,\$3,\$4\) ON CONFLICT \(collection, key\) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at$`).
		WithArgs("authorized", "p1", []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM registry WHERE collection = \$1 AND key = \$2$`).
		WithArgs("pending", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := b.Apply(context.Background(),
		registry.PutOp(registry.Authorized, "p1", []byte(`{}`)),
		registry.DeleteOp(registry.Pending, "p1"),
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyRollsBackOnError(t *testing.T) {
	b, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`^INSERT INTO registry`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM registry`).
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := b.Apply(context.Background(),
		registry.PutOp(registry.Authorized, "p1", []byte(`{}`)),
		registry.DeleteOp(registry.Pending, "p1"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error performing sql request")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyEmptyBatchIsNoop(t *testing.T) {
	b, mock := newPostgresMock(t)
	require.NoError(t, b.Apply(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_UsesDialectDirectory(t *testing.T) {
	b, _ := newPostgresMock(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, b.Migrate(context.Background()))
	assert.Equal(t, "postgres", gotDir)
}

func TestMigrate_Error(t *testing.T) {
	b, _ := newPostgresMock(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err := b.Migrate(context.Background())
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}
