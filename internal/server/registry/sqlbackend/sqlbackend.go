// Package sqlbackend implements registry.Backend on top of database/sql for
// PostgreSQL (pgx) and SQLite (modernc). Statements are built with squirrel
// and the schema is managed by goose migrations.
package sqlbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/dbx"
	"github.com/dmitrijs2005/medkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const table = "registry"

const upsertSuffix = "ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at"

func (d Dialect) driver() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite3"
}

func (d Dialect) placeholder() squirrel.PlaceholderFormat {
	if d == Postgres {
		return squirrel.Dollar
	}
	return squirrel.Question
}

// Backend is a SQL-backed registry.Backend.
type Backend struct {
	db      *sql.DB
	dialect Dialect
	sb      squirrel.StatementBuilderType
	now     func() time.Time
}

// New wraps an open database. It does not run migrations.
func New(db *sql.DB, d Dialect) *Backend {
	return &Backend{
		db:      db,
		dialect: d,
		sb:      squirrel.StatementBuilder.PlaceholderFormat(d.placeholder()),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Open connects to dsn, verifies the connection and migrates the schema.
func Open(ctx context.Context, d Dialect, dsn string) (*Backend, error) {
	db, err := sql.Open(d.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	if d == SQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	b := New(db, d)
	if err := b.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", d, err)
	}
	return b, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations for the backend's dialect.
func (b *Backend) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(b.dialect.gooseDialect()); err != nil {
		return err
	}
	return gooseUpContext(ctx, b.db, string(b.dialect))
}

func (b *Backend) Get(ctx context.Context, c registry.Collection, key string) ([]byte, error) {
	query, args, err := b.sb.Select("value").
		From(table).
		Where(squirrel.Eq{"collection": string(c), "key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var value []byte
	err = b.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

func (b *Backend) List(ctx context.Context, c registry.Collection) ([]registry.Record, error) {
	query, args, err := b.sb.Select("key", "value").
		From(table).
		Where(squirrel.Eq{"collection": string(c)}).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []registry.Record
	for rows.Next() {
		var r registry.Record
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", c, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", c, err)
	}
	return out, nil
}

// Apply runs the batch in a single transaction.
func (b *Backend) Apply(ctx context.Context, ops ...registry.Op) error {
	if len(ops) == 0 {
		return nil
	}
	now := b.now()
	stmts := make([]squirrel.Sqlizer, 0, len(ops))
	for _, op := range ops {
		stmt, err := b.statement(op, now)
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
	}
	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return dbx.ExecAll(ctx, tx, stmts...)
	})
}

func (b *Backend) statement(op registry.Op, now time.Time) (squirrel.Sqlizer, error) {
	switch op.Kind {
	case registry.OpPut:
		return b.sb.Insert(table).
			Columns("collection", "key", "value", "updated_at").
			Values(string(op.Collection), op.Key, op.Value, now).
			Suffix(upsertSuffix), nil
	case registry.OpDelete:
		return b.sb.Delete(table).
			Where(squirrel.Eq{"collection": string(op.Collection), "key": op.Key}), nil
	default:
		return nil, fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

func (b *Backend) Close() error {
	return b.db.Close()
}
