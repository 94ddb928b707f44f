package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS events (
	seq         BIGSERIAL PRIMARY KEY,
	event_id    TEXT NOT NULL UNIQUE,
	room_id     TEXT NOT NULL,
	sender      TEXT NOT NULL,
	type        TEXT NOT NULL,
	content     JSONB NOT NULL,
	replaces_id TEXT,
	origin_ts   BIGINT NOT NULL,
	redacted_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS events_room_seq_idx ON events (room_id, seq);
CREATE INDEX IF NOT EXISTS events_replaces_idx ON events (replaces_id, origin_ts);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id    TEXT NOT NULL UNIQUE,
	room_id     TEXT NOT NULL,
	sender      TEXT NOT NULL,
	type        TEXT NOT NULL,
	content     TEXT NOT NULL,
	replaces_id TEXT,
	origin_ts   INTEGER NOT NULL,
	redacted_at INTEGER
);
CREATE INDEX IF NOT EXISTS events_room_seq_idx ON events (room_id, seq);
CREATE INDEX IF NOT EXISTS events_replaces_idx ON events (replaces_id, origin_ts);
`

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// MigratePostgres creates the events schema if it does not exist yet.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// OpenSQLite opens the SQLite database at path (":memory:" works for tests)
// and creates the schema. SQLite takes one writer at a time, so the pool is
// pinned to a single connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return db, nil
}
