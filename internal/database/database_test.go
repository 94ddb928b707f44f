package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'events'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "events", name)

	// schema creation is idempotent
	_, err = db.ExecContext(ctx, sqliteSchema)
	assert.NoError(t, err)
}
