package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverFor(t *testing.T) {
	assert.Equal(t, DriverPostgres, DriverFor("postgres://u:p@localhost/db"))
	assert.Equal(t, DriverPostgres, DriverFor("PostgreSQL://localhost/db"))
	assert.Equal(t, DriverSQLite, DriverFor("file:medinv.db"))
	assert.Equal(t, DriverSQLite, DriverFor(":memory:"))
}

func TestConnectSQLiteMemory(t *testing.T) {
	db, err := Connect("file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	defer db.Close()

	assert.False(t, IsPostgres(db))
	assert.NoError(t, Ping(context.Background(), db))
}
