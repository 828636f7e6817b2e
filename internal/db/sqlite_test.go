package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	conn, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer conn.Close()

	var mode string
	require.NoError(t, conn.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
	assert.Equal(t, 1, conn.Stats().MaxOpenConnections)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	conn, err := OpenSQLite("")
	require.Error(t, err)
	assert.Nil(t, conn)
}
