package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDB_SQLite(t *testing.T) {
	s := DefaultSettings()
	s.Environment = "production"
	s.Database = DatabaseSettings{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "warehouse.db")}

	db, err := InitDB(&s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB(db) })

	assert.Same(t, db, DB)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Ping())
}

func TestInitDB_UnknownDriver(t *testing.T) {
	s := DefaultSettings()
	s.Database.Driver = "oracle"
	_, err := InitDB(&s)
	assert.Error(t, err)
}
