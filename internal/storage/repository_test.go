package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tripledger/internal/storage"
	"tripledger/internal/storage/storagetest"
)

func TestSQLiteRepository(t *testing.T) {
	suite.Run(t, &storagetest.StoreSuite{
		NewStore: func() storage.Store {
			repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
			require.NoError(t, err, "failed to create test database")
			return repo
		},
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Ping(context.Background()))
	require.NoError(t, repo.Close())

	// Reopening runs migrations again against an up-to-date schema.
	repo, err = storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	version, dirty, err := storage.SchemaVersion(storage.DSN(path))
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
