package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"telematics/pkg/logger"
	"telematics/storage"
	"telematics/storage/storagetest"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is required for integration tests")
	}
	ctx := context.Background()
	log := logger.Nop()

	dir, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NoError(t, Migrate(dsn, dir, log))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	storagetest.Run(t, func(t *testing.T) storage.IStorage {
		st := &Store{pool: pool, log: log}
		require.NoError(t, st.Reset(ctx))
		return st
	})
}
