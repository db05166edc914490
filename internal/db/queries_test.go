package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestPool(t *testing.T) *Pool {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if testing.Short() || databaseURL == "" {
		t.Skip("Skipping database test: TEST_DATABASE_URL not set")
	}

	require.NoError(t, Migrate(databaseURL, "../../migrations"))

	pool, err := NewPool(context.Background(), databaseURL, zap.NewNop())
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestQueries_PutAndGetValue(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	key := "test:" + t.Name()
	defer pool.Exec(ctx, "DELETE FROM editor_state WHERE key = $1", key)

	_, ok, err := pool.GetValue(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, pool.PutValue(ctx, key, []byte(`{"a": 1}`)))
	require.NoError(t, pool.PutValue(ctx, key, []byte(`{"a": 2}`)))

	value, ok, err := pool.GetValue(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a": 2}`, string(value))
}
