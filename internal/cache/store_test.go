package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "env_monitor_a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "env_monitor_a", []byte("1")))
	require.NoError(t, store.Set(ctx, "env_monitor_b", []byte("2")))
	require.NoError(t, store.Set(ctx, "envXmonitorXc", []byte("3")))
	require.NoError(t, store.Set(ctx, "env_monitor_a", []byte("10")))

	value, ok, err := store.Get(ctx, "env_monitor_a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("10"), value)

	keys, err := store.Keys(ctx, "env_monitor_")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"env_monitor_a", "env_monitor_b"}, keys)

	require.NoError(t, store.Delete(ctx, "env_monitor_a", "env_monitor_b"))
	keys, err = store.Keys(ctx, "env_monitor_")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	exerciseStore(t, NewRedisStore(client))
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	exerciseStore(t, store)
}
