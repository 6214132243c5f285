package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/env-monitor/internal/cache"
	"github.com/smukkama/env-monitor/internal/protocol"
)

func exerciseTracker(t *testing.T, bt *BreachTracker) {
	t.Helper()
	ctx := context.Background()
	t0 := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)
	readings := []protocol.Reading{reading("Delhi", 220, 30, 50, 10)}

	first := Evaluate(readings, DefaultThresholds(), t0, "r1")
	require.NoError(t, bt.Track(ctx, first, t0))
	require.NotNil(t, first[0].FirstObserved)
	assert.True(t, first[0].FirstObserved.Equal(t0))

	t1 := t0.Add(time.Minute)
	second := Evaluate(readings, DefaultThresholds(), t1, "r2")
	require.NoError(t, bt.Track(ctx, second, t1))
	assert.True(t, second[0].FirstObserved.Equal(t0), "first observation carries over")
	assert.True(t, second[0].LastObserved.Equal(t1))
	assert.NotEqual(t, first[0].ID, second[0].ID, "events still re-fire with new ids")

	state, err := bt.GetState(ctx, BreachKey("Delhi", protocol.MetricAQI, protocol.SeverityCritical))
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 2, state.Passes)

	// Condition clears
	t2 := t1.Add(time.Minute)
	require.NoError(t, bt.Track(ctx, nil, t2))
	active, err := bt.ActiveBreaches(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestBreachTracker_Memory(t *testing.T) {
	exerciseTracker(t, NewBreachTracker(cache.NewMemoryStore()))
}

func TestBreachTracker_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	exerciseTracker(t, NewBreachTracker(cache.NewRedisStore(client)))
}

func TestCheckKeyspace(t *testing.T) {
	tests := []struct {
		prefix  string
		overlap bool
	}{
		{prefix: cache.DefaultPrefix},
		{prefix: "dash:"},
		{prefix: "", overlap: true},
		{prefix: "breach", overlap: true},
		{prefix: "breach_state:cache_", overlap: true},
	}

	for _, tt := range tests {
		err := CheckKeyspace(tt.prefix)
		if tt.overlap {
			assert.ErrorIs(t, err, ErrKeyspaceOverlap, "prefix %q", tt.prefix)
		} else {
			assert.NoError(t, err, "prefix %q", tt.prefix)
		}
	}
}

func TestBreachTracker_SurvivesCacheClearAll(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	bt := NewBreachTracker(store)
	c := cache.New(store, cache.WithPrefix(cache.DefaultPrefix))
	require.NoError(t, CheckKeyspace(cache.DefaultPrefix))

	now := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)
	events := Evaluate([]protocol.Reading{reading("Delhi", 220, 30, 50, 10)}, DefaultThresholds(), now, "r1")
	require.NoError(t, bt.Track(ctx, events, now))
	c.Put(ctx, cache.KeyStatsData, map[string]int{"n": 1})

	c.ClearAll(ctx)

	active, err := bt.ActiveBreaches(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
