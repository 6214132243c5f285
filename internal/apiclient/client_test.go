package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, 5*time.Second, 0, nil)
}

func TestReadings_Array(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/data", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte(`[{"city":"Delhi","aqi":220,"temperature":30,"humidity":50,"wind_speed":10,"ingestion_timestamp":"2025-11-02T14:05:09Z"}]`))
	})

	readings, err := c.Readings(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "Delhi", readings[0].City)
	assert.Equal(t, 220.0, readings[0].AQI)
}

func TestLatestReadings_WrappedAndQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("latest_only"))
		w.Write([]byte(`{"data":[{"city":"Pune","temperature":37}]}`))
	})

	readings, err := c.LatestReadings(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 37.0, readings[0].Temperature)
}

func TestReadings_UnexpectedShapeIsEmpty(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"warehouse offline"}`))
	})

	readings, err := c.Readings(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, readings)
	assert.Empty(t, readings)
}

func TestReadings_StatusErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Readings(context.Background())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReadings_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second, 0, nil)

	_, err := c.Readings(context.Background())
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stats", r.URL.Path)
		w.Write([]byte(`{"descriptive_stats":{"aqi":{"mean":120.5}},"correlation_matrix":{"aqi":{"temperature":0.4}}}`))
	})

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120.5, stats.DescriptiveStats["aqi"]["mean"])
	assert.Equal(t, 0.4, stats.CorrelationMatrix["aqi"]["temperature"])
}
