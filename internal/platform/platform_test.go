package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendedMaxInflightFallsBackToDefaultWhenUnconstrained(t *testing.T) {
	assert.Equal(t, 256, RecommendedMaxInflight(0))
}

func TestRecommendedMaxInflightScalesWithMemory(t *testing.T) {
	small := RecommendedMaxInflight(128 * 1024 * 1024)
	large := RecommendedMaxInflight(8 * 1024 * 1024 * 1024)
	assert.Less(t, small, large)
}

func TestRecommendedMaxInflightRespectsFloorAndCeiling(t *testing.T) {
	assert.Equal(t, 16, RecommendedMaxInflight(1))
	assert.Equal(t, 10000, RecommendedMaxInflight(1<<62))
}

func TestResourceMonitorSamplesOnDemand(t *testing.T) {
	m := newResourceMonitor(50*time.Millisecond, zerolog.Nop())
	m.sample(context.Background())

	snap := m.Latest()
	assert.False(t, snap.Timestamp.IsZero())
	assert.GreaterOrEqual(t, snap.Goroutines, 1)
}

func TestHealthServerReadyzReflectsFlag(t *testing.T) {
	m := newResourceMonitor(time.Second, zerolog.Nop())
	m.sample(context.Background())
	hs := NewHealthServer(m)

	srv := httptest.NewServer(hs.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	hs.SetReady(true)
	resp2, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestHealthServerHealthzAlwaysOK(t *testing.T) {
	m := newResourceMonitor(time.Second, zerolog.Nop())
	m.sample(context.Background())
	hs := NewHealthServer(m)

	srv := httptest.NewServer(hs.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
