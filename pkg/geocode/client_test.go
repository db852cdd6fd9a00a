package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
		CacheTTL: time.Minute,
	}, zap.NewNop())
	return c, &calls
}

func TestGeocodeCachesResult(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "1 Main St, Atlanta, GA 30303", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"33.749","lon":"-84.388","display_name":"Atlanta"}]`))
	})

	p, err := c.Geocode(context.Background(), "1 Main St, Atlanta, GA 30303")
	require.NoError(t, err)
	assert.InDelta(t, 33.749, p.Latitude, 1e-9)
	assert.InDelta(t, -84.388, p.Longitude, 1e-9)

	_, err = c.Geocode(context.Background(), "1 main st, atlanta, ga 30303")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestGeocodeNoMatch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	var statuses []string
	c.WithObserver(func(status string, _ time.Duration) { statuses = append(statuses, status) })

	_, err := c.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, []string{"no_match"}, statuses)
}

func TestGeocodeProviderError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Geocode(context.Background(), "1 Main St")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoMatch)
}

func TestGeocodeEmptyAddress(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := c.Geocode(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Zero(t, atomic.LoadInt32(calls))
}
