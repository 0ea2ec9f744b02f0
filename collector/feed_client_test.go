package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gewnthar/density/backend/config"
)

func newTestClient(url string) *FeedClient {
	return NewFeedClient(config.FeedConfig{
		URL:     url,
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestFetchSnapshot_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"110": {"name": "Butler 3", "parent_id": "103", "client_count": 55},
			"2":   {"name": "Uris Main", "parent_id": "2", "client_count": 80}
		}`))
	}))
	defer srv.Close()

	payload, err := newTestClient(srv.URL).FetchSnapshot(context.Background())

	require.NoError(t, err)
	require.Len(t, payload, 2)
	assert.Equal(t, "Butler 3", payload["110"].Name)
	assert.Equal(t, "103", payload["110"].ParentID)
	assert.Equal(t, 55, payload["110"].ClientCount)
	assert.Equal(t, 80, payload["2"].ClientCount)
}

func TestFetchSnapshot_EmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	payload, err := newTestClient(srv.URL).FetchSnapshot(context.Background())

	require.NoError(t, err)
	assert.Len(t, payload, 0)
}

func TestFetchSnapshot_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchSnapshot(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFetchSnapshot_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // shut down before the request

	_, err := newTestClient(srv.URL).FetchSnapshot(context.Background())

	require.Error(t, err)
}
