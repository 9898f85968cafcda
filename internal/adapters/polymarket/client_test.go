package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/butterfly/internal/adapters/polymarket"
)

func newTestClient(gammaSrv, dataSrv, xtrackerSrv *httptest.Server) *polymarket.Client {
	urlOf := func(s *httptest.Server) string {
		if s == nil {
			return ""
		}
		return s.URL
	}
	return polymarket.NewClient(urlOf(gammaSrv), urlOf(dataSrv), urlOf(xtrackerSrv))
}

func fixtureServer(t *testing.T, path string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"success": true, "data": []}`))
	}))
	defer srv.Close()

	client := newTestClient(nil, nil, srv)
	posts, err := client.FetchTweets(context.Background(), refFrom, refTo)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad wallet", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(nil, srv, nil)
	_, err := client.FetchPositions(context.Background(), "nope", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client error 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(srv, nil, nil)
	_, err := client.FetchEvent(ctx, "any")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
