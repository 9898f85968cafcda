package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	refFrom = time.Date(2025, 12, 12, 0, 0, 0, 0, time.UTC)
	refTo   = time.Date(2025, 12, 12, 23, 59, 59, 0, time.UTC)
)

func TestFetchTweets_Success(t *testing.T) {
	srv := fixtureServer(t, "../../../testdata/fixtures/xtracker_posts.json", func(r *http.Request) {
		assert.Equal(t, "/api/users/elonmusk/posts", r.URL.Path)
		assert.Equal(t, "2025-12-12T00:00:00Z", r.URL.Query().Get("startDate"))
	})

	posts, err := newTestClient(nil, nil, srv).FetchTweets(context.Background(), refFrom, refTo)
	require.NoError(t, err)
	require.Len(t, posts, 3, "fuera de rango y fechas ilegibles se descartan")
	assert.Equal(t, "first", posts[0].Text)
	assert.Equal(t, "third", posts[2].Text)
	assert.Equal(t, time.Date(2025, 12, 12, 10, 15, 0, 0, time.UTC), posts[2].CreatedAt)
}

func TestFetchEvents_ReturnsTimestamps(t *testing.T) {
	srv := fixtureServer(t, "../../../testdata/fixtures/xtracker_posts.json", func(r *http.Request) {
		assert.Equal(t, "/api/users/someone/posts", r.URL.Path)
	})

	client := newTestClient(nil, nil, srv).WithTrackedUser("someone")
	times, err := client.FetchEvents(context.Background(), refFrom, refTo)
	require.NoError(t, err)
	require.Len(t, times, 3)
	assert.True(t, times[0].Before(times[1]))
}

func TestFetchTweets_Unsuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer srv.Close()

	_, err := newTestClient(nil, nil, srv).FetchTweets(context.Background(), refFrom, refTo)
	assert.Error(t, err)
}
