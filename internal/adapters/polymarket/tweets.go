package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"
)

const xtrackerPostsLimit = 10000

// Post es un post contado por xtracker.
type Post struct {
	Text      string
	CreatedAt time.Time
}

// FetchTweets devuelve los posts de la cuenta seguida en [from, to], ordenados por fecha.
// Los posts con fecha ilegible se descartan.
func (c *Client) FetchTweets(ctx context.Context, from, to time.Time) ([]Post, error) {
	q := url.Values{
		"startDate": {from.UTC().Format(time.RFC3339)},
		"endDate":   {to.UTC().Format(time.RFC3339)},
		"limit":     {fmt.Sprint(xtrackerPostsLimit)},
	}
	u := fmt.Sprintf("%s/api/users/%s/posts?%s", c.xtrackerBase, url.PathEscape(c.trackedUser), q.Encode())

	var resp xtrackerPostsResponse
	if err := c.get(ctx, c.xtrackerLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("polymarket.FetchTweets: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("polymarket.FetchTweets: xtracker returned success=false")
	}

	posts := make([]Post, 0, len(resp.Data))
	skipped := 0
	for _, p := range resp.Data {
		t, ok := parseTime(p.CreatedAt)
		if !ok {
			skipped++
			continue
		}
		if t.Before(from) || t.After(to) {
			continue
		}
		posts = append(posts, Post{Text: p.Text, CreatedAt: t})
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.Before(posts[j].CreatedAt) })

	if skipped > 0 {
		slog.Warn("posts with unparsable date skipped", "skipped", skipped)
	}
	return posts, nil
}

// FetchEvents devuelve los timestamps de los posts en [from, to].
func (c *Client) FetchEvents(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	posts, err := c.FetchTweets(ctx, from, to)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(posts))
	for i, p := range posts {
		times[i] = p.CreatedAt
	}
	return times, nil
}
