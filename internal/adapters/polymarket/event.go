package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

const gammaEventsPath = "/events"

// FetchEvent obtiene el evento semanal por slug con el precio Yes de cada bucket.
func (c *Client) FetchEvent(ctx context.Context, slug string) (domain.MarketEvent, error) {
	q := url.Values{"slug": {slug}}

	var resp []gammaEvent
	if err := c.get(ctx, c.gammaLimiter, c.gammaBase+gammaEventsPath+"?"+q.Encode(), &resp); err != nil {
		return domain.MarketEvent{}, fmt.Errorf("polymarket.FetchEvent: %w", err)
	}
	if len(resp) == 0 {
		return domain.MarketEvent{}, fmt.Errorf("polymarket.FetchEvent: slug %q: %w", slug, domain.ErrNoData)
	}

	ev, skipped := mapEvent(resp[0])
	for _, err := range skipped {
		slog.Debug("market skipped", "event", slug, "err", err)
	}
	if len(ev.Markets) == 0 {
		return domain.MarketEvent{}, fmt.Errorf("polymarket.FetchEvent: slug %q has no bucket markets: %w", slug, domain.ErrNoData)
	}

	slog.Debug("event fetched",
		"slug", ev.Slug,
		"markets", len(ev.Markets),
		"skipped", len(skipped),
	)
	return ev, nil
}

// FetchBucketPrices devuelve el precio Yes por bucket del evento.
func (c *Client) FetchBucketPrices(ctx context.Context, slug string) (map[string]float64, error) {
	ev, err := c.FetchEvent(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("polymarket.FetchBucketPrices: %w", err)
	}
	return ev.Prices(), nil
}
