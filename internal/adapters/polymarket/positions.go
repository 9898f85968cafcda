package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

const (
	dataPositionsPath  = "/positions"
	positionsPageSize  = 100
	positionsMaxOffset = 1000
)

// FetchPositions devuelve las posiciones públicas de wallet en el evento eventSlug.
// Pagina de 100 en 100 hasta un lote corto o el offset máximo que acepta la API.
// Un eventSlug vacío devuelve todas las posiciones.
func (c *Client) FetchPositions(ctx context.Context, wallet, eventSlug string) ([]domain.Position, error) {
	var raw []dataPosition
	for offset := 0; offset < positionsMaxOffset; offset += positionsPageSize {
		q := url.Values{
			"user":   {wallet},
			"limit":  {strconv.Itoa(positionsPageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		var batch []dataPosition
		if err := c.get(ctx, c.dataLimiter, c.dataBase+dataPositionsPath+"?"+q.Encode(), &batch); err != nil {
			return nil, fmt.Errorf("polymarket.FetchPositions: offset %d: %w", offset, err)
		}
		for _, p := range batch {
			if eventSlug != "" && p.EventSlug != eventSlug {
				continue
			}
			raw = append(raw, p)
		}
		if len(batch) < positionsPageSize {
			break
		}
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("polymarket.FetchPositions: wallet %s: %w", wallet, domain.ErrNoData)
	}

	positions := make([]domain.Position, len(raw))
	for i, p := range raw {
		positions[i] = mapPosition(p)
	}

	value, pnl := sumPositions(raw)
	slog.Debug("positions fetched",
		"wallet", wallet,
		"positions", len(positions),
		"value", value.StringFixed(2),
		"pnl", pnl.StringFixed(2),
	)
	return positions, nil
}
