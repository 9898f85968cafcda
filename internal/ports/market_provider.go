package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// MarketProvider obtiene el evento semanal y los precios de sus buckets.
type MarketProvider interface {
	// FetchEvent devuelve el evento por slug con el precio Yes de cada bucket.
	// Los mercados cuyo bucket no se puede derivar del título se descartan.
	FetchEvent(ctx context.Context, slug string) (domain.MarketEvent, error)
}

// HistoryProvider obtiene el corpus de semanas resueltas.
type HistoryProvider interface {
	// FetchResolvedWeeks devuelve las semanas resueltas ordenadas por fecha de cierre.
	FetchResolvedWeeks(ctx context.Context) ([]domain.HistoricalWeek, error)
}

// EventSource obtiene los timestamps de los eventos que se cuentan (tweets).
type EventSource interface {
	// FetchEvents devuelve los timestamps en [from, to], sin orden garantizado.
	FetchEvents(ctx context.Context, from, to time.Time) ([]time.Time, error)
}

// PositionProvider obtiene las posiciones públicas de una wallet.
type PositionProvider interface {
	// FetchPositions devuelve las posiciones de wallet en el evento dado.
	// Sin posiciones devuelve domain.ErrNoData.
	FetchPositions(ctx context.Context, wallet, eventSlug string) ([]domain.Position, error)
}
