package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

const historyPageSize = 100

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// HistoryFilter decide qué eventos cerrados forman el corpus histórico.
type HistoryFilter struct {
	Keywords []string // todas deben aparecer en el título (minúsculas)
	Exclude  []string // buckets ganadores que se descartan como outliers
	MaxPages int
}

// DefaultHistoryFilter selecciona los eventos semanales de tweets de Elon.
func DefaultHistoryFilter() HistoryFilter {
	return HistoryFilter{
		Keywords: []string{"elon", "tweet"},
		MaxPages: 50,
	}
}

// matches aplica las keywords y descarta los formatos que no son semanales
// ("how many more tweets", "will elon ...").
func (f HistoryFilter) matches(title string) bool {
	t := strings.ToLower(title)
	for _, k := range f.Keywords {
		if !strings.Contains(t, strings.ToLower(k)) {
			return false
		}
	}
	if strings.Contains(t, "more tweets") || strings.Contains(t, "how many more") || strings.Contains(t, "will") {
		return false
	}
	return slices.ContainsFunc(monthNames, func(m string) bool { return strings.Contains(t, m) })
}

func (f HistoryFilter) excluded(label string) bool {
	return slices.Contains(f.Exclude, label)
}

// FetchResolvedWeeks recorre los eventos cerrados de Gamma y construye el corpus:
// una semana por evento con el bucket cuyo Yes cotiza >= 0.98.
// Los eventos sin ganador claro se descartan.
func (c *Client) FetchResolvedWeeks(ctx context.Context) ([]domain.HistoricalWeek, error) {
	var weeks []domain.HistoricalWeek
	seen := make(map[string]bool)
	pages := max(c.history.MaxPages, 1)

	for page := 0; page < pages; page++ {
		q := url.Values{
			"closed": {"true"},
			"limit":  {strconv.Itoa(historyPageSize)},
			"offset": {strconv.Itoa(page * historyPageSize)},
		}
		var batch []gammaEvent
		if err := c.get(ctx, c.gammaLimiter, c.gammaBase+gammaEventsPath+"?"+q.Encode(), &batch); err != nil {
			return nil, fmt.Errorf("polymarket.FetchResolvedWeeks: page %d: %w", page, err)
		}

		for _, ge := range batch {
			if seen[ge.Slug] || !c.history.matches(ge.Title) {
				continue
			}
			seen[ge.Slug] = true

			week, ok := c.resolvedWeek(ge)
			if ok {
				weeks = append(weeks, week)
			}
		}

		if len(batch) < historyPageSize {
			break
		}
	}

	if len(weeks) == 0 {
		return nil, fmt.Errorf("polymarket.FetchResolvedWeeks: %w", domain.ErrNoData)
	}
	domain.SortWeeks(weeks)

	slog.Info("historical corpus fetched", "weeks", len(weeks))
	return weeks, nil
}

func (c *Client) resolvedWeek(ge gammaEvent) (domain.HistoricalWeek, bool) {
	ev, _ := mapEvent(ge)
	winner, ok := winningBucket(ev)
	if !ok {
		slog.Debug("no clear winner, skipping", "event", ge.Slug)
		return domain.HistoricalWeek{}, false
	}
	if c.history.excluded(winner) {
		slog.Debug("outlier week excluded", "event", ge.Slug, "bucket", winner)
		return domain.HistoricalWeek{}, false
	}
	week, err := domain.NewHistoricalWeek(ev.Start, ev.End, winner, ev.Title)
	if err != nil {
		slog.Debug("invalid winning bucket", "event", ge.Slug, "err", err)
		return domain.HistoricalWeek{}, false
	}
	return week, true
}
