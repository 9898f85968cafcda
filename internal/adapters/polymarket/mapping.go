package polymarket

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// Polymarket usa varios formatos de fecha; probamos los más comunes.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05-07",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseOutcomePrices decodifica el string "[\"0.05\", \"0.95\"]" de Gamma.
func parseOutcomePrices(raw string) ([]decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var prices []decimal.Decimal
	if err := json.Unmarshal([]byte(raw), &prices); err != nil {
		return nil, &domain.ParseError{Input: raw, Reason: "invalid outcomePrices"}
	}
	return prices, nil
}

// marketBucket deriva el bucket de groupItemTitle o, si no vale, de la pregunta.
func marketBucket(gm gammaMarket) (string, error) {
	if gm.GroupItemTitle != "" {
		if b, err := domain.ParseBucket(gm.GroupItemTitle); err == nil {
			return b.Label, nil
		}
	}
	return domain.ExtractBucket(gm.Question)
}

// mapMarket convierte un gammaMarket a domain.BucketMarket.
func mapMarket(gm gammaMarket) (domain.BucketMarket, error) {
	label, err := marketBucket(gm)
	if err != nil {
		return domain.BucketMarket{}, err
	}
	prices, err := parseOutcomePrices(gm.OutcomePrices)
	if err != nil {
		return domain.BucketMarket{}, err
	}

	m := domain.BucketMarket{
		Bucket:   label,
		Question: gm.Question,
		Closed:   gm.Closed,
	}
	if len(prices) > 0 {
		m.YesPrice = prices[0].InexactFloat64()
	}
	if v, err := gm.Volume.Float64(); err == nil {
		m.Volume = v
	}
	return m, nil
}

// mapEvent convierte un gammaEvent a domain.MarketEvent. Los mercados sin bucket
// reconocible se descartan y se devuelven como errores para el log.
func mapEvent(ge gammaEvent) (domain.MarketEvent, []error) {
	ev := domain.MarketEvent{
		Slug:   ge.Slug,
		Title:  ge.Title,
		Closed: ge.Closed,
	}
	ev.Start, _ = parseTime(ge.StartDate)
	ev.End, _ = parseTime(ge.EndDate)

	var skipped []error
	seen := make(map[string]bool, len(ge.Markets))
	for _, gm := range ge.Markets {
		m, err := mapMarket(gm)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		if seen[m.Bucket] {
			skipped = append(skipped, fmt.Errorf("duplicate bucket %q in event %s", m.Bucket, ge.Slug))
			continue
		}
		seen[m.Bucket] = true
		ev.Markets = append(ev.Markets, m)
	}

	sort.SliceStable(ev.Markets, func(i, j int) bool {
		ki, _ := domain.SortKey(ev.Markets[i].Bucket)
		kj, _ := domain.SortKey(ev.Markets[j].Bucket)
		return ki < kj
	})
	return ev, skipped
}

// winningBucket devuelve el bucket cuyo Yes cotiza >= WinnerPriceThreshold.
func winningBucket(ev domain.MarketEvent) (string, bool) {
	for _, m := range ev.Markets {
		if m.YesPrice >= domain.WinnerPriceThreshold {
			return m.Bucket, true
		}
	}
	return "", false
}

// mapPosition convierte un dataPosition a domain.Position. Si el título no
// contiene un bucket, Bucket queda vacío y NetExposure lo reporta.
func mapPosition(p dataPosition) domain.Position {
	pos := domain.Position{
		Title:        p.Title,
		EventSlug:    p.EventSlug,
		Outcome:      mapOutcome(p.Outcome),
		Size:         p.Size.InexactFloat64(),
		AvgPrice:     p.AvgPrice.InexactFloat64(),
		CurPrice:     p.CurPrice.InexactFloat64(),
		CurrentValue: p.CurrentValue.InexactFloat64(),
		CashPnL:      p.CashPnl.InexactFloat64(),
		PercentPnL:   p.PercentPnl.InexactFloat64(),
	}
	if label, err := domain.ExtractBucket(p.Title); err == nil {
		pos.Bucket = label
	}
	return pos
}

func mapOutcome(s string) domain.Outcome {
	switch {
	case strings.EqualFold(s, string(domain.OutcomeYes)):
		return domain.OutcomeYes
	case strings.EqualFold(s, string(domain.OutcomeNo)):
		return domain.OutcomeNo
	default:
		return domain.Outcome(s)
	}
}

// sumPositions suma valor y P&L en decimal; solo se usa para el log.
func sumPositions(raw []dataPosition) (value, pnl decimal.Decimal) {
	for _, p := range raw {
		value = value.Add(p.CurrentValue)
		pnl = pnl.Add(p.CashPnl)
	}
	return value, pnl
}
