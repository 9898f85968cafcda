package polymarket

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// DTOs raw de las APIs de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaEvent es un evento de GET /events: un título y un mercado binario por bucket.
type gammaEvent struct {
	ID        string        `json:"id"`
	Slug      string        `json:"slug"`
	Title     string        `json:"title"`
	StartDate string        `json:"startDate"`
	EndDate   string        `json:"endDate"`
	Closed    bool          `json:"closed"`
	Markets   []gammaMarket `json:"markets"`
}

// gammaMarket es el mercado de un bucket.
// outcomePrices llega como un string con un array JSON dentro: "[\"0.05\", \"0.95\"]".
type gammaMarket struct {
	Question       string      `json:"question"`
	GroupItemTitle string      `json:"groupItemTitle"`
	Slug           string      `json:"slug"`
	Outcomes       string      `json:"outcomes"`
	OutcomePrices  string      `json:"outcomePrices"`
	Volume         json.Number `json:"volume"`
	Closed         bool        `json:"closed"`
}

// --- Data API ---

// dataPosition es un item de GET /positions. Los importes se decodifican con
// decimal para no perder precisión en las sumas.
type dataPosition struct {
	ProxyWallet  string          `json:"proxyWallet"`
	Asset        string          `json:"asset"`
	ConditionID  string          `json:"conditionId"`
	Title        string          `json:"title"`
	Slug         string          `json:"slug"`
	EventSlug    string          `json:"eventSlug"`
	Outcome      string          `json:"outcome"`
	Size         decimal.Decimal `json:"size"`
	AvgPrice     decimal.Decimal `json:"avgPrice"`
	CurPrice     decimal.Decimal `json:"curPrice"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	CashPnl      decimal.Decimal `json:"cashPnl"`
	PercentPnl   decimal.Decimal `json:"percentPnl"`
}

// --- xtracker ---

// xtrackerPostsResponse es la respuesta de GET /api/users/{user}/posts.
type xtrackerPostsResponse struct {
	Success bool           `json:"success"`
	Data    []xtrackerPost `json:"data"`
}

// xtrackerPost es un post contado por xtracker.
type xtrackerPost struct {
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}
