package web

import (
	"time"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// Formas JSON de la API. Los nombres de campo siguen los del dashboard.

type positionJSON struct {
	Title        string  `json:"title"`
	Bucket       string  `json:"bucket,omitempty"`
	Outcome      string  `json:"outcome"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	CurPrice     float64 `json:"curPrice"`
	CurrentValue float64 `json:"currentValue"`
	CashPnL      float64 `json:"cashPnl"`
	PercentPnL   float64 `json:"percentPnl"`
	Invested     float64 `json:"invested"`
}

func newPositionJSON(p domain.Position) positionJSON {
	return positionJSON{
		Title:        p.Title,
		Bucket:       p.Bucket,
		Outcome:      string(p.Outcome),
		Size:         p.Size,
		AvgPrice:     p.EffectiveAvgPrice(),
		CurPrice:     p.CurPrice,
		CurrentValue: p.CurrentValue,
		CashPnL:      p.CashPnL,
		PercentPnL:   p.PercentPnL,
		Invested:     p.Invested(),
	}
}

type currentResponse struct {
	LastUpdate     *time.Time     `json:"last_update,omitempty"`
	TotalPositions int            `json:"total_positions"`
	TotalValue     float64        `json:"total_value"`
	TotalPnL       float64        `json:"total_pnl"`
	Positions      []positionJSON `json:"positions"`
}

type exposureJSON struct {
	Bucket   string  `json:"bucket"`
	Net      float64 `json:"exposure"`
	YesSize  float64 `json:"yes_size"`
	NoSize   float64 `json:"no_size"`
	YesValue float64 `json:"yes_value"`
	NoValue  float64 `json:"no_value"`
	PnL      float64 `json:"pnl"`
}

func newExposureJSON(e domain.BucketExposure) exposureJSON {
	return exposureJSON{
		Bucket:   e.Bucket,
		Net:      e.Net(),
		YesSize:  e.YesSize,
		NoSize:   e.NoSize,
		YesValue: e.YesValue,
		NoValue:  e.NoValue,
		PnL:      e.PnL,
	}
}

type snapshotJSON struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	TotalPositions int            `json:"total_positions"`
	TotalValue     float64        `json:"total_value"`
	TotalPnL       float64        `json:"total_pnl"`
	Buckets        []exposureJSON `json:"buckets"`
}

func newSnapshotJSON(s domain.LivePositionSnapshot) snapshotJSON {
	out := snapshotJSON{
		ID:             s.ID,
		Timestamp:      s.Timestamp,
		TotalPositions: s.TotalPositions,
		TotalValue:     s.TotalValue,
		TotalPnL:       s.TotalPnL,
		Buckets:        make([]exposureJSON, len(s.Exposures)),
	}
	for i, e := range s.Exposures {
		out.Buckets[i] = newExposureJSON(e)
	}
	return out
}

type dbStatsResponse struct {
	Snapshots     int        `json:"total_snapshots"`
	First         *time.Time `json:"first_snapshot,omitempty"`
	Last          *time.Time `json:"last_snapshot,omitempty"`
	UniqueBuckets int        `json:"unique_buckets"`
}

type healthResponse struct {
	Status     string     `json:"status"`
	Snapshots  int        `json:"snapshots"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
}
