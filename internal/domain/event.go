package domain

import "time"

// MarketEvent es un evento semanal con sus mercados de bucket.
type MarketEvent struct {
	Slug    string
	Title   string
	Start   time.Time
	End     time.Time
	Closed  bool
	Markets []BucketMarket // ordenados por bucket
}

// BucketMarket es el mercado binario de un bucket dentro del evento.
type BucketMarket struct {
	Bucket   string
	Question string
	YesPrice float64
	Volume   float64
	Closed   bool
}

// Quotes devuelve las cotizaciones Yes de los buckets con precio en (0, 1).
func (e MarketEvent) Quotes() []BucketQuote {
	out := make([]BucketQuote, 0, len(e.Markets))
	for _, m := range e.Markets {
		if ValidatePrice(m.YesPrice) != nil {
			continue
		}
		out = append(out, BucketQuote{Bucket: m.Bucket, Price: m.YesPrice})
	}
	return out
}

// Prices devuelve el precio Yes por bucket.
func (e MarketEvent) Prices() map[string]float64 {
	out := make(map[string]float64, len(e.Markets))
	for _, m := range e.Markets {
		out[m.Bucket] = m.YesPrice
	}
	return out
}

// Labels devuelve los buckets del evento en orden.
func (e MarketEvent) Labels() []string {
	out := make([]string, len(e.Markets))
	for i, m := range e.Markets {
		out[i] = m.Bucket
	}
	return out
}

// TotalHours es la duración del mercado (168 en los semanales).
func (e MarketEvent) TotalHours() float64 {
	return e.End.Sub(e.Start).Hours()
}

// AlertKind clasifica las alertas enviadas al usuario.
type AlertKind string

const (
	AlertTopBucketChanged AlertKind = "top_bucket_changed"
	AlertInfeasible       AlertKind = "infeasible"
	AlertRebalance        AlertKind = "rebalance"
)

// Alert es un aviso puntual para el usuario (Telegram, consola).
type Alert struct {
	Kind    AlertKind
	Title   string
	Message string
	Time    time.Time
}

// SnapshotStats resume el contenido del store de snapshots.
type SnapshotStats struct {
	Count         int
	First         time.Time
	Last          time.Time
	UniqueBuckets int
}
