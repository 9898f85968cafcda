package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Outcome es el lado de una posición en un mercado binario.
type Outcome string

const (
	OutcomeYes Outcome = "Yes"
	OutcomeNo  Outcome = "No"
)

// Position es una posición pública de una wallet en un mercado de bucket.
type Position struct {
	Title        string
	Bucket       string // vacío si el adapter no pudo derivarlo del título
	EventSlug    string
	Outcome      Outcome
	Size         float64 // shares
	AvgPrice     float64
	CurPrice     float64
	CurrentValue float64
	CashPnL      float64
	PercentPnL   float64
}

// Invested es el capital puesto en la posición. Si la API da precio medio se usa
// size*avg; si no, currentValue - cashPnl.
func (p Position) Invested() float64 {
	if p.AvgPrice > 0 {
		return p.Size * p.AvgPrice
	}
	return p.CurrentValue - p.CashPnL
}

// EffectiveAvgPrice devuelve AvgPrice si la API lo trae, o invested/size.
func (p Position) EffectiveAvgPrice() float64 {
	if p.AvgPrice > 0 {
		return p.AvgPrice
	}
	if p.Size <= 0 {
		return 0
	}
	return (p.CurrentValue - p.CashPnL) / p.Size
}

// ResolveBucket devuelve el bucket de la posición, extrayéndolo del título si hace falta.
func (p Position) ResolveBucket() (string, error) {
	if p.Bucket != "" {
		b, err := ParseBucket(p.Bucket)
		if err != nil {
			return "", err
		}
		return b.Label, nil
	}
	return ExtractBucket(p.Title)
}

// BucketExposure es la exposición agregada en un bucket.
// Net > 0 es neto largo Yes; Net < 0 es neto largo No (corto el bucket).
type BucketExposure struct {
	Bucket   string
	YesSize  float64
	NoSize   float64
	YesValue float64
	NoValue  float64
	PnL      float64
}

// Net es YesSize - NoSize.
func (e BucketExposure) Net() float64 {
	return e.YesSize - e.NoSize
}

// Value es el valor actual de ambos lados.
func (e BucketExposure) Value() float64 {
	return e.YesValue + e.NoValue
}

// NetExposure agrega posiciones por bucket (Yes suma, No resta), ordenado por bucket.
// Las posiciones cuyo bucket o outcome no se puede derivar quedan fuera y se
// devuelven como error (errors.Join de ParseError) junto al resultado de las demás.
func NetExposure(positions []Position) ([]BucketExposure, error) {
	byBucket := make(map[string]*BucketExposure)
	var errs []error
	for _, p := range positions {
		if p.Outcome != OutcomeYes && p.Outcome != OutcomeNo {
			errs = append(errs, &ParseError{Input: string(p.Outcome), Reason: "unknown position outcome"})
			continue
		}
		label, err := p.ResolveBucket()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		e, ok := byBucket[label]
		if !ok {
			e = &BucketExposure{Bucket: label}
			byBucket[label] = e
		}
		switch p.Outcome {
		case OutcomeNo:
			e.NoSize += p.Size
			e.NoValue += p.CurrentValue
		case OutcomeYes:
			e.YesSize += p.Size
			e.YesValue += p.CurrentValue
		}
		e.PnL += p.CashPnL
	}

	labels := make([]string, 0, len(byBucket))
	for l := range byBucket {
		labels = append(labels, l)
	}
	sorted, _ := SortLabels(labels)

	out := make([]BucketExposure, 0, len(sorted))
	for _, l := range sorted {
		out = append(out, *byBucket[l])
	}
	return out, errors.Join(errs...)
}

// LivePositionSnapshot es una foto de la cartera en un tick. Nunca se muta tras crearse.
type LivePositionSnapshot struct {
	ID             string
	Timestamp      time.Time
	Exposures      []BucketExposure // ordenado por bucket
	TotalPositions int
	TotalValue     float64
	TotalPnL       float64
	Positions      []Position
}

// NewSnapshot construye la foto a partir de las posiciones ya filtradas al evento.
// Devuelve también el error de NetExposure (posiciones descartadas) si lo hubo.
func NewSnapshot(id string, ts time.Time, positions []Position) (LivePositionSnapshot, error) {
	exposures, err := NetExposure(positions)
	snap := LivePositionSnapshot{
		ID:             id,
		Timestamp:      ts,
		Exposures:      exposures,
		TotalPositions: len(positions),
		Positions:      positions,
	}
	for _, p := range positions {
		snap.TotalValue += p.CurrentValue
		snap.TotalPnL += p.CashPnL
	}
	return snap, err
}

// Net devuelve la exposición neta por bucket.
func (s LivePositionSnapshot) Net() map[string]float64 {
	out := make(map[string]float64, len(s.Exposures))
	for _, e := range s.Exposures {
		out[e.Bucket] = e.Net()
	}
	return out
}

// Holding es una tenencia Yes en un bucket con precio medio ponderado.
type Holding struct {
	Bucket   string
	Shares   float64
	AvgPrice float64
}

// Invested es shares * avgPrice.
func (h Holding) Invested() float64 {
	return h.Shares * h.AvgPrice
}

// UnrealizedPnL valora la tenencia al precio actual.
func (h Holding) UnrealizedPnL(price float64) float64 {
	return h.Shares*price - h.Invested()
}

// Book es un libro de tenencias por bucket.
type Book map[string]Holding

// AddFill suma shares al bucket recalculando el precio medio ponderado.
func (b Book) AddFill(bucket string, shares, price float64) error {
	label, err := ParseBucket(bucket)
	if err != nil {
		return err
	}
	if shares <= 0 {
		return &ParseError{Input: fmt.Sprintf("%g", shares), Reason: "fill shares must be positive"}
	}
	if err := ValidatePrice(price); err != nil {
		return err
	}
	h := b[label.Label]
	total := h.Shares + shares
	h.AvgPrice = (h.Shares*h.AvgPrice + shares*price) / total
	h.Shares = total
	h.Bucket = label.Label
	b[label.Label] = h
	return nil
}

// Invested es el capital total del libro.
func (b Book) Invested() float64 {
	var s float64
	for _, h := range b {
		s += h.Invested()
	}
	return s
}

// UnrealizedPnL valora el libro; los buckets sin precio se valoran a su precio medio.
func (b Book) UnrealizedPnL(prices map[string]float64) float64 {
	var s float64
	for l, h := range b {
		p, ok := prices[l]
		if !ok {
			p = h.AvgPrice
		}
		s += h.UnrealizedPnL(p)
	}
	return s
}

// Holdings devuelve las tenencias ordenadas por bucket.
func (b Book) Holdings() []Holding {
	out := make([]Holding, 0, len(b))
	for _, h := range b {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, _ := SortKey(out[i].Bucket)
		kj, _ := SortKey(out[j].Bucket)
		return ki < kj
	})
	return out
}

// BookFromPositions arma el libro con las posiciones Yes de tamaño positivo.
// Las posiciones sin bucket derivable o con outcome desconocido se ignoran.
func BookFromPositions(positions []Position) Book {
	book := make(Book)
	for _, p := range positions {
		if p.Outcome != OutcomeYes || p.Size <= 0 {
			continue
		}
		label, err := p.ResolveBucket()
		if err != nil {
			continue
		}
		h := book[label]
		invested := h.Invested() + p.Size*p.EffectiveAvgPrice()
		h.Bucket = label
		h.Shares += p.Size
		if h.Shares > 0 {
			h.AvgPrice = invested / h.Shares
		}
		book[label] = h
	}
	return book
}

// ValidatePrice exige un precio de probabilidad en (0, 1).
func ValidatePrice(price float64) error {
	if !(price > 0 && price < 1) {
		return &ParseError{Input: fmt.Sprintf("%g", price), Reason: "price must be in (0, 1)"}
	}
	return nil
}
