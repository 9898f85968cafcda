package allocator

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// Tier asigna Weight a los buckets con z < MaxZ. Los tiers se evalúan en orden.
type Tier struct {
	MaxZ   float64 `yaml:"max_z"`
	Weight float64 `yaml:"weight"`
}

// TieredConfig parametriza la estrategia por tiers (antes repetida con constantes
// distintas en cada script de planificación).
type TieredConfig struct {
	Tiers           []Tier
	DefaultWeight   float64 // z fuera de todos los tiers
	BonusMultiplier float64 // bonus = victorias históricas × multiplier
	MinDisplay      float64 // filtro de display en dólares
}

// DefaultTieredConfig: z<0.5 → 80, z<1.0 → 50, z<1.5 → 25, resto 10; bonus ×5; $5.
func DefaultTieredConfig() TieredConfig {
	return TieredConfig{
		Tiers: []Tier{
			{MaxZ: 0.5, Weight: 80},
			{MaxZ: 1.0, Weight: 50},
			{MaxZ: 1.5, Weight: 25},
		},
		DefaultWeight:   10,
		BonusMultiplier: 5,
		MinDisplay:      5,
	}
}

// BaseWeight mapea un z-score a su peso base.
func (c TieredConfig) BaseWeight(z float64) float64 {
	for _, t := range c.Tiers {
		if z < t.MaxZ {
			return t.Weight
		}
	}
	return c.DefaultWeight
}

// TieredLine es la asignación de un bucket en la estrategia por tiers.
type TieredLine struct {
	Bucket     string
	Z          float64
	Density    float64 // exp(-0.5 z²), sin normalizar
	Wins       int
	BaseWeight float64
	Bonus      float64
	Weight     float64
	Dollars    float64
}

// TieredPlan expone la vista filtrada (display) y la completa.
//
// El filtro de display NO redistribuye: DisplayedTotal < Capital siempre que algún
// bucket quede por debajo de MinDisplay. UnfilteredTotal == Capital.
type TieredPlan struct {
	Capital         float64
	Mean            float64
	Std             float64
	Lines           []TieredLine // todos los buckets, ordenados por dólares desc
	Displayed       []TieredLine // Lines con Dollars >= MinDisplay
	UnfilteredTotal float64
	DisplayedTotal  float64
}

// Tiered calcula la asignación ponderada por tiers de z-score más bonus de frecuencia.
// labels vacío usa los buckets canónicos 40-59 … 480-499.
//
// Con std degenerada el bucket más cercano a mean tiene z=0 y el resto z=+Inf.
func Tiered(mean, std float64, freq map[string]int, labels []string, capital float64, cfg TieredConfig) (TieredPlan, error) {
	if capital <= 0 || math.IsNaN(capital) {
		return TieredPlan{}, fmt.Errorf("allocator.Tiered: %w",
			&domain.ParseError{Input: fmt.Sprintf("%g", capital), Reason: "capital must be positive"})
	}
	if len(labels) == 0 {
		labels = domain.CanonicalBuckets(40, domain.HighOverflowStart)
	}

	buckets := make([]domain.Bucket, 0, len(labels))
	for _, l := range labels {
		b, err := domain.ParseBucket(l)
		if err != nil {
			return TieredPlan{}, fmt.Errorf("allocator.Tiered: %w", err)
		}
		buckets = append(buckets, b)
	}

	degenerate := domain.IsDegenerate(std)
	var nearest string
	if degenerate {
		nearest = domain.NearestBucket(buckets, mean).Label
	}

	plan := TieredPlan{Capital: capital, Mean: mean, Std: std}
	var totalWeight float64
	for _, b := range buckets {
		var z float64
		switch {
		case !degenerate:
			z = math.Abs(b.Midpoint()-mean) / std
		case b.Label != nearest:
			z = math.Inf(1)
		}
		wins := freq[b.Label]
		line := TieredLine{
			Bucket:     b.Label,
			Z:          z,
			Density:    math.Exp(-0.5 * z * z),
			Wins:       wins,
			BaseWeight: cfg.BaseWeight(z),
			Bonus:      float64(wins) * cfg.BonusMultiplier,
		}
		line.Weight = line.BaseWeight + line.Bonus
		totalWeight += line.Weight
		plan.Lines = append(plan.Lines, line)
	}

	if totalWeight <= 0 {
		return TieredPlan{}, fmt.Errorf("allocator.Tiered: all tier weights are zero: %w", domain.ErrNoData)
	}

	for i := range plan.Lines {
		plan.Lines[i].Dollars = plan.Lines[i].Weight / totalWeight * capital
		plan.UnfilteredTotal += plan.Lines[i].Dollars
	}
	sort.SliceStable(plan.Lines, func(i, j int) bool { return plan.Lines[i].Dollars > plan.Lines[j].Dollars })

	for _, l := range plan.Lines {
		if l.Dollars >= cfg.MinDisplay {
			plan.Displayed = append(plan.Displayed, l)
			plan.DisplayedTotal += l.Dollars
		}
	}
	return plan, nil
}

// Line devuelve la línea (sin filtrar) de un bucket.
func (p TieredPlan) Line(bucket string) (TieredLine, bool) {
	for _, l := range p.Lines {
		if l.Bucket == bucket {
			return l, true
		}
	}
	return TieredLine{}, false
}
