package allocator

import (
	"math"
	"sort"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// RebalanceConfig parametriza los objetivos por probabilidad y el umbral de acción.
type RebalanceConfig struct {
	Capital        float64
	Threshold      float64 // |diff| en dólares por debajo del cual no se sugiere nada
	MaxFraction    float64 // tope por bucket como fracción del capital
	MinProbability float64 // buckets menos probables no reciben objetivo
	Leverage       float64 // objetivo = capital × prob × Leverage
}

// DefaultRebalanceConfig: objetivo min(2·C·p, 0.4·C) para p ≥ 1%, umbral $5.
func DefaultRebalanceConfig(capital float64) RebalanceConfig {
	return RebalanceConfig{
		Capital:        capital,
		Threshold:      5,
		MaxFraction:    0.4,
		MinProbability: 0.01,
		Leverage:       2,
	}
}

// ProbabilityTargets calcula el objetivo en dólares por bucket a partir de las
// probabilidades.
func ProbabilityTargets(probs domain.BucketProbabilities, cfg RebalanceConfig) map[string]float64 {
	targets := make(map[string]float64, len(probs))
	maxPerBucket := cfg.Capital * cfg.MaxFraction
	for b, p := range probs {
		if p < cfg.MinProbability {
			continue
		}
		targets[b] = math.Min(cfg.Capital*p*cfg.Leverage, maxPerBucket)
	}
	return targets
}

// PlanTargets usa el coste de cada línea de un plan como objetivo.
func PlanTargets(plan domain.AllocationPlan) map[string]float64 {
	targets := make(map[string]float64, len(plan.Lines))
	for _, l := range plan.Lines {
		targets[l.Bucket] = l.Cost
	}
	return targets
}

// SuggestRebalance compara lo invertido en cada bucket con el objetivo y sugiere
// BUY/SELL cuando la diferencia supera el umbral. Función pura, sin I/O.
//
// Los buckets con posición pero sin objetivo tienen objetivo 0. Los buckets sin
// precio cotizado se omiten. El orden es EV × probabilidad desc.
func SuggestRebalance(current domain.Book, targets map[string]float64, prices map[string]float64, probs domain.BucketProbabilities, threshold float64) []domain.Suggestion {
	buckets := make(map[string]bool, len(targets)+len(current))
	for b := range targets {
		buckets[b] = true
	}
	for b := range current {
		buckets[b] = true
	}

	var out []domain.Suggestion
	for b := range buckets {
		price, ok := prices[b]
		if !ok || domain.ValidatePrice(price) != nil {
			continue
		}
		h := current[b]
		target := targets[b]
		diff := target - h.Invested()
		if math.Abs(diff) <= threshold {
			continue
		}
		action := domain.ActionBuy
		if diff < 0 {
			action = domain.ActionSell
		}
		prob := probs[b]
		out = append(out, domain.Suggestion{
			Bucket:          b,
			Action:          action,
			Shares:          math.Floor(math.Abs(diff) / price),
			Amount:          math.Abs(diff),
			Price:           price,
			Probability:     prob,
			EV:              domain.ExpectedValue(prob, price),
			CurrentShares:   h.Shares,
			CurrentInvested: h.Invested(),
			TargetInvested:  target,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		si := out[i].EV * out[i].Probability
		sj := out[j].EV * out[j].Probability
		if si != sj {
			return si > sj
		}
		return out[i].Bucket < out[j].Bucket
	})
	return out
}
