package allocator

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// Nombres de estrategia en AllocationPlan.Strategy.
const (
	StrategyFloorGaussian = "floor+gaussian"
	StrategyFloorRoles    = "floor+roles"
)

// floorLayer compra `capital` shares de cada bucket seleccionado: si gana cualquiera
// de ellos el payout cubre el capital. Es el esqueleto común de las dos variantes.
type floorLayer struct {
	capital float64
	quotes  []domain.BucketQuote // normalizadas y ordenadas por bucket
	mids    []float64
	cost    float64
}

func newFloorLayer(quotes []domain.BucketQuote, capital float64) (floorLayer, error) {
	if len(quotes) == 0 {
		return floorLayer{}, fmt.Errorf("no buckets selected: %w", domain.ErrNoData)
	}
	if !(capital > 0) || math.IsInf(capital, 0) {
		return floorLayer{}, &domain.ParseError{Input: fmt.Sprintf("%g", capital), Reason: "capital must be positive"}
	}

	fl := floorLayer{capital: capital}
	seen := make(map[string]bool, len(quotes))
	type keyed struct {
		q domain.BucketQuote
		b domain.Bucket
	}
	ks := make([]keyed, 0, len(quotes))
	for _, q := range quotes {
		b, err := domain.ParseBucket(q.Bucket)
		if err != nil {
			return floorLayer{}, err
		}
		if seen[b.Label] {
			return floorLayer{}, &domain.ParseError{Input: q.Bucket, Reason: "bucket selected twice"}
		}
		seen[b.Label] = true
		if err := domain.ValidatePrice(q.Price); err != nil {
			return floorLayer{}, fmt.Errorf("bucket %s: %w", b.Label, err)
		}
		q.Bucket = b.Label
		ks = append(ks, keyed{q: q, b: b})
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].b.Low < ks[j].b.Low })

	for _, k := range ks {
		fl.quotes = append(fl.quotes, k.q)
		fl.mids = append(fl.mids, k.b.Midpoint())
		fl.cost += capital * k.q.Price
	}
	return fl, nil
}

// surplus devuelve capital - coste del floor, o InfeasibleAllocationError si es negativo.
func (fl floorLayer) surplus() (float64, error) {
	if fl.cost > fl.capital {
		return 0, &domain.InfeasibleAllocationError{Capital: fl.capital, FloorCost: fl.cost}
	}
	return fl.capital - fl.cost, nil
}

// build reparte el surplus según weights (ya normalizados a 1) y arma el plan.
func (fl floorLayer) build(strategy string, surplus float64, weights []float64) domain.AllocationPlan {
	plan := domain.AllocationPlan{
		Strategy:  strategy,
		Capital:   fl.capital,
		FloorCost: fl.cost,
		Surplus:   surplus,
		Lines:     make([]domain.AllocationLine, len(fl.quotes)),
	}
	for i, q := range fl.quotes {
		cash := surplus * weights[i]
		extra := cash / q.Price
		line := domain.AllocationLine{
			Bucket:      q.Bucket,
			Price:       q.Price,
			Role:        q.Role,
			Weight:      weights[i],
			FloorShares: fl.capital,
			FloorCost:   fl.capital * q.Price,
			SurplusCash: cash,
			ExtraShares: extra,
			Shares:      fl.capital + extra,
		}
		line.Cost = line.FloorCost + cash
		line.Payout = line.Shares
		line.NetProfit = line.Payout - fl.capital
		plan.TotalCost += line.Cost
		plan.Lines[i] = line
	}
	return plan
}

func (fl floorLayer) infeasiblePlan(strategy string) domain.AllocationPlan {
	return domain.AllocationPlan{Strategy: strategy, Capital: fl.capital, FloorCost: fl.cost}
}

// FloorGaussian es la estrategia floor + surplus gaussiano.
//
// El surplus se reparte con pesos Normal-pdf(midpoint; median, width). Si width es
// degenerada todo el surplus va al bucket más cercano a median; si todos los pesos
// son 0 se reparte uniforme.
//
// Si el floor cuesta más que el capital devuelve un plan sin líneas y un
// *domain.InfeasibleAllocationError.
func FloorGaussian(quotes []domain.BucketQuote, capital, median, width float64) (domain.AllocationPlan, error) {
	fl, err := newFloorLayer(quotes, capital)
	if err != nil {
		return domain.AllocationPlan{}, fmt.Errorf("allocator.FloorGaussian: %w", err)
	}
	surplus, err := fl.surplus()
	if err != nil {
		return fl.infeasiblePlan(StrategyFloorGaussian), fmt.Errorf("allocator.FloorGaussian: %w", err)
	}
	return fl.build(StrategyFloorGaussian, surplus, fl.gaussianWeights(median, width)), nil
}

func (fl floorLayer) gaussianWeights(median, width float64) []float64 {
	n := len(fl.quotes)
	weights := make([]float64, n)

	if domain.IsDegenerate(width) || math.IsNaN(median) {
		best := 0
		for i, m := range fl.mids {
			if math.Abs(m-median) < math.Abs(fl.mids[best]-median) {
				best = i
			}
		}
		weights[best] = 1
		return weights
	}

	// El factor 1/(width·√2π) se cancela al normalizar.
	var total float64
	for i, m := range fl.mids {
		z := (m - median) / width
		weights[i] = math.Exp(-0.5 * z * z)
		total += weights[i]
	}
	if total == 0 || math.IsNaN(total) {
		return uniform(n)
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// FloorRoles es la variante por roles: el surplus se reparte a partes iguales entre
// los buckets Winner. Sin ningún Winner se reparte entre todos.
func FloorRoles(quotes []domain.BucketQuote, capital float64) (domain.AllocationPlan, error) {
	fl, err := newFloorLayer(quotes, capital)
	if err != nil {
		return domain.AllocationPlan{}, fmt.Errorf("allocator.FloorRoles: %w", err)
	}
	surplus, err := fl.surplus()
	if err != nil {
		return fl.infeasiblePlan(StrategyFloorRoles), fmt.Errorf("allocator.FloorRoles: %w", err)
	}

	winners := 0
	for _, q := range fl.quotes {
		if q.Role == domain.RoleWinner {
			winners++
		}
	}
	var weights []float64
	if winners == 0 {
		weights = uniform(len(fl.quotes))
	} else {
		weights = make([]float64, len(fl.quotes))
		for i, q := range fl.quotes {
			if q.Role == domain.RoleWinner {
				weights[i] = 1 / float64(winners)
			}
		}
	}
	return fl.build(StrategyFloorRoles, surplus, weights), nil
}

// Annotate copia en cada línea la probabilidad del bucket.
func Annotate(plan domain.AllocationPlan, probs domain.BucketProbabilities) domain.AllocationPlan {
	lines := make([]domain.AllocationLine, len(plan.Lines))
	for i, l := range plan.Lines {
		l.Probability = probs[l.Bucket]
		lines[i] = l
	}
	plan.Lines = lines
	return plan
}

func uniform(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}
