package domain

import (
	"math"
	"sort"
)

// BucketProbabilities es la masa de probabilidad por label de bucket.
// Los valores suman 1 (dentro de tolerancia float) sobre los buckets considerados.
type BucketProbabilities map[string]float64

// Sum devuelve la suma de todas las probabilidades.
func (p BucketProbabilities) Sum() float64 {
	var s float64
	for _, v := range p {
		s += v
	}
	return s
}

// Top devuelve los n buckets más probables.
func (p BucketProbabilities) Top(n int) []RankedBucket {
	return TopBuckets(p, n)
}

// RankedBucket es un bucket con su probabilidad, para rankings.
type RankedBucket struct {
	Bucket      string
	Probability float64
}

// TopBuckets ordena por probabilidad desc; a igual probabilidad, por bucket asc.
// Los labels inválidos van al final. n <= 0 devuelve todos.
func TopBuckets(p BucketProbabilities, n int) []RankedBucket {
	ranked := make([]RankedBucket, 0, len(p))
	for b, prob := range p {
		ranked = append(ranked, RankedBucket{Bucket: b, Probability: prob})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Probability != ranked[j].Probability {
			return ranked[i].Probability > ranked[j].Probability
		}
		ki, errI := SortKey(ranked[i].Bucket)
		kj, errJ := SortKey(ranked[j].Bucket)
		switch {
		case errI != nil && errJ != nil:
			return ranked[i].Bucket < ranked[j].Bucket
		case errI != nil:
			return false
		case errJ != nil:
			return true
		}
		return ki < kj
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Distribution convierte una predicción en probabilidades por bucket.
// Gaussian y Empirical son los dos modos soportados.
type Distribution interface {
	Probabilities(labels []string) (BucketProbabilities, error)
}

// Gaussian es el modo analítico: densidad normal evaluada en el midpoint de cada bucket.
type Gaussian struct {
	Mean float64
	Std  float64
}

// Probabilities implementa Distribution. Ver AnalyticProbabilities.
func (g Gaussian) Probabilities(labels []string) (BucketProbabilities, error) {
	return AnalyticProbabilities(g.Mean, g.Std, labels)
}

// Empirical es el modo de simulación: histograma de la muestra Monte Carlo.
type Empirical struct {
	Sample []float64
}

// Probabilities implementa Distribution. La masa sale de la muestra, no de labels:
// los buckets sin hits no aparecen en el resultado.
func (e Empirical) Probabilities(_ []string) (BucketProbabilities, error) {
	return EmpiricalProbabilities(e.Sample)
}

// IsDegenerate indica si una dispersión no sirve como escala de una normal.
func IsDegenerate(std float64) bool {
	return std <= 0 || math.IsNaN(std) || math.IsInf(std, 0)
}

// AnalyticProbabilities evalúa exp(-0.5*((mid-mean)/std)^2) en el midpoint de cada
// label y normaliza para que sumen 1.
//
// Es una densidad, no la masa integrada sobre el ancho del bucket: sobrepondera los
// buckets anchos frente a la probabilidad real. Con buckets de ancho uniforme la
// aproximación es aceptable y se mantiene así.
//
// Si std es degenerada (o todas las densidades underflow a 0) toda la masa va al
// bucket más cercano a mean. labels vacío usa FullBucketSet.
func AnalyticProbabilities(mean, std float64, labels []string) (BucketProbabilities, error) {
	if len(labels) == 0 {
		labels = FullBucketSet()
	}
	buckets := make([]Bucket, 0, len(labels))
	for _, l := range labels {
		b, err := ParseBucket(l)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}

	if IsDegenerate(std) || math.IsNaN(mean) {
		return concentrate(buckets, mean), nil
	}

	probs := make(BucketProbabilities, len(buckets))
	var total float64
	for _, b := range buckets {
		z := (b.Midpoint() - mean) / std
		d := math.Exp(-0.5 * z * z)
		probs[b.Label] += d
		total += d
	}
	if total == 0 || math.IsNaN(total) {
		return concentrate(buckets, mean), nil
	}
	for l := range probs {
		probs[l] /= total
	}
	return probs, nil
}

// concentrate pone toda la masa en el bucket que contiene a x o, si ninguno lo
// contiene, en el de midpoint más cercano (a igual distancia, el de menor low).
func concentrate(buckets []Bucket, x float64) BucketProbabilities {
	probs := make(BucketProbabilities, len(buckets))
	for _, b := range buckets {
		probs[b.Label] = 0
	}
	if len(buckets) == 0 {
		return probs
	}
	nearest := NearestBucket(buckets, x)
	probs[nearest.Label] = 1
	return probs
}

// NearestBucket devuelve el bucket que contiene x o el de midpoint más cercano.
func NearestBucket(buckets []Bucket, x float64) Bucket {
	if !math.IsNaN(x) && x >= 0 {
		n := int(math.Floor(x))
		for _, b := range buckets {
			if b.Contains(n) {
				return b
			}
		}
	}
	best := buckets[0]
	bestDist := math.Inf(1)
	for _, b := range buckets {
		d := math.Abs(b.Midpoint() - x)
		if math.IsNaN(d) {
			continue
		}
		if d < bestDist || (d == bestDist && b.Low < best.Low) {
			best, bestDist = b, d
		}
	}
	return best
}

// EmpiricalProbabilities bucketiza cada valor simulado y divide los conteos por el
// tamaño de la muestra. Una muestra vacía es ErrNoData.
func EmpiricalProbabilities(sample []float64) (BucketProbabilities, error) {
	if len(sample) == 0 {
		return nil, ErrNoData
	}
	counts := make(map[string]int)
	for _, x := range sample {
		counts[BucketForValue(x)]++
	}
	probs := make(BucketProbabilities, len(counts))
	n := float64(len(sample))
	for l, c := range counts {
		probs[l] = float64(c) / n
	}
	return probs, nil
}

// ExpectedValue de una acción Yes que paga $1: prob*1 - price.
func ExpectedValue(probability, price float64) float64 {
	return probability - price
}
