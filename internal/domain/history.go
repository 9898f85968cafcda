package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// WinnerPriceThreshold: un mercado resuelto cuyo precio Yes es >= 0.98 es el ganador.
const WinnerPriceThreshold = 0.98

// HistoricalWeek es un mercado semanal resuelto. Inmutable una vez creado.
type HistoricalWeek struct {
	Start  time.Time
	End    time.Time
	Bucket string // label ganador
	Actual int    // conteo representativo: floor((low+high)/2) o el conteo real si se conoce
	Title  string
}

// NewHistoricalWeek crea la semana a partir del label ganador.
func NewHistoricalWeek(start, end time.Time, winner, title string) (HistoricalWeek, error) {
	b, err := ParseBucket(winner)
	if err != nil {
		return HistoricalWeek{}, fmt.Errorf("domain.NewHistoricalWeek: %w", err)
	}
	return HistoricalWeek{
		Start:  start,
		End:    end,
		Bucket: b.Label,
		Actual: b.RepresentativeCount(),
		Title:  title,
	}, nil
}

// WeekFromCount crea una semana con conteo real conocido (no solo el bucket).
func WeekFromCount(start, end time.Time, count int) HistoricalWeek {
	return HistoricalWeek{
		Start:  start,
		End:    end,
		Bucket: BucketForCount(count),
		Actual: count,
	}
}

// SortWeeks ordena el corpus por fecha de cierre (estable).
func SortWeeks(weeks []HistoricalWeek) {
	sort.SliceStable(weeks, func(i, j int) bool { return weeks[i].End.Before(weeks[j].End) })
}

// HistoricalStatistics es una función pura del corpus.
type HistoricalStatistics struct {
	Count     int
	Mean      float64
	Std       float64 // poblacional
	Median    float64
	Min       int
	Max       int
	Frequency map[string]int // victorias por label ganador
	First     time.Time      // End de la semana más antigua
	Last      time.Time      // End de la semana más reciente
}

// BuildStatistics agrega el corpus. Un corpus vacío no tiene estadísticas: ErrNoData.
func BuildStatistics(weeks []HistoricalWeek) (HistoricalStatistics, error) {
	if len(weeks) == 0 {
		return HistoricalStatistics{}, fmt.Errorf("domain.BuildStatistics: empty corpus: %w", ErrNoData)
	}

	actuals := make([]float64, len(weeks))
	freq := make(map[string]int)
	st := HistoricalStatistics{
		Count:     len(weeks),
		Min:       weeks[0].Actual,
		Max:       weeks[0].Actual,
		Frequency: freq,
		First:     weeks[0].End,
		Last:      weeks[0].End,
	}
	for i, w := range weeks {
		actuals[i] = float64(w.Actual)
		freq[w.Bucket]++
		if w.Actual < st.Min {
			st.Min = w.Actual
		}
		if w.Actual > st.Max {
			st.Max = w.Actual
		}
		if w.End.Before(st.First) {
			st.First = w.End
		}
		if w.End.After(st.Last) {
			st.Last = w.End
		}
	}
	st.Mean, st.Std = MeanStd(actuals)
	st.Median = Percentile(actuals, 50)
	return st, nil
}

// Band devuelve mean ± k·std (k=1 → ~68%, k=2 → ~95%). El límite inferior no baja de 0.
func (s HistoricalStatistics) Band(k float64) (low, high float64) {
	return math.Max(0, s.Mean-k*s.Std), s.Mean + k*s.Std
}

// MostCommon devuelve el bucket con más victorias; empata el de menor low.
func (s HistoricalStatistics) MostCommon() (string, int) {
	var best string
	bestCount := 0
	bestKey := math.MaxInt
	for label, c := range s.Frequency {
		k, err := SortKey(label)
		if err != nil {
			k = math.MaxInt
		}
		if c > bestCount || (c == bestCount && k < bestKey) {
			best, bestCount, bestKey = label, c, k
		}
	}
	return best, bestCount
}

// Labels devuelve los labels con al menos una victoria, ordenados.
func (s HistoricalStatistics) Labels() []string {
	labels := make([]string, 0, len(s.Frequency))
	for l := range s.Frequency {
		labels = append(labels, l)
	}
	sorted, invalid := SortLabels(labels)
	return append(sorted, invalid...)
}
