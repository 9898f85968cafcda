package domain

import (
	"math"
	"sort"
	"time"
)

// RateObservation es el estado parcial de la semana en curso.
type RateObservation struct {
	Elapsed time.Duration // desde la apertura del mercado
	Count   int           // eventos (tweets) observados desde la apertura
}

// Hours devuelve el tiempo transcurrido en horas.
func (o RateObservation) Hours() float64 {
	return o.Elapsed.Hours()
}

// Rate devuelve count/elapsed en eventos por hora (0 si no ha pasado tiempo).
func (o RateObservation) Rate() float64 {
	h := o.Hours()
	if h <= 0 {
		return 0
	}
	return float64(o.Count) / h
}

// NewRateObservation cuenta los eventos en [start, now]. Si now es anterior a start
// la observación queda vacía.
func NewRateObservation(events []time.Time, start, now time.Time) RateObservation {
	if now.Before(start) {
		return RateObservation{}
	}
	return RateObservation{Elapsed: now.Sub(start), Count: CountBetween(events, start, now)}
}

// HourlyStats son la media y la desviación estándar poblacional de los conteos por hora.
type HourlyStats struct {
	Mean  float64
	Std   float64
	Hours int // número de bins de una hora considerados
}

// RecentRate cuenta los eventos con timestamp >= now-lookback y divide por las
// horas del lookback. Devuelve 0 si lookback <= 0.
func RecentRate(events []time.Time, now time.Time, lookback time.Duration) float64 {
	if lookback <= 0 {
		return 0
	}
	cutoff := now.Add(-lookback)
	count := 0
	for _, t := range events {
		if !t.Before(cutoff) && !t.After(now) {
			count++
		}
	}
	return float64(count) / lookback.Hours()
}

// CountBetween cuenta los eventos en [from, to].
func CountBetween(events []time.Time, from, to time.Time) int {
	count := 0
	for _, t := range events {
		if !t.Before(from) && !t.After(to) {
			count++
		}
	}
	return count
}

// HistoricalHourlyStats agrupa los eventos de la ventana [now-window, now] en bins
// de una hora y calcula media y std poblacional de los conteos por bin.
//
// Los bins cubren desde la hora del primer evento dentro de la ventana hasta la hora
// de now, incluyendo las horas sin eventos (conteo 0). Sin eventos devuelve (0, 0).
func HistoricalHourlyStats(events []time.Time, now time.Time, window time.Duration) HourlyStats {
	cutoff := now.Add(-window)

	inWindow := make([]time.Time, 0, len(events))
	for _, t := range events {
		if !t.Before(cutoff) && !t.After(now) {
			inWindow = append(inWindow, t)
		}
	}
	if len(inWindow) == 0 {
		return HourlyStats{}
	}
	sort.Slice(inWindow, func(i, j int) bool { return inWindow[i].Before(inWindow[j]) })

	first := inWindow[0].Truncate(time.Hour)
	last := now.Truncate(time.Hour)
	nBins := int(last.Sub(first)/time.Hour) + 1

	bins := make([]float64, nBins)
	for _, t := range inWindow {
		idx := int(t.Truncate(time.Hour).Sub(first) / time.Hour)
		if idx >= 0 && idx < nBins {
			bins[idx]++
		}
	}

	mean, std := MeanStd(bins)
	return HourlyStats{Mean: mean, Std: std, Hours: nBins}
}

// MeanStd devuelve la media y la desviación estándar poblacional.
// Un slice vacío devuelve (0, 0).
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// PredictFinalCount extrapola el ritmo actual a la semana completa.
// Sin tiempo transcurrido no hay ritmo: devuelve fallback (normalmente la media histórica).
func PredictFinalCount(count int, elapsedHours, totalHours, fallback float64) float64 {
	if elapsedHours <= 0 {
		return fallback
	}
	return float64(count) / elapsedHours * totalHours
}

// Percentile calcula el percentil p (0-100) con interpolación lineal entre
// posiciones (mismo criterio que numpy.percentile por defecto).
func Percentile(sample []float64, p float64) float64 {
	n := len(sample)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, sample)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

// Percentiles calcula varios percentiles ordenando la muestra una sola vez.
func Percentiles(sample []float64, ps ...float64) []float64 {
	out := make([]float64, len(ps))
	if len(sample) == 0 {
		return out
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)
	for i, p := range ps {
		out[i] = percentileSorted(sorted, p)
	}
	return out
}

func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
