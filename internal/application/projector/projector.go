package projector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

const (
	// DefaultSimulations es el tamaño de muestra por defecto.
	DefaultSimulations = 10_000

	// chunkSize fija cuántos paths comparten un stream RNG. La muestra depende solo
	// de (seed, chunk), así que es la misma con 1 o N workers.
	chunkSize = 256
)

// Config contiene la configuración del projector.
type Config struct {
	Simulations int    // paths por proyección (0 = DefaultSimulations)
	Workers     int    // goroutines (0 o 1 = secuencial, <0 = NumCPU*2)
	Seed        uint64 // 0 = semilla por tiempo
}

// Input es el estado observado a partir del cual se proyecta.
type Input struct {
	Current        int     // conteo observado desde la apertura
	HoursRemaining int     // horas enteras hasta el cierre
	ShortRate      float64 // eventos/hora en la ventana corta
	LongRate       float64 // eventos/hora en la ventana larga
	HourlyMean     float64 // media histórica por hora
	HourlyStd      float64 // std histórica por hora (escala de los incrementos)
}

// MomentumRate es la media de las tasas corta y larga.
func (in Input) MomentumRate() float64 {
	return (in.ShortRate + in.LongRate) / 2
}

// HybridRate mezcla el momentum con la media histórica.
func (in Input) HybridRate() float64 {
	return (in.MomentumRate() + in.HourlyMean) / 2
}

// Result es una proyección completa. Se recalcula desde cero en cada tick.
type Result struct {
	Sample      []float64 // conteos finales simulados, orden no garantizado
	P10         float64
	P50         float64
	P90         float64
	ProjShort   float64 // current + shortRate*h
	ProjLong    float64 // current + longRate*h
	ProjAvg     float64 // current + momentumRate*h
	Momentum    float64
	Hybrid      float64
	Degenerate  bool // std o horas restantes degeneradas: incrementos deterministas
	Simulations int
	Elapsed     time.Duration
}

// Percentiles calcula percentiles arbitrarios (0-100) sobre la muestra.
func (r Result) Percentiles(ps ...float64) []float64 {
	return domain.Percentiles(r.Sample, ps...)
}

// Probabilities es el modo empírico sobre la muestra.
func (r Result) Probabilities() (domain.BucketProbabilities, error) {
	return domain.EmpiricalProbabilities(r.Sample)
}

// TopBuckets devuelve los n buckets más frecuentes en la simulación.
func (r Result) TopBuckets(n int) []domain.RankedBucket {
	probs, err := r.Probabilities()
	if err != nil {
		return nil
	}
	return probs.Top(n)
}

// Projector simula trayectorias del resto de la semana.
type Projector struct {
	cfg Config
}

// New crea un Projector aplicando los defaults.
func New(cfg Config) *Projector {
	if cfg.Simulations <= 0 {
		cfg.Simulations = DefaultSimulations
	}
	return &Projector{cfg: cfg}
}

// Project simula cfg.Simulations paths: la primera mitad con el modelo momentum y
// el resto con el híbrido. Cada incremento horario es Normal(rate, std) truncado a 0.
//
// Con HoursRemaining <= 0 no se simula: la muestra es Current repetido.
// Con std <= 0 los incrementos son deterministas (max(rate, 0)).
// Solo falla si ctx se cancela entre chunks.
func (p *Projector) Project(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	n := p.cfg.Simulations

	h := float64(max(in.HoursRemaining, 0))
	res := Result{
		Sample:      make([]float64, n),
		ProjShort:   float64(in.Current) + in.ShortRate*h,
		ProjLong:    float64(in.Current) + in.LongRate*h,
		ProjAvg:     float64(in.Current) + in.MomentumRate()*h,
		Momentum:    in.MomentumRate(),
		Hybrid:      in.HybridRate(),
		Simulations: n,
	}

	switch {
	case in.HoursRemaining <= 0:
		res.Degenerate = true
		for i := range res.Sample {
			res.Sample[i] = float64(in.Current)
		}
		slog.Debug("projection skipped, market closed", "current", in.Current)
	default:
		if domain.IsDegenerate(in.HourlyStd) {
			res.Degenerate = true
			slog.Debug("degenerate hourly std, deterministic increments",
				"std", in.HourlyStd,
				"momentum", res.Momentum,
				"hybrid", res.Hybrid,
			)
		}
		seed := p.cfg.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		sim := simulation{
			in:       in,
			n:        n,
			seed:     seed,
			momentum: res.Momentum,
			hybrid:   res.Hybrid,
			std:      in.HourlyStd,
			dirac:    res.Degenerate,
		}
		if err := runChunks(ctx, sim, res.Sample, p.cfg.Workers); err != nil {
			return Result{}, fmt.Errorf("projector.Project: %w", err)
		}
	}

	ps := domain.Percentiles(res.Sample, 10, 50, 90)
	res.P10, res.P50, res.P90 = ps[0], ps[1], ps[2]
	res.Elapsed = time.Since(start)

	slog.Debug("projection complete",
		"simulations", n,
		"hours_remaining", in.HoursRemaining,
		"p10", res.P10,
		"p50", res.P50,
		"p90", res.P90,
		"duration_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

// simulation son los parámetros compartidos (solo lectura) por todos los chunks.
type simulation struct {
	in       Input
	n        int
	seed     uint64
	momentum float64
	hybrid   float64
	std      float64
	dirac    bool
}

// fill simula los paths [lo, hi) sobre out (que es sample[lo:hi]).
func (s simulation) fill(chunk, lo int, out []float64) {
	rng := rand.New(rand.NewPCG(s.seed, uint64(chunk)))
	half := s.n / 2
	for k := range out {
		rate := s.hybrid
		if lo+k < half {
			rate = s.momentum
		}
		total := float64(s.in.Current)
		for hour := 0; hour < s.in.HoursRemaining; hour++ {
			inc := rate
			if !s.dirac {
				inc += s.std * rng.NormFloat64()
			}
			total += math.Max(inc, 0)
		}
		out[k] = total
	}
}

// Scenario es el resultado de escalar la tasa actual por un multiplicador.
type Scenario struct {
	Multiplier     float64
	Rate           float64
	Predicted      float64
	TopBucket      string
	TopProbability float64
}

// DefaultMultipliers barren ±30% alrededor de la tasa actual.
var DefaultMultipliers = []float64{0.7, 0.85, 1.0, 1.15, 1.3}

// ScenarioSweep proyecta la semana completa con la tasa actual escalada y devuelve
// el bucket más probable (modo analítico con std) para cada multiplicador.
// Sin tiempo transcurrido la tasa base es fallbackMean/totalHours.
func ScenarioSweep(count int, elapsedHours, totalHours, fallbackMean, std float64, labels []string, multipliers []float64) ([]Scenario, error) {
	if totalHours <= 0 {
		return nil, fmt.Errorf("projector.ScenarioSweep: %w",
			&domain.ParseError{Input: fmt.Sprintf("%g", totalHours), Reason: "total hours must be positive"})
	}
	if len(multipliers) == 0 {
		multipliers = DefaultMultipliers
	}
	base := fallbackMean / totalHours
	if elapsedHours > 0 {
		base = float64(count) / elapsedHours
	}

	out := make([]Scenario, 0, len(multipliers))
	for _, m := range multipliers {
		r := base * m
		predicted := r * totalHours
		probs, err := domain.AnalyticProbabilities(predicted, std, labels)
		if err != nil {
			return nil, fmt.Errorf("projector.ScenarioSweep: %w", err)
		}
		sc := Scenario{Multiplier: m, Rate: r, Predicted: predicted}
		if top := probs.Top(1); len(top) > 0 {
			sc.TopBucket = top[0].Bucket
			sc.TopProbability = top[0].Probability
		}
		out = append(out, sc)
	}
	return out, nil
}
