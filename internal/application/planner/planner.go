package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/butterfly/internal/application/allocator"
	"github.com/alejandrodnm/butterfly/internal/application/projector"
	"github.com/alejandrodnm/butterfly/internal/domain"
	"github.com/alejandrodnm/butterfly/internal/ports"
)

// Config contiene la configuración del pipeline de planificación.
type Config struct {
	EventSlug     string
	Wallet        string // vacío = sin sugerencias de rebalanceo
	ShortLookback time.Duration
	LongLookback  time.Duration
	HistoryWindow time.Duration
	Capital       float64
	CurveWidth    float64 // escala de la campana del surplus
	TopN          int     // buckets seleccionados para el floor (0 = 3)
	TotalHours    float64 // duración del mercado si el evento no trae fechas (0 = 168)
	Projection    projector.Config
	Tiered        allocator.TieredConfig
	Rebalance     allocator.RebalanceConfig
}

// Deps agrupa los colaboradores externos. Store y Notifier son opcionales.
type Deps struct {
	History   ports.HistoryProvider
	Store     ports.HistoryStore
	Market    ports.MarketProvider
	Events    ports.EventSource
	Positions ports.PositionProvider
	Notifier  ports.Notifier
}

// Planner encadena Rate → Monte Carlo → Probabilidades → Allocation.
type Planner struct {
	cfg     Config
	state   *AppState
	deps    Deps
	proj    *projector.Projector
	lastTop string
}

// New crea un Planner con todas las dependencias inyectadas.
func New(cfg Config, state *AppState, deps Deps) *Planner {
	if cfg.TopN <= 0 {
		cfg.TopN = 3
	}
	if cfg.TotalHours <= 0 {
		cfg.TotalHours = 168
	}
	if cfg.Rebalance.Capital == 0 {
		cfg.Rebalance = allocator.DefaultRebalanceConfig(cfg.Capital)
	}
	return &Planner{
		cfg:   cfg,
		state: state,
		deps:  deps,
		proj:  projector.New(cfg.Projection),
	}
}

// State devuelve el AppState compartido.
func (p *Planner) State() *AppState {
	return p.state
}

// Refresh descarga el corpus histórico y lo guarda en el store. Si la descarga falla
// o viene vacía usa la copia local; si tampoco hay, devuelve ErrNoData.
func (p *Planner) Refresh(ctx context.Context) error {
	weeks, err := p.deps.History.FetchResolvedWeeks(ctx)
	if err == nil && len(weeks) > 0 {
		p.state.SetCorpus(weeks, time.Now().UTC())
		if p.deps.Store != nil {
			if err := p.deps.Store.SaveHistory(ctx, weeks); err != nil {
				slog.Warn("save history failed", "err", err)
			}
		}
		slog.Info("historical corpus refreshed", "weeks", len(weeks))
		return nil
	}
	if err != nil {
		slog.Warn("fetch resolved weeks failed, trying local copy", "err", err)
	}

	if p.deps.Store != nil {
		local, lerr := p.deps.Store.LoadHistory(ctx)
		if lerr == nil && len(local) > 0 {
			p.state.SetCorpus(local, p.state.LastFetch())
			slog.Info("historical corpus loaded from store", "weeks", len(local))
			return nil
		}
	}

	if err != nil {
		return fmt.Errorf("planner.Refresh: %w: %w", domain.ErrNoData, err)
	}
	return fmt.Errorf("planner.Refresh: empty corpus: %w", domain.ErrNoData)
}

// PrePlanResult es la planificación previa a la semana, solo con el corpus.
type PrePlanResult struct {
	Stats      domain.HistoricalStatistics
	Tiered     allocator.TieredPlan
	MostCommon string
	Band68     [2]float64
	Band95     [2]float64
}

// PrePlan calcula las estadísticas y la asignación por tiers.
func (p *Planner) PrePlan() (PrePlanResult, error) {
	stats, err := p.state.Stats()
	if err != nil {
		return PrePlanResult{}, fmt.Errorf("planner.PrePlan: %w", err)
	}
	plan, err := allocator.Tiered(stats.Mean, stats.Std, stats.Frequency, nil, p.cfg.Capital, p.cfg.Tiered)
	if err != nil {
		return PrePlanResult{}, fmt.Errorf("planner.PrePlan: %w", err)
	}
	res := PrePlanResult{Stats: stats, Tiered: plan}
	res.MostCommon, _ = stats.MostCommon()
	res.Band68[0], res.Band68[1] = stats.Band(1)
	res.Band95[0], res.Band95[1] = stats.Band(2)
	return res, nil
}

// LivePlan es el resultado de un tick del pipeline en vivo.
type LivePlan struct {
	At             time.Time
	Event          domain.MarketEvent
	Observation    domain.RateObservation
	HoursRemaining int
	ShortRate      float64
	LongRate       float64
	Hourly         domain.HourlyStats
	Pace           float64 // count/elapsed × total
	Projection     projector.Result
	Analytic       domain.BucketProbabilities // Gaussian(ProjAvg, std histórica)
	Empirical      domain.BucketProbabilities // histograma de la simulación
	AnalyticTop    []domain.RankedBucket
	Top            []domain.RankedBucket // top N empírico
	Plan           domain.AllocationPlan
	AllocationErr  error // infeasible o sin cotizaciones; el resto del plan sigue siendo válido
	Suggestions    []domain.Suggestion
	Scenarios      []projector.Scenario
}

// LivePlan ejecuta el pipeline completo para el instante now.
func (p *Planner) LivePlan(ctx context.Context, now time.Time) (LivePlan, error) {
	event, err := p.deps.Market.FetchEvent(ctx, p.cfg.EventSlug)
	if err != nil {
		return LivePlan{}, fmt.Errorf("planner.LivePlan: fetch event: %w", err)
	}

	from := now.Add(-p.historyWindow())
	if event.Start.Before(from) {
		from = event.Start
	}
	events, err := p.deps.Events.FetchEvents(ctx, from, now)
	if err != nil {
		return LivePlan{}, fmt.Errorf("planner.LivePlan: fetch events: %w", err)
	}

	lp := LivePlan{At: now, Event: event}
	lp.Observation = domain.NewRateObservation(events, event.Start, now)
	lp.ShortRate = domain.RecentRate(events, now, p.cfg.ShortLookback)
	lp.LongRate = domain.RecentRate(events, now, p.cfg.LongLookback)
	lp.Hourly = domain.HistoricalHourlyStats(events, now, p.historyWindow())
	lp.HoursRemaining = max(int(event.End.Sub(now).Hours()), 0)
	p.state.SetRate(lp.Observation, lp.ShortRate, lp.LongRate, now)

	stats, statsErr := p.state.Stats()
	totalHours := event.TotalHours()
	if totalHours <= 0 {
		totalHours = p.cfg.TotalHours
	}
	lp.Pace = domain.PredictFinalCount(lp.Observation.Count, lp.Observation.Hours(), totalHours, stats.Mean)

	lp.Projection, err = p.proj.Project(ctx, projector.Input{
		Current:        lp.Observation.Count,
		HoursRemaining: lp.HoursRemaining,
		ShortRate:      lp.ShortRate,
		LongRate:       lp.LongRate,
		HourlyMean:     lp.Hourly.Mean,
		HourlyStd:      lp.Hourly.Std,
	})
	if err != nil {
		return LivePlan{}, fmt.Errorf("planner.LivePlan: %w", err)
	}

	// Sin corpus no hay std semanal: se usa la dispersión de la propia simulación.
	std := stats.Std
	if statsErr != nil {
		_, std = domain.MeanStd(lp.Projection.Sample)
		slog.Debug("no historical stats, using simulated spread", "std", std)
	}
	labels := event.Labels()
	if len(labels) == 0 {
		labels = domain.FullBucketSet()
	}
	lp.Analytic, err = domain.AnalyticProbabilities(lp.Projection.ProjAvg, std, labels)
	if err != nil {
		return LivePlan{}, fmt.Errorf("planner.LivePlan: %w", err)
	}
	if domain.IsDegenerate(std) {
		slog.Warn("degenerate weekly std, probability concentrated on nearest bucket", "std", std)
	}
	lp.AnalyticTop = lp.Analytic.Top(p.cfg.TopN)

	lp.Empirical, err = lp.Projection.Probabilities()
	if err != nil {
		return LivePlan{}, fmt.Errorf("planner.LivePlan: %w", err)
	}
	lp.Top = lp.Empirical.Top(p.cfg.TopN)

	lp.Plan, lp.AllocationErr = p.allocate(event, lp.Top, lp.Projection.P50)
	if lp.AllocationErr == nil {
		lp.Plan = allocator.Annotate(lp.Plan, lp.Empirical)
	}

	lp.Suggestions = p.suggest(ctx, event, lp)

	lp.Scenarios, err = projector.ScenarioSweep(lp.Observation.Count, lp.Observation.Hours(), totalHours, stats.Mean, std, labels, nil)
	if err != nil {
		slog.Warn("scenario sweep failed", "err", err)
	}

	p.alert(ctx, lp)

	slog.Info("live plan computed",
		"count", lp.Observation.Count,
		"hours_remaining", lp.HoursRemaining,
		"proj_avg", math.Round(lp.Projection.ProjAvg),
		"p50", math.Round(lp.Projection.P50),
		"top", topLabel(lp.Top),
		"allocation", domain.Classify(lp.AllocationErr).String(),
	)
	return lp, nil
}

// allocate construye el plan floor+gaussiano con los buckets top que tienen precio.
func (p *Planner) allocate(event domain.MarketEvent, top []domain.RankedBucket, median float64) (domain.AllocationPlan, error) {
	prices := event.Prices()
	quotes := make([]domain.BucketQuote, 0, len(top))
	for i, rb := range top {
		price, ok := prices[rb.Bucket]
		if !ok {
			slog.Debug("selected bucket has no quote", "bucket", rb.Bucket)
			continue
		}
		role := domain.RoleHedge
		if i == 0 {
			role = domain.RoleWinner
		}
		quotes = append(quotes, domain.BucketQuote{Bucket: rb.Bucket, Price: price, Role: role})
	}
	return allocator.FloorGaussian(quotes, p.cfg.Capital, median, p.cfg.CurveWidth)
}

// suggest compara la cartera de la wallet con el objetivo. Sin wallet no hay sugerencias.
func (p *Planner) suggest(ctx context.Context, event domain.MarketEvent, lp LivePlan) []domain.Suggestion {
	if p.cfg.Wallet == "" || p.deps.Positions == nil {
		return nil
	}
	positions, err := p.deps.Positions.FetchPositions(ctx, p.cfg.Wallet, event.Slug)
	if err != nil && !errors.Is(err, domain.ErrNoData) {
		slog.Warn("fetch positions failed, skipping suggestions", "err", err)
		return nil
	}
	book := domain.BookFromPositions(positions)

	targets := allocator.ProbabilityTargets(lp.Empirical, p.cfg.Rebalance)
	if lp.AllocationErr == nil {
		targets = allocator.PlanTargets(lp.Plan)
	}
	return allocator.SuggestRebalance(book, targets, event.Prices(), lp.Empirical, p.cfg.Rebalance.Threshold)
}

// alert avisa cuando cambia el bucket más probable o el plan resulta infeasible.
func (p *Planner) alert(ctx context.Context, lp LivePlan) {
	if p.deps.Notifier == nil {
		return
	}
	var alerts []domain.Alert

	top := topLabel(lp.Top)
	if p.lastTop != "" && top != "" && top != p.lastTop {
		alerts = append(alerts, domain.Alert{
			Kind:    domain.AlertTopBucketChanged,
			Title:   "Most likely bucket changed",
			Message: fmt.Sprintf("%s → %s (%.1f%%), count %d, P50 %.0f", p.lastTop, top, lp.Top[0].Probability*100, lp.Observation.Count, lp.Projection.P50),
			Time:    lp.At,
		})
	}
	if top != "" {
		p.lastTop = top
	}

	var infeasible *domain.InfeasibleAllocationError
	if errors.As(lp.AllocationErr, &infeasible) {
		alerts = append(alerts, domain.Alert{
			Kind:    domain.AlertInfeasible,
			Title:   "Allocation infeasible",
			Message: infeasible.Error(),
			Time:    lp.At,
		})
	}

	for _, a := range alerts {
		if err := p.deps.Notifier.Notify(ctx, a); err != nil {
			slog.Warn("notify failed", "kind", a.Kind, "err", err)
		}
	}
}

func (p *Planner) historyWindow() time.Duration {
	if p.cfg.HistoryWindow <= 0 {
		return 365 * 24 * time.Hour
	}
	return p.cfg.HistoryWindow
}

func topLabel(top []domain.RankedBucket) string {
	if len(top) == 0 {
		return ""
	}
	return top[0].Bucket
}
