package planner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/butterfly/internal/application/allocator"
	"github.com/alejandrodnm/butterfly/internal/application/planner"
	"github.com/alejandrodnm/butterfly/internal/application/projector"
	"github.com/alejandrodnm/butterfly/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeHistory struct {
	weeks []domain.HistoricalWeek
	err   error
}

func (f *fakeHistory) FetchResolvedWeeks(context.Context) ([]domain.HistoricalWeek, error) {
	return f.weeks, f.err
}

type fakeStore struct {
	saved []domain.HistoricalWeek
}

func (f *fakeStore) SaveHistory(_ context.Context, weeks []domain.HistoricalWeek) error {
	f.saved = weeks
	return nil
}

func (f *fakeStore) LoadHistory(context.Context) ([]domain.HistoricalWeek, error) {
	return f.saved, nil
}

type fakeMarket struct {
	event domain.MarketEvent
}

func (f *fakeMarket) FetchEvent(context.Context, string) (domain.MarketEvent, error) {
	return f.event, nil
}

type fakeEvents struct {
	times []time.Time
}

func (f *fakeEvents) FetchEvents(_ context.Context, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, t := range f.times {
		if !t.Before(from) && !t.After(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakePositions struct {
	positions []domain.Position
}

func (f *fakePositions) FetchPositions(context.Context, string, string) ([]domain.Position, error) {
	if len(f.positions) == 0 {
		return nil, domain.ErrNoData
	}
	return f.positions, nil
}

type recordingNotifier struct {
	alerts []domain.Alert
}

func (r *recordingNotifier) Notify(_ context.Context, a domain.Alert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

// --- helpers ---

var now = time.Date(2025, 12, 12, 17, 0, 0, 0, time.UTC)

func corpus() []domain.HistoricalWeek {
	counts := []int{195, 205, 210, 208, 212, 207, 213, 209, 211, 206}
	start := time.Date(2025, 9, 2, 16, 0, 0, 0, time.UTC)
	weeks := make([]domain.HistoricalWeek, len(counts))
	for i, c := range counts {
		s := start.AddDate(0, 0, 7*i)
		weeks[i] = domain.WeekFromCount(s, s.AddDate(0, 0, 7), c)
	}
	return weeks
}

// halfWeekEvent: mercado de 168h abierto hace 84h, todos los buckets a price.
func halfWeekEvent(price float64) domain.MarketEvent {
	ev := domain.MarketEvent{
		Slug:  "elon-musk-of-tweets-december-9-december-16",
		Start: now.Add(-84 * time.Hour),
		End:   now.Add(84 * time.Hour),
	}
	for _, l := range domain.FullBucketSet() {
		ev.Markets = append(ev.Markets, domain.BucketMarket{Bucket: l, YesPrice: price})
	}
	return ev
}

// evenTweets reparte n eventos uniformemente desde start durante hours horas.
func evenTweets(start time.Time, n int, hours float64) []time.Time {
	step := time.Duration(hours / float64(n) * float64(time.Hour))
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * step)
	}
	return out
}

func testConfig() planner.Config {
	return planner.Config{
		EventSlug:     "elon-musk-of-tweets-december-9-december-16",
		ShortLookback: 84 * time.Hour,
		LongLookback:  84 * time.Hour,
		HistoryWindow: 365 * 24 * time.Hour,
		Capital:       250,
		CurveWidth:    20,
		Projection:    projector.Config{Simulations: 4000, Seed: 11},
		Tiered:        allocator.DefaultTieredConfig(),
	}
}

func newPlanner(t *testing.T, cfg planner.Config, ev domain.MarketEvent, deps planner.Deps) *planner.Planner {
	t.Helper()
	deps.History = &fakeHistory{weeks: corpus()}
	deps.Market = &fakeMarket{event: ev}
	deps.Events = &fakeEvents{times: evenTweets(ev.Start, 100, 84)}
	p := planner.New(cfg, planner.NewAppState(nil), deps)
	require.NoError(t, p.Refresh(context.Background()))
	return p
}

// --- tests ---

func TestLivePlan_EndToEndHalfWeek(t *testing.T) {
	p := newPlanner(t, testConfig(), halfWeekEvent(0.05), planner.Deps{})

	lp, err := p.LivePlan(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 100, lp.Observation.Count)
	assert.Equal(t, 84, lp.HoursRemaining)
	assert.InDelta(t, 100.0/84, lp.ShortRate, 1e-9)
	assert.InDelta(t, 200.0, lp.Projection.ProjAvg, 1e-6)
	assert.InDelta(t, 200.0, lp.Pace, 1e-6)

	require.NotEmpty(t, lp.AnalyticTop)
	assert.Equal(t, "200-219", lp.AnalyticTop[0].Bucket)
	assert.InDelta(t, 1.0, lp.Analytic.Sum(), 1e-6)
	assert.InDelta(t, 1.0, lp.Empirical.Sum(), 1e-9)

	for _, x := range lp.Projection.Sample {
		require.GreaterOrEqual(t, x, 100.0)
	}

	require.NoError(t, lp.AllocationErr)
	assert.InDelta(t, 250.0, lp.Plan.TotalCost, 0.01)
	assert.GreaterOrEqual(t, lp.Plan.MinPayout(), 250.0)
	// la simulación cae entre 180-199 y 200-219: menos de TopN buckets con hits
	require.NotEmpty(t, lp.Top)
	assert.Len(t, lp.Plan.Lines, len(lp.Top))

	require.Len(t, lp.Scenarios, 5)
	assert.Equal(t, "200-219", lp.Scenarios[2].TopBucket)

	obs, short, _, at := p.State().Rate()
	assert.Equal(t, 100, obs.Count)
	assert.InDelta(t, lp.ShortRate, short, 1e-12)
	assert.Equal(t, now, at)
}

func TestLivePlan_InfeasibleIsReportedNotFatal(t *testing.T) {
	notifier := &recordingNotifier{}
	p := newPlanner(t, testConfig(), halfWeekEvent(0.6), planner.Deps{Notifier: notifier})

	lp, err := p.LivePlan(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, domain.FailureInfeasible, domain.Classify(lp.AllocationErr))
	assert.Empty(t, lp.Plan.Lines)
	assert.NotEmpty(t, lp.Top, "projection still available")

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, domain.AlertInfeasible, notifier.alerts[0].Kind)
}

func TestLivePlan_SuggestionsFromWallet(t *testing.T) {
	cfg := testConfig()
	cfg.Wallet = "0xabc"
	positions := &fakePositions{positions: []domain.Position{
		{Bucket: "500+", Outcome: domain.OutcomeYes, Size: 1000, AvgPrice: 0.03},
	}}
	p := newPlanner(t, cfg, halfWeekEvent(0.05), planner.Deps{Positions: positions})

	lp, err := p.LivePlan(context.Background(), now)
	require.NoError(t, err)
	require.NotEmpty(t, lp.Suggestions)

	var sell, buys int
	for _, s := range lp.Suggestions {
		if s.Bucket == "500+" {
			assert.Equal(t, domain.ActionSell, s.Action)
			sell++
		}
		if s.Action == domain.ActionBuy {
			buys++
		}
	}
	assert.Equal(t, 1, sell)
	assert.Equal(t, len(lp.Plan.Lines), buys)
}

func TestLivePlan_WalletWithoutPositions(t *testing.T) {
	cfg := testConfig()
	cfg.Wallet = "0xabc"
	p := newPlanner(t, cfg, halfWeekEvent(0.05), planner.Deps{Positions: &fakePositions{}})

	lp, err := p.LivePlan(context.Background(), now)
	require.NoError(t, err)
	// libro vacío: comprar todos los buckets del plan
	require.NoError(t, lp.AllocationErr)
	assert.Len(t, lp.Suggestions, len(lp.Plan.Lines))
}

func TestLivePlan_TopBucketChangeAlerts(t *testing.T) {
	notifier := &recordingNotifier{}
	ev := halfWeekEvent(0.05)
	p := newPlanner(t, testConfig(), ev, planner.Deps{Notifier: notifier})

	_, err := p.LivePlan(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, notifier.alerts)

	// 60 horas después sin tweets nuevos: el ritmo cae y cambia el bucket top
	_, err = p.LivePlan(context.Background(), now.Add(60*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, notifier.alerts)
	assert.Equal(t, domain.AlertTopBucketChanged, notifier.alerts[0].Kind)
}

func TestRefresh_FallsBackToStore(t *testing.T) {
	store := &fakeStore{saved: corpus()}
	p := planner.New(testConfig(), planner.NewAppState(nil), planner.Deps{
		History: &fakeHistory{err: errors.New("gamma down")},
		Store:   store,
	})
	require.NoError(t, p.Refresh(context.Background()))

	stats, err := p.State().Stats()
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Count)
}

func TestRefresh_SavesFetchedCorpus(t *testing.T) {
	store := &fakeStore{}
	p := planner.New(testConfig(), planner.NewAppState(nil), planner.Deps{
		History: &fakeHistory{weeks: corpus()},
		Store:   store,
	})
	require.NoError(t, p.Refresh(context.Background()))
	assert.Len(t, store.saved, 10)
	assert.False(t, p.State().LastFetch().IsZero())
}

func TestRefresh_NoDataAnywhere(t *testing.T) {
	p := planner.New(testConfig(), planner.NewAppState(nil), planner.Deps{
		History: &fakeHistory{},
		Store:   &fakeStore{},
	})
	err := p.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestPrePlan(t *testing.T) {
	p := planner.New(testConfig(), planner.NewAppState(corpus()), planner.Deps{})
	res, err := p.PrePlan()
	require.NoError(t, err)

	assert.InDelta(t, 207.6, res.Stats.Mean, 1e-9)
	assert.Equal(t, "200-219", res.MostCommon)
	assert.InDelta(t, 250.0, res.Tiered.UnfilteredTotal, 1e-9)
	assert.Equal(t, "200-219", res.Tiered.Displayed[0].Bucket)
	assert.Less(t, res.Band68[0], res.Stats.Mean)
	assert.Greater(t, res.Band95[1], res.Band68[1])
}

func TestPrePlan_EmptyCorpus(t *testing.T) {
	p := planner.New(testConfig(), planner.NewAppState(nil), planner.Deps{})
	_, err := p.PrePlan()
	assert.Equal(t, domain.FailureNoData, domain.Classify(err))
}

func TestAppState_StatsFrequencyIsACopy(t *testing.T) {
	state := planner.NewAppState(corpus())

	first, err := state.Stats()
	require.NoError(t, err)
	before := first.Frequency["200-219"]
	first.Frequency["200-219"] = 999
	delete(first.Frequency, "180-199")

	second, err := state.Stats()
	require.NoError(t, err)
	assert.Equal(t, before, second.Frequency["200-219"])
	assert.Contains(t, second.Frequency, "180-199")
}
