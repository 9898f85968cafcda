package planner

import (
	"maps"
	"sync"
	"time"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// AppState es el estado compartido entre ticks: corpus histórico, sus estadísticas,
// última descarga y la última tasa observada. Se crea una vez y se pasa explícitamente.
type AppState struct {
	mu        sync.RWMutex
	corpus    []domain.HistoricalWeek
	stats     domain.HistoricalStatistics
	statsErr  error
	lastFetch time.Time

	observation domain.RateObservation
	shortRate   float64
	longRate    float64
	rateAt      time.Time
}

// NewAppState crea el estado con un corpus inicial (puede estar vacío).
func NewAppState(corpus []domain.HistoricalWeek) *AppState {
	s := &AppState{}
	s.SetCorpus(corpus, time.Time{})
	return s
}

// SetCorpus reemplaza el corpus y recalcula las estadísticas.
func (s *AppState) SetCorpus(corpus []domain.HistoricalWeek, fetchedAt time.Time) {
	weeks := make([]domain.HistoricalWeek, len(corpus))
	copy(weeks, corpus)
	domain.SortWeeks(weeks)
	stats, err := domain.BuildStatistics(weeks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpus = weeks
	s.stats = stats
	s.statsErr = err
	s.lastFetch = fetchedAt
}

// Corpus devuelve una copia del corpus ordenado por fecha de cierre.
func (s *AppState) Corpus() []domain.HistoricalWeek {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.HistoricalWeek, len(s.corpus))
	copy(out, s.corpus)
	return out
}

// Stats devuelve las estadísticas del corpus, o ErrNoData si está vacío.
// Frequency es una copia: el llamador puede modificarla.
func (s *AppState) Stats() (domain.HistoricalStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := s.stats
	stats.Frequency = maps.Clone(s.stats.Frequency)
	return stats, s.statsErr
}

// LastFetch es el momento de la última descarga del corpus (cero si nunca).
func (s *AppState) LastFetch() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetch
}

// SetRate guarda la última observación y sus tasas.
func (s *AppState) SetRate(obs domain.RateObservation, short, long float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observation = obs
	s.shortRate = short
	s.longRate = long
	s.rateAt = at
}

// Rate devuelve la última observación cacheada.
func (s *AppState) Rate() (obs domain.RateObservation, short, long float64, at time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observation, s.shortRate, s.longRate, s.rateAt
}
