package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/butterfly/internal/application/tracker"
	"github.com/alejandrodnm/butterfly/internal/domain"
	"github.com/alejandrodnm/butterfly/internal/ports"
)

const defaultTimelinePoints = 1000

// PositionView es la parte del tracker que sirve la API. Solo lectura.
type PositionView interface {
	Latest() (domain.LivePositionSnapshot, bool)
	LastUpdate() time.Time
	History() []domain.LivePositionSnapshot
	Butterfly() ([]domain.BucketExposure, bool)
	Timeline(maxPoints int) []tracker.TimelinePoint
}

// Server expone el estado del tracker por HTTP.
type Server struct {
	view           PositionView
	store          ports.SnapshotStore // opcional
	timelinePoints int
}

// NewServer crea el servidor. store puede ser nil (sin /api/db/stats).
func NewServer(view PositionView, store ports.SnapshotStore, timelinePoints int) *Server {
	if timelinePoints <= 0 {
		timelinePoints = defaultTimelinePoints
	}
	return &Server{view: view, store: store, timelinePoints: timelinePoints}
}

// Handler devuelve el mux con todas las rutas y middlewares.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/current", s.handleCurrent)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/butterfly", s.handleButterfly)
	mux.HandleFunc("GET /api/timeline", s.handleTimeline)
	mux.HandleFunc("GET /api/db/stats", s.handleDBStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	return corsMiddleware(loggingMiddleware(mux))
}

// Run sirve en addr hasta que ctx se cancele y luego cierra ordenadamente.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web.Run: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web.Run: shutdown: %w", err)
		}
		slog.Info("http server stopped")
		return nil
	}
}

// --- handlers ---

func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.view.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, currentResponse{Positions: []positionJSON{}})
		return
	}
	resp := currentResponse{
		LastUpdate:     &snap.Timestamp,
		TotalPositions: snap.TotalPositions,
		TotalValue:     snap.TotalValue,
		TotalPnL:       snap.TotalPnL,
		Positions:      make([]positionJSON, len(snap.Positions)),
	}
	for i, p := range snap.Positions {
		resp.Positions[i] = newPositionJSON(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.view.History()
	limit := getIntParam(r, "limit", len(history))
	if limit < len(history) {
		history = history[len(history)-limit:]
	}
	out := make([]snapshotJSON, len(history))
	for i, snap := range history {
		out[i] = newSnapshotJSON(snap)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleButterfly(w http.ResponseWriter, _ *http.Request) {
	exposures, _ := s.view.Butterfly()
	out := make([]exposureJSON, len(exposures))
	for i, e := range exposures {
		out[i] = newExposureJSON(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	points := getIntParam(r, "points", s.timelinePoints)
	timeline := s.view.Timeline(points)
	if timeline == nil {
		timeline = []tracker.TimelinePoint{}
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (s *Server) handleDBStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot store disabled")
		return
	}
	st, err := s.store.Stats(r.Context())
	if err != nil {
		slog.Warn("db stats failed", "err", err)
		writeError(w, http.StatusInternalServerError, "db stats unavailable")
		return
	}
	resp := dbStatsResponse{Snapshots: st.Count, UniqueBuckets: st.UniqueBuckets}
	if st.Count > 0 {
		resp.First, resp.Last = &st.First, &st.Last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Snapshots: len(s.view.History())}
	if last := s.view.LastUpdate(); !last.IsZero() {
		resp.LastUpdate = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// getIntParam lee un entero positivo de la query; si falta o es inválido usa def.
func getIntParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
