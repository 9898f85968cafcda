package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultGammaBase    = "https://gamma-api.polymarket.com"
	defaultDataBase     = "https://data-api.polymarket.com"
	defaultXTrackerBase = "https://xtracker.polymarket.com"
	defaultTrackedUser  = "elonmusk"

	// Rate limits al 60% de los límites reales documentados.
	// Gamma /events: 300/10s → 180/10s → 18/s
	gammaRatePerSec = 18
	// Data API /positions: 200/10s → 120/10s → 12/s
	dataRatePerSec = 12
	// xtracker no documenta límites; el tracker consulta una vez por tick
	xtrackerRatePerSec = 2

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client de Polymarket (Gamma, Data API y xtracker) con rate limiting y retries.
type Client struct {
	http            *http.Client
	gammaBase       string
	dataBase        string
	xtrackerBase    string
	trackedUser     string
	history         HistoryFilter
	gammaLimiter    *rate.Limiter
	dataLimiter     *rate.Limiter
	xtrackerLimiter *rate.Limiter
}

// NewClient crea un Client con los base URLs dados.
// Los base URLs vacíos usan los de producción.
func NewClient(gammaBase, dataBase, xtrackerBase string) *Client {
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	if dataBase == "" {
		dataBase = defaultDataBase
	}
	if xtrackerBase == "" {
		xtrackerBase = defaultXTrackerBase
	}
	return &Client{
		http:            &http.Client{Timeout: 10 * time.Second},
		gammaBase:       gammaBase,
		dataBase:        dataBase,
		xtrackerBase:    xtrackerBase,
		trackedUser:     defaultTrackedUser,
		history:         DefaultHistoryFilter(),
		gammaLimiter:    rate.NewLimiter(gammaRatePerSec, 10),
		dataLimiter:     rate.NewLimiter(dataRatePerSec, 5),
		xtrackerLimiter: rate.NewLimiter(xtrackerRatePerSec, 2),
	}
}

// WithTrackedUser cambia la cuenta cuyos posts cuenta xtracker.
func (c *Client) WithTrackedUser(user string) *Client {
	if user != "" {
		c.trackedUser = user
	}
	return c
}

// WithHistoryFilter cambia el filtro de eventos usado por FetchResolvedWeeks.
func (c *Client) WithHistoryFilter(f HistoryFilter) *Client {
	c.history = f
	return c
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
