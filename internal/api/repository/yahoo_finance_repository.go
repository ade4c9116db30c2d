package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portfolio-api/internal/api/config"
	"portfolio-api/internal/api/dto"
	"portfolio-api/pkg/logger"
	"portfolio-api/pkg/utils"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ErrRateLimited marks a provider failure that should flip the ingestion run
// to synthetic data: an explicit 429, a "too many requests" body, or a
// malformed/empty payload.
var ErrRateLimited = errors.New("market data provider rate limited")

const defaultChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// DailyBar is one day's OHLCV from the provider.
type DailyBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// TickerQuote bundles ticker metadata with its trailing daily history.
type TickerQuote struct {
	Symbol string
	Name   string
	Sector string
	Bars   []DailyBar
}

// MarketDataRepository defines the interface for the external price provider.
type MarketDataRepository interface {
	GetDailyHistory(ctx context.Context, symbol string, days int) (*TickerQuote, error)
}

// NewYahooFinanceRepository creates a rate-limited Yahoo Finance client.
func NewYahooFinanceRepository(cfg *config.Config, log *logger.Logger) MarketDataRepository {
	baseURL := cfg.Ingestion.BaseURL
	if baseURL == "" {
		baseURL = defaultChartBaseURL
	}

	timeout := 10 * time.Second
	if cfg.Ingestion.RequestTimeout != "" {
		if d, err := time.ParseDuration(cfg.Ingestion.RequestTimeout); err == nil {
			timeout = d
		}
	}

	maxPerMinute := cfg.Ingestion.MaxRequestsPerMinute
	if maxPerMinute <= 0 {
		maxPerMinute = 30
	}
	secondsPerRequest := time.Minute / time.Duration(maxPerMinute)

	return &yahooFinanceRepository{
		log:            log,
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		quoteCache:     gocache.New(15*time.Minute, 30*time.Minute),
	}
}

type yahooFinanceRepository struct {
	log            *logger.Logger
	baseURL        string
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	quoteCache     *gocache.Cache
}

// GetDailyHistory fetches metadata and up to `days` calendar days of daily
// bars for a symbol. Results are cached briefly so a scheduled run starting
// right after the startup run does not hit the provider twice.
func (r *yahooFinanceRepository) GetDailyHistory(ctx context.Context, symbol string, days int) (*TickerQuote, error) {
	cacheKey := fmt.Sprintf("%s:%d", symbol, days)
	if cached, found := r.quoteCache.Get(cacheKey); found {
		return cached.(*TickerQuote), nil
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	url := fmt.Sprintf("%s/%s?range=%dd&interval=1d", r.baseURL, symbol, days)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart data for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart response for %s: %w", symbol, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(strings.ToLower(string(body)), "too many requests") {
		return nil, fmt.Errorf("provider returned status %d for %s: %w", resp.StatusCode, symbol, ErrRateLimited)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("provider returned status %d for %s: %s", resp.StatusCode, symbol, string(body))
	}

	var chart dto.YahooChartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		// A non-JSON body on a 200 is the provider throttling behind a
		// consent or error page.
		return nil, fmt.Errorf("malformed chart response for %s: %w", symbol, ErrRateLimited)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("provider error for %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result for %s: %w", symbol, ErrRateLimited)
	}

	quote := buildQuote(symbol, chart.Chart.Result[0])
	if len(quote.Bars) == 0 {
		return nil, fmt.Errorf("no historical data for %s: %w", symbol, ErrRateLimited)
	}

	r.quoteCache.Set(cacheKey, quote, gocache.DefaultExpiration)
	r.log.DebugContext(ctx, "Fetched daily history",
		logger.StringField("symbol", symbol),
		logger.IntField("bars", len(quote.Bars)))

	return quote, nil
}

func buildQuote(symbol string, result dto.YahooChartResult) *TickerQuote {
	name := result.Meta.LongName
	if name == "" {
		name = result.Meta.ShortName
	}
	if name == "" {
		name = symbol
	}

	quote := &TickerQuote{
		Symbol: symbol,
		Name:   name,
		// The chart endpoint carries no sector field.
		Sector: "Unknown",
	}

	if len(result.Indicators.Quote) == 0 {
		return quote
	}
	q := result.Indicators.Quote[0]

	for i, ts := range result.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		bar := DailyBar{
			Date:  utils.TruncateToDay(time.Unix(ts, 0).UTC()),
			Close: *q.Close[i],
		}
		if i < len(q.Open) && q.Open[i] != nil {
			bar.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			bar.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			bar.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		quote.Bars = append(quote.Bars, bar)
	}

	return quote
}
