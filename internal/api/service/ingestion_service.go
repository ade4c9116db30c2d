package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"portfolio-api/internal/api/config"
	"portfolio-api/internal/api/repository"
	"portfolio-api/internal/entity"
	"portfolio-api/pkg/logger"
	"portfolio-api/pkg/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type syntheticInfo struct {
	Name      string
	Sector    string
	BasePrice float64
}

// syntheticBaseData seeds the synthetic walk when the provider is
// unavailable. Symbols outside the table fall back to a generic entry.
var syntheticBaseData = map[string]syntheticInfo{
	"AAPL":  {"Apple Inc.", "Technology", 192.50},
	"GOOGL": {"Alphabet Inc.", "Technology", 141.80},
	"MSFT":  {"Microsoft Corporation", "Technology", 378.91},
	"TSLA":  {"Tesla, Inc.", "Automotive", 242.84},
	"NVDA":  {"NVIDIA Corporation", "Technology", 140.15},
	"AMZN":  {"Amazon.com, Inc.", "Consumer Cyclical", 197.50},
	"META":  {"Meta Platforms, Inc.", "Technology", 352.00},
	"JPM":   {"JPMorgan Chase & Co.", "Financial Services", 225.00},
	"V":     {"Visa Inc.", "Financial Services", 295.00},
	"WMT":   {"Walmart Inc.", "Consumer Defensive", 85.00},
}

// IngestionSummary reports per-symbol outcomes of one run.
type IngestionSummary struct {
	Succeeded int
	Failed    int
}

// IngestionService defines the interface for the price ingestion job.
type IngestionService interface {
	Run(ctx context.Context) IngestionSummary
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(cfg *config.Config, tickerRepo repository.TickerRepository, priceRepo repository.PriceRepository, marketDataRepo repository.MarketDataRepository, log *logger.Logger) IngestionService {
	staggerDelay := 500 * time.Millisecond
	if d, err := time.ParseDuration(cfg.Ingestion.StaggerDelay); err == nil && d >= 0 {
		staggerDelay = d
	}
	historyDays := cfg.Ingestion.HistoryDays
	if historyDays <= 0 {
		historyDays = 30
	}

	return &ingestionService{
		cfg:            cfg,
		tickerRepo:     tickerRepo,
		priceRepo:      priceRepo,
		marketDataRepo: marketDataRepo,
		logger:         log,
		staggerDelay:   staggerDelay,
		historyDays:    historyDays,
	}
}

type ingestionService struct {
	cfg            *config.Config
	tickerRepo     repository.TickerRepository
	priceRepo      repository.PriceRepository
	marketDataRepo repository.MarketDataRepository
	logger         *logger.Logger
	staggerDelay   time.Duration
	historyDays    int

	// syntheticMode flips once for the whole run on the first
	// rate-limit-like provider failure.
	syntheticMode atomic.Bool
}

// Run ingests all configured symbols concurrently with staggered starts.
// Every symbol runs to completion; one symbol's failure never cancels its
// siblings.
func (s *ingestionService) Run(ctx context.Context) IngestionSummary {
	symbols := s.cfg.Ingestion.TickerList()
	s.syntheticMode.Store(s.cfg.Ingestion.UseSyntheticData)

	s.logger.InfoContext(ctx, "Starting price ingestion",
		logger.IntField("symbols", len(symbols)),
		logger.Field("synthetic", s.syntheticMode.Load()))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		summary IngestionSummary
	)

	for idx, symbol := range symbols {
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()

			// Stagger starts so the batch does not burst the provider.
			timer := time.NewTimer(time.Duration(idx) * s.staggerDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return
			}

			err := s.ingestSymbol(ctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				s.logger.ErrorContext(ctx, "Failed to ingest symbol",
					logger.StringField("symbol", symbol),
					logger.ErrorField(err))
				return
			}
			summary.Succeeded++
		})
	}

	wg.Wait()

	s.logger.InfoContext(ctx, "Price ingestion completed",
		logger.IntField("succeeded", summary.Succeeded),
		logger.IntField("failed", summary.Failed))
	return summary
}

func (s *ingestionService) ingestSymbol(ctx context.Context, symbol string) error {
	if s.syntheticMode.Load() {
		return s.synthesize(ctx, symbol)
	}

	err := s.ingestFromProvider(ctx, symbol)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrRateLimited) {
		s.logger.WarnContext(ctx, "Provider rate limited, switching run to synthetic data",
			logger.StringField("symbol", symbol),
			logger.ErrorField(err))
		s.syntheticMode.Store(true)
		return s.synthesize(ctx, symbol)
	}
	return err
}

func (s *ingestionService) ingestFromProvider(ctx context.Context, symbol string) error {
	quote, err := s.marketDataRepo.GetDailyHistory(ctx, symbol, s.historyDays)
	if err != nil {
		return err
	}

	ticker, err := s.upsertTicker(ctx, symbol, quote.Name, quote.Sector)
	if err != nil {
		return err
	}

	existing, err := s.priceRepo.FindDatesByTickerID(ctx, ticker.ID)
	if err != nil {
		return fmt.Errorf("failed to load existing dates for %s: %w", symbol, err)
	}

	var prices []entity.Price
	for _, bar := range quote.Bars {
		if utils.IsWeekend(bar.Date) {
			continue
		}
		if _, ok := existing[utils.DayKey(bar.Date)]; ok {
			continue
		}
		prices = append(prices, entity.Price{
			TickerID:   ticker.ID,
			Date:       datatypes.Date(bar.Date),
			OpenPrice:  bar.Open,
			HighPrice:  bar.High,
			LowPrice:   bar.Low,
			ClosePrice: bar.Close,
			Volume:     bar.Volume,
		})
	}

	if err := s.priceRepo.CreateBatch(ctx, prices); err != nil {
		return fmt.Errorf("failed to store prices for %s: %w", symbol, err)
	}

	s.logger.InfoContext(ctx, "Stored price records",
		logger.StringField("symbol", symbol),
		logger.IntField("inserted", len(prices)))
	return nil
}

// synthesize walks a pseudo-random daily price series for the trailing
// window, inserting only missing weekday dates.
func (s *ingestionService) synthesize(ctx context.Context, symbol string) error {
	info, ok := syntheticBaseData[symbol]
	if !ok {
		info = syntheticInfo{Name: symbol + " Inc.", Sector: "Unknown", BasePrice: 100.0}
	}

	ticker, err := s.getOrCreateTicker(ctx, symbol, info.Name, info.Sector)
	if err != nil {
		return err
	}

	existing, err := s.priceRepo.FindDatesByTickerID(ctx, ticker.ID)
	if err != nil {
		return fmt.Errorf("failed to load existing dates for %s: %w", symbol, err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	end := utils.TruncateToDay(time.Now().UTC())
	day := end.AddDate(0, 0, -s.historyDays)
	price := info.BasePrice * uniform(rng, 0.95, 1.05)

	var prices []entity.Price
	for !day.After(end) {
		if utils.IsWeekend(day) {
			day = day.AddDate(0, 0, 1)
			continue
		}
		if _, ok := existing[utils.DayKey(day)]; !ok {
			price *= 1 + uniform(rng, -0.03, 0.03)

			open := price * uniform(rng, 0.99, 1.01)
			high := maxFloat(open, price) * uniform(rng, 1.0, 1.02)
			low := minFloat(open, price) * uniform(rng, 0.98, 1.0)
			volume := int64(uniform(rng, 50_000_000, 150_000_000))

			prices = append(prices, entity.Price{
				TickerID:   ticker.ID,
				Date:       datatypes.Date(day),
				OpenPrice:  open,
				HighPrice:  high,
				LowPrice:   low,
				ClosePrice: price,
				Volume:     volume,
			})
		}
		day = day.AddDate(0, 0, 1)
	}

	if err := s.priceRepo.CreateBatch(ctx, prices); err != nil {
		return fmt.Errorf("failed to store synthetic prices for %s: %w", symbol, err)
	}

	s.logger.InfoContext(ctx, "Stored synthetic price records",
		logger.StringField("symbol", symbol),
		logger.IntField("inserted", len(prices)))
	return nil
}

// upsertTicker creates the ticker on first sight and refreshes its metadata
// on subsequent runs.
func (s *ingestionService) upsertTicker(ctx context.Context, symbol, name, sector string) (*entity.Ticker, error) {
	ticker, err := s.tickerRepo.FindBySymbol(ctx, symbol)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up ticker %s: %w", symbol, err)
		}
		ticker = &entity.Ticker{Symbol: symbol, Name: name, Sector: sector}
		if err := s.tickerRepo.Create(ctx, ticker); err != nil {
			return nil, fmt.Errorf("failed to create ticker %s: %w", symbol, err)
		}
		return ticker, nil
	}

	if name != "" {
		ticker.Name = name
	}
	if sector != "" {
		ticker.Sector = sector
	}
	if err := s.tickerRepo.Update(ctx, ticker); err != nil {
		return nil, fmt.Errorf("failed to update ticker %s: %w", symbol, err)
	}
	return ticker, nil
}

// getOrCreateTicker is the synthetic-path variant: existing metadata is left
// untouched.
func (s *ingestionService) getOrCreateTicker(ctx context.Context, symbol, name, sector string) (*entity.Ticker, error) {
	ticker, err := s.tickerRepo.FindBySymbol(ctx, symbol)
	if err == nil {
		return ticker, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up ticker %s: %w", symbol, err)
	}

	ticker = &entity.Ticker{Symbol: symbol, Name: name, Sector: sector}
	if err := s.tickerRepo.Create(ctx, ticker); err != nil {
		return nil, fmt.Errorf("failed to create ticker %s: %w", symbol, err)
	}
	return ticker, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
