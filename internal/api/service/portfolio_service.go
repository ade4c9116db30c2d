package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"portfolio-api/internal/api/dto"
	"portfolio-api/internal/api/repository"
	"portfolio-api/internal/entity"
	"portfolio-api/pkg/logger"
)

const (
	minHoldings = 3
	maxHoldings = 7
	minQuantity = 5
	maxQuantity = 50
)

// PortfolioService defines the interface for portfolio valuation.
type PortfolioService interface {
	GetPortfolio(ctx context.Context, userID uint) (*dto.PortfolioResponse, error)
}

// NewPortfolioService creates a new portfolio service.
func NewPortfolioService(holdingRepo repository.HoldingRepository, tickerRepo repository.TickerRepository, priceRepo repository.PriceRepository, log *logger.Logger) PortfolioService {
	return &portfolioService{
		holdingRepo: holdingRepo,
		tickerRepo:  tickerRepo,
		priceRepo:   priceRepo,
		logger:      log,
	}
}

type portfolioService struct {
	holdingRepo repository.HoldingRepository
	tickerRepo  repository.TickerRepository
	priceRepo   repository.PriceRepository
	logger      *logger.Logger
}

// GetPortfolio returns the user's valued holdings, lazily assigning a
// portfolio on first access.
func (s *portfolioService) GetPortfolio(ctx context.Context, userID uint) (*dto.PortfolioResponse, error) {
	holdings, err := s.holdingRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	if len(holdings) == 0 {
		if err := s.assignHoldings(ctx, userID); err != nil {
			return nil, err
		}
		holdings, err = s.holdingRepo.FindByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload holdings: %w", err)
		}
	}

	return s.valuate(ctx, holdings)
}

// assignHoldings derives a deterministic basket from the user ID. A locally
// scoped generator keeps the seed away from any shared randomness, and the
// unique (user_id, ticker_id) index makes concurrent first requests
// first-write-wins.
func (s *portfolioService) assignHoldings(ctx context.Context, userID uint) error {
	tickers, err := s.tickerRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tickers: %w", err)
	}
	if len(tickers) == 0 {
		s.logger.WarnContext(ctx, "No tickers available to generate portfolio", logger.Field("user_id", userID))
		return nil
	}

	rng := rand.New(rand.NewSource(int64(userID)))

	upper := maxHoldings
	if len(tickers) < upper {
		upper = len(tickers)
	}
	lower := minHoldings
	if upper < lower {
		lower = upper
	}
	count := lower + rng.Intn(upper-lower+1)

	holdings := make([]entity.Holding, 0, count)
	for _, idx := range rng.Perm(len(tickers))[:count] {
		holdings = append(holdings, entity.Holding{
			UserID:   userID,
			TickerID: tickers[idx].ID,
			Quantity: minQuantity + rng.Intn(maxQuantity-minQuantity+1),
		})
	}

	if err := s.holdingRepo.CreateIfAbsent(ctx, holdings); err != nil {
		return fmt.Errorf("failed to persist holdings: %w", err)
	}

	s.logger.InfoContext(ctx, "Generated portfolio",
		logger.Field("user_id", userID),
		logger.IntField("holdings", count))
	return nil
}

// valuate resolves latest/previous closes for every held ticker and computes
// per-holding value and day-over-day change. Holdings without any price data
// are dropped from the response.
func (s *portfolioService) valuate(ctx context.Context, holdings []entity.Holding) (*dto.PortfolioResponse, error) {
	response := &dto.PortfolioResponse{Holdings: []dto.HoldingResponse{}}
	if len(holdings) == 0 {
		return response, nil
	}

	tickerIDs := make([]uint, 0, len(holdings))
	for _, h := range holdings {
		tickerIDs = append(tickerIDs, h.TickerID)
	}

	closes, err := s.priceRepo.FindLatestTwoByTickerIDs(ctx, tickerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	var totalValue float64
	for _, holding := range holdings {
		points := closes[holding.TickerID]
		if len(points) == 0 {
			continue
		}

		latest := points[0]
		dailyChangePct := 0.0
		if len(points) > 1 && points[1].ClosePrice != 0 {
			previous := points[1]
			dailyChangePct = (latest.ClosePrice - previous.ClosePrice) / previous.ClosePrice * 100
		}

		value := latest.ClosePrice * float64(holding.Quantity)
		totalValue += value

		response.Holdings = append(response.Holdings, dto.HoldingResponse{
			Ticker:         holding.Ticker.Symbol,
			Name:           holding.Ticker.Name,
			Qty:            holding.Quantity,
			Price:          round2(latest.ClosePrice),
			DailyChangePct: round2(dailyChangePct),
			Value:          round2(value),
		})
	}

	// The total is rounded from the unrounded sum, not from the already
	// rounded per-holding values. Changing this shifts totals by a penny.
	response.TotalValue = round2(totalValue)
	return response, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
