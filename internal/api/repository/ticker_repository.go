package repository

import (
	"context"

	"portfolio-api/internal/entity"

	"gorm.io/gorm"
)

// TickerRepository defines the interface for ticker data operations.
type TickerRepository interface {
	Create(ctx context.Context, ticker *entity.Ticker) error
	Update(ctx context.Context, ticker *entity.Ticker) error
	FindBySymbol(ctx context.Context, symbol string) (*entity.Ticker, error)
	FindAll(ctx context.Context) ([]entity.Ticker, error)
}

// NewTickerRepository creates a new GORM-based ticker repository.
func NewTickerRepository(db *gorm.DB) TickerRepository {
	return &tickerRepository{db: db}
}

type tickerRepository struct {
	db *gorm.DB
}

// Create creates a new ticker.
func (r *tickerRepository) Create(ctx context.Context, ticker *entity.Ticker) error {
	return r.db.WithContext(ctx).Create(ticker).Error
}

// Update saves changes to an existing ticker.
func (r *tickerRepository) Update(ctx context.Context, ticker *entity.Ticker) error {
	return r.db.WithContext(ctx).Save(ticker).Error
}

// FindBySymbol retrieves a ticker by its symbol.
func (r *tickerRepository) FindBySymbol(ctx context.Context, symbol string) (*entity.Ticker, error) {
	var ticker entity.Ticker
	if err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&ticker).Error; err != nil {
		return nil, err
	}
	return &ticker, nil
}

// FindAll retrieves all known tickers.
func (r *tickerRepository) FindAll(ctx context.Context) ([]entity.Ticker, error) {
	var tickers []entity.Ticker
	if err := r.db.WithContext(ctx).Order("symbol").Find(&tickers).Error; err != nil {
		return nil, err
	}
	return tickers, nil
}
