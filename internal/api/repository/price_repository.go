package repository

import (
	"context"
	"time"

	"portfolio-api/internal/entity"
	"portfolio-api/pkg/utils"

	"gorm.io/gorm"
)

// ClosePoint is one ranked close price for a ticker: RowNum 1 is the latest
// trading day, RowNum 2 the one before it.
type ClosePoint struct {
	TickerID   uint    `gorm:"column:ticker_id"`
	ClosePrice float64 `gorm:"column:close_price"`
	RowNum     int64   `gorm:"column:row_num"`
}

// PriceRepository defines the interface for price data operations.
type PriceRepository interface {
	CreateBatch(ctx context.Context, prices []entity.Price) error
	FindDatesByTickerID(ctx context.Context, tickerID uint) (map[string]struct{}, error)
	FindLatestTwoByTickerIDs(ctx context.Context, tickerIDs []uint) (map[uint][]ClosePoint, error)
	CountByTickerID(ctx context.Context, tickerID uint) (int64, error)
}

// NewPriceRepository creates a new GORM-based price repository.
func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepository{db: db}
}

type priceRepository struct {
	db *gorm.DB
}

// CreateBatch inserts the given price rows in one statement.
func (r *priceRepository) CreateBatch(ctx context.Context, prices []entity.Price) error {
	if len(prices) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&prices).Error
}

// FindDatesByTickerID returns the set of calendar dates already stored for a
// ticker, keyed YYYY-MM-DD. Ingestion consults it before inserting.
func (r *priceRepository) FindDatesByTickerID(ctx context.Context, tickerID uint) (map[string]struct{}, error) {
	var dates []time.Time
	err := r.db.WithContext(ctx).
		Model(&entity.Price{}).
		Where("ticker_id = ?", tickerID).
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}

	existing := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		existing[utils.DayKey(d)] = struct{}{}
	}
	return existing, nil
}

// FindLatestTwoByTickerIDs resolves the two most recent close prices per
// ticker in a single window query, ordered latest first.
func (r *priceRepository) FindLatestTwoByTickerIDs(ctx context.Context, tickerIDs []uint) (map[uint][]ClosePoint, error) {
	result := make(map[uint][]ClosePoint)
	if len(tickerIDs) == 0 {
		return result, nil
	}

	var rows []ClosePoint
	err := r.db.WithContext(ctx).Raw(`
		SELECT ticker_id, close_price, row_num FROM (
			SELECT ticker_id, close_price,
			       ROW_NUMBER() OVER (PARTITION BY ticker_id ORDER BY date DESC) AS row_num
			FROM prices
			WHERE ticker_id IN ?
		) ranked
		WHERE row_num <= 2
		ORDER BY ticker_id, row_num`, tickerIDs).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.TickerID] = append(result[row.TickerID], row)
	}
	return result, nil
}

// CountByTickerID returns how many price rows exist for a ticker.
func (r *priceRepository) CountByTickerID(ctx context.Context, tickerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Price{}).
		Where("ticker_id = ?", tickerID).
		Count(&count).Error
	return count, err
}
