package repository

import (
	"context"

	"portfolio-api/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HoldingRepository defines the interface for holding data operations.
type HoldingRepository interface {
	FindByUserID(ctx context.Context, userID uint) ([]entity.Holding, error)
	CreateIfAbsent(ctx context.Context, holdings []entity.Holding) error
}

// NewHoldingRepository creates a new GORM-based holding repository.
func NewHoldingRepository(db *gorm.DB) HoldingRepository {
	return &holdingRepository{db: db}
}

type holdingRepository struct {
	db *gorm.DB
}

// FindByUserID retrieves a user's holdings with their tickers preloaded.
func (r *holdingRepository) FindByUserID(ctx context.Context, userID uint) ([]entity.Holding, error) {
	var holdings []entity.Holding
	err := r.db.WithContext(ctx).
		Preload("Ticker").
		Where("user_id = ?", userID).
		Order("ticker_id").
		Find(&holdings).Error
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

// CreateIfAbsent inserts holdings inside one transaction, skipping rows that
// collide on (user_id, ticker_id). Portfolio generation is deterministic, so
// a concurrent first request writes the identical set and loses harmlessly.
func (r *holdingRepository) CreateIfAbsent(ctx context.Context, holdings []entity.Holding) error {
	if len(holdings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "ticker_id"}},
			DoNothing: true,
		}).Create(&holdings).Error
	})
}
