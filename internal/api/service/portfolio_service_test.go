package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"portfolio-api/internal/api/repository"
	"portfolio-api/internal/entity"
	"portfolio-api/pkg/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&entity.User{}, &entity.Ticker{}, &entity.Price{}, &entity.Holding{}))
	return db
}

func seedTicker(t *testing.T, db *gorm.DB, symbol, name string, closes map[time.Time]float64) entity.Ticker {
	t.Helper()
	ticker := entity.Ticker{Symbol: symbol, Name: name, Sector: "Technology"}
	require.NoError(t, db.Create(&ticker).Error)
	for date, close := range closes {
		price := entity.Price{
			TickerID:   ticker.ID,
			Date:       datatypes.Date(date),
			OpenPrice:  close,
			HighPrice:  close,
			LowPrice:   close,
			ClosePrice: close,
			Volume:     1_000_000,
		}
		require.NoError(t, db.Create(&price).Error)
	}
	return ticker
}

func newPortfolioService(db *gorm.DB) PortfolioService {
	return NewPortfolioService(
		repository.NewHoldingRepository(db),
		repository.NewTickerRepository(db),
		repository.NewPriceRepository(db),
		logger.NewNop(),
	)
}

func seedMarket(t *testing.T, db *gorm.DB) {
	t.Helper()
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, symbol := range []string{"AAPL", "GOOGL", "MSFT", "TSLA", "NVDA"} {
		base := 100.0 + float64(i)*50
		seedTicker(t, db, symbol, symbol+" Inc.", map[time.Time]float64{
			d1: base,
			d2: base * 1.01,
		})
	}
}

func TestGetPortfolioAssignsDeterministically(t *testing.T) {
	db := newTestDB(t)
	seedMarket(t, db)
	svc := newPortfolioService(db)
	ctx := context.Background()

	first, err := svc.GetPortfolio(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, first.Holdings)
	assert.GreaterOrEqual(t, len(first.Holdings), 3)
	assert.LessOrEqual(t, len(first.Holdings), 5)

	for _, h := range first.Holdings {
		assert.GreaterOrEqual(t, h.Qty, 5)
		assert.LessOrEqual(t, h.Qty, 50)
	}

	second, err := svc.GetPortfolio(ctx, 42)
	require.NoError(t, err)

	require.Equal(t, len(first.Holdings), len(second.Holdings))
	for i := range first.Holdings {
		assert.Equal(t, first.Holdings[i].Ticker, second.Holdings[i].Ticker)
		assert.Equal(t, first.Holdings[i].Qty, second.Holdings[i].Qty)
	}
}

func TestGetPortfolioSecondCallDoesNotRegenerate(t *testing.T) {
	db := newTestDB(t)
	seedMarket(t, db)
	svc := newPortfolioService(db)
	ctx := context.Background()

	_, err := svc.GetPortfolio(ctx, 7)
	require.NoError(t, err)

	var before int64
	require.NoError(t, db.Model(&entity.Holding{}).Where("user_id = ?", 7).Count(&before).Error)
	require.Positive(t, before)

	_, err = svc.GetPortfolio(ctx, 7)
	require.NoError(t, err)

	var after int64
	require.NoError(t, db.Model(&entity.Holding{}).Where("user_id = ?", 7).Count(&after).Error)
	assert.Equal(t, before, after)
}

func TestGetPortfolioDifferentUsersDifferentSeeds(t *testing.T) {
	db := newTestDB(t)
	seedMarket(t, db)
	svc := newPortfolioService(db)
	ctx := context.Background()

	a, err := svc.GetPortfolio(ctx, 1)
	require.NoError(t, err)
	b, err := svc.GetPortfolio(ctx, 2)
	require.NoError(t, err)

	// Holdings are persisted per user, never shared.
	var countA, countB int64
	require.NoError(t, db.Model(&entity.Holding{}).Where("user_id = ?", 1).Count(&countA).Error)
	require.NoError(t, db.Model(&entity.Holding{}).Where("user_id = ?", 2).Count(&countB).Error)
	assert.EqualValues(t, len(a.Holdings), countA)
	assert.EqualValues(t, len(b.Holdings), countB)
}

func TestGetPortfolioNoTickers(t *testing.T) {
	db := newTestDB(t)
	svc := newPortfolioService(db)

	resp, err := svc.GetPortfolio(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, resp.Holdings)
	assert.Equal(t, 0.0, resp.TotalValue)
}

func TestValuationMath(t *testing.T) {
	db := newTestDB(t)
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	aapl := seedTicker(t, db, "AAPL", "Apple Inc.", map[time.Time]float64{d1: 180.0, d2: 182.0})
	googl := seedTicker(t, db, "GOOGL", "Alphabet Inc.", map[time.Time]float64{d1: 140.0, d2: 138.0})

	user := entity.User{Email: "v@example.com", HashedPassword: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&entity.Holding{UserID: user.ID, TickerID: aapl.ID, Quantity: 10}).Error)
	require.NoError(t, db.Create(&entity.Holding{UserID: user.ID, TickerID: googl.ID, Quantity: 5}).Error)

	svc := newPortfolioService(db)
	resp, err := svc.GetPortfolio(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, resp.Holdings, 2)

	byTicker := map[string]int{}
	for i, h := range resp.Holdings {
		byTicker[h.Ticker] = i
	}

	apple := resp.Holdings[byTicker["AAPL"]]
	assert.Equal(t, 182.0, apple.Price)
	assert.Equal(t, 10, apple.Qty)
	assert.Equal(t, 1820.0, apple.Value)
	// (182-180)/180*100 = 1.1111... -> 1.11
	assert.Equal(t, 1.11, apple.DailyChangePct)

	alphabet := resp.Holdings[byTicker["GOOGL"]]
	assert.Equal(t, 138.0, alphabet.Price)
	assert.Equal(t, 690.0, alphabet.Value)
	// (138-140)/140*100 = -1.4285... -> -1.43
	assert.Equal(t, -1.43, alphabet.DailyChangePct)

	assert.Equal(t, 2510.0, resp.TotalValue)
}

func TestValuationNoPreviousPrice(t *testing.T) {
	db := newTestDB(t)
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	aapl := seedTicker(t, db, "AAPL", "Apple Inc.", map[time.Time]float64{d1: 182.0})

	user := entity.User{Email: "np@example.com", HashedPassword: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&entity.Holding{UserID: user.ID, TickerID: aapl.ID, Quantity: 3}).Error)

	svc := newPortfolioService(db)
	resp, err := svc.GetPortfolio(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, resp.Holdings, 1)
	assert.Equal(t, 0.0, resp.Holdings[0].DailyChangePct)
	assert.Equal(t, 546.0, resp.Holdings[0].Value)
}

func TestValuationDropsHoldingsWithoutPrices(t *testing.T) {
	db := newTestDB(t)
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	priced := seedTicker(t, db, "AAPL", "Apple Inc.", map[time.Time]float64{d1: 182.0})
	unpriced := seedTicker(t, db, "NEWCO", "NewCo Inc.", nil)

	user := entity.User{Email: "drop@example.com", HashedPassword: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&entity.Holding{UserID: user.ID, TickerID: priced.ID, Quantity: 1}).Error)
	require.NoError(t, db.Create(&entity.Holding{UserID: user.ID, TickerID: unpriced.ID, Quantity: 9}).Error)

	svc := newPortfolioService(db)
	resp, err := svc.GetPortfolio(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, resp.Holdings, 1)
	assert.Equal(t, "AAPL", resp.Holdings[0].Ticker)
	assert.Equal(t, 182.0, resp.TotalValue)
}

func TestTotalValueRounding(t *testing.T) {
	db := newTestDB(t)
	seedMarket(t, db)
	svc := newPortfolioService(db)

	resp, err := svc.GetPortfolio(context.Background(), 99)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Holdings)

	var sum float64
	for _, h := range resp.Holdings {
		sum += h.Value
	}
	assert.InDelta(t, sum, resp.TotalValue, 0.01)
}

func TestAssignmentUsesAllTickersWhenFewerThanMinimum(t *testing.T) {
	db := newTestDB(t)
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	seedTicker(t, db, "AAPL", "Apple Inc.", map[time.Time]float64{d1: 180.0, d2: 182.0})
	seedTicker(t, db, "GOOGL", "Alphabet Inc.", map[time.Time]float64{d1: 140.0, d2: 138.0})

	svc := newPortfolioService(db)
	resp, err := svc.GetPortfolio(context.Background(), 11)
	require.NoError(t, err)
	assert.Len(t, resp.Holdings, 2)
}

func TestConcurrentFirstAccessWritesOneBasket(t *testing.T) {
	db := newTestDB(t)
	seedMarket(t, db)
	svc := newPortfolioService(db)
	ctx := context.Background()

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.GetPortfolio(ctx, 77)
			done <- err
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	var holdings []entity.Holding
	require.NoError(t, db.Where("user_id = ?", 77).Find(&holdings).Error)

	seen := map[uint]bool{}
	for _, h := range holdings {
		assert.False(t, seen[h.TickerID], "duplicate holding for ticker %d", h.TickerID)
		seen[h.TickerID] = true
	}
	assert.LessOrEqual(t, len(holdings), 5)
}
