package entity

import "gorm.io/datatypes"

// Price is one day's OHLCV record for one ticker. Rows are immutable once
// written; ingestion only inserts dates that are missing.
type Price struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	TickerID   uint           `gorm:"not null;uniqueIndex:idx_ticker_date" json:"ticker_id"`
	Date       datatypes.Date `gorm:"not null;uniqueIndex:idx_ticker_date" json:"date"`
	OpenPrice  float64        `json:"open_price"`
	HighPrice  float64        `json:"high_price"`
	LowPrice   float64        `json:"low_price"`
	ClosePrice float64        `gorm:"not null" json:"close_price"`
	Volume     int64          `json:"volume"`

	Ticker Ticker `gorm:"foreignKey:TickerID" json:"-"`
}

func (Price) TableName() string {
	return "prices"
}
