package entity

import "time"

// Holding is a user's ownership of a quantity of one ticker. At most one row
// exists per (user, ticker) pair; the composite unique index is what makes
// concurrent first-time portfolio generation first-write-wins.
type Holding struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_ticker" json:"user_id"`
	TickerID  uint      `gorm:"not null;uniqueIndex:idx_user_ticker" json:"ticker_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Ticker Ticker `gorm:"foreignKey:TickerID" json:"-"`
}

func (Holding) TableName() string {
	return "holdings"
}
