package entity

import "time"

type Ticker struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"uniqueIndex;not null" json:"symbol"`
	Name      string    `gorm:"not null" json:"name"`
	Sector    string    `json:"sector"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Prices []Price `gorm:"foreignKey:TickerID" json:"-"`
}

func (Ticker) TableName() string {
	return "tickers"
}
