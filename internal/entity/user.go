package entity

import "time"

type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	HashedPassword string    `gorm:"not null" json:"-"`
	FullName       string    `json:"full_name"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`

	Holdings []Holding `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}
