package models

import "time"

type Customer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User           User      `gorm:"foreignKey:UserID" json:"user"`
	DefaultAddress string    `gorm:"type:varchar(255)" json:"default_address"`
	DefaultLat     *float64  `gorm:"type:decimal(10,7)" json:"default_lat,omitempty"`
	DefaultLng     *float64  `gorm:"type:decimal(10,7)" json:"default_lng,omitempty"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}
