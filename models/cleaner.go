package models

import "time"

// Duty status values for Cleaner.
const (
	DutyOn  = "on_duty"
	DutyOff = "off_duty"
)

type Cleaner struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	User        User       `gorm:"foreignKey:UserID" json:"user"`
	CompanyID   uint       `gorm:"index;not null" json:"company_id"`
	Company     Company    `gorm:"foreignKey:CompanyID" json:"company"`
	DutyStatus  string     `gorm:"type:varchar(20);not null;default:'off_duty'" json:"duty_status"`
	LastLat     *float64   `gorm:"type:decimal(10,7)" json:"last_lat,omitempty"`
	LastLng     *float64   `gorm:"type:decimal(10,7)" json:"last_lng,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	Rating      float64    `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`
	RatingCount int64      `gorm:"not null;default:0" json:"rating_count"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}
