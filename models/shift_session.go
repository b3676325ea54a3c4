package models

import "time"

// ShiftSession records one on-duty period of a cleaner. A cleaner has at most
// one session with EndedAt == nil.
type ShiftSession struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CleanerID     uint       `gorm:"index;not null" json:"cleaner_id"`
	Cleaner       Cleaner    `gorm:"foreignKey:CleanerID" json:"cleaner"`
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	StartLat      *float64   `gorm:"type:decimal(10,7)" json:"start_lat,omitempty"`
	StartLng      *float64   `gorm:"type:decimal(10,7)" json:"start_lng,omitempty"`
	EndLat        *float64   `gorm:"type:decimal(10,7)" json:"end_lat,omitempty"`
	EndLng        *float64   `gorm:"type:decimal(10,7)" json:"end_lng,omitempty"`
	JobsCompleted int        `gorm:"not null;default:0" json:"jobs_completed"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}
