package models

import "time"

// FeeSetting holds the platform fee formula for one fee package. Only rows
// with Active=true are applied to new jobs.
type FeeSetting struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PackageType string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"package_type"` // custom, package1, package2
	Percent     float64   `gorm:"type:decimal(5,2);not null;default:0" json:"percent"`
	Flat        float64   `gorm:"type:decimal(10,2);not null;default:0" json:"flat"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
