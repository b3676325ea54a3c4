package models

import "time"

// Company is a wash provider. Latitude/Longitude plus ServiceRadiusKm define
// its geofence; jobs outside the radius are never offered to it.
type Company struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	UserID          uint    `gorm:"uniqueIndex;not null" json:"user_id"`
	User            User    `gorm:"foreignKey:UserID" json:"user"`
	Name            string  `gorm:"type:varchar(255);not null" json:"name"`
	Address         string  `gorm:"type:varchar(255)" json:"address"`
	Latitude        float64 `gorm:"type:decimal(10,7);not null" json:"latitude"`
	Longitude       float64 `gorm:"type:decimal(10,7);not null" json:"longitude"`
	ServiceRadiusKm float64 `gorm:"type:decimal(6,2);not null;default:0" json:"service_radius_km"`
	BasePrice       float64 `gorm:"type:decimal(10,2);not null;default:0" json:"base_price"`
	FeePackage      string  `gorm:"type:varchar(20);not null;default:'package1'" json:"fee_package"` // custom, package1, package2
	Balance         float64 `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	StripeAccountID string  `gorm:"type:varchar(255)" json:"stripe_account_id,omitempty"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}
