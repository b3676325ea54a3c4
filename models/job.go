package models

import (
	"fmt"
	"time"
)

// Job is the central booking record. Monetary fields are frozen at creation
// time by the pricing service and never recomputed afterwards.
type Job struct {
	ID              uint     `gorm:"primaryKey" json:"id"`
	CustomerID      uint     `gorm:"index;not null" json:"customer_id"`
	Customer        Customer `gorm:"foreignKey:CustomerID" json:"customer"`
	CompanyID       uint     `gorm:"index;not null" json:"company_id"`
	Company         Company  `gorm:"foreignKey:CompanyID" json:"company"`
	CleanerID       *uint    `gorm:"index" json:"cleaner_id,omitempty"`
	Cleaner         *Cleaner `gorm:"foreignKey:CleanerID" json:"cleaner,omitempty"`
	VehiclePlate    string   `gorm:"type:varchar(20)" json:"vehicle_plate"`
	VehicleModel    string   `gorm:"type:varchar(100)" json:"vehicle_model"`
	Address         string   `gorm:"type:varchar(255);not null" json:"address"`
	Latitude        float64  `gorm:"type:decimal(10,7);not null" json:"latitude"`
	Longitude       float64  `gorm:"type:decimal(10,7);not null" json:"longitude"`
	Status          string   `gorm:"type:varchar(20);not null;default:'pending_payment'" json:"status"`
	Price           float64  `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Fee             float64  `gorm:"type:decimal(10,2);not null;default:0" json:"fee"`
	Tax             float64  `gorm:"type:decimal(10,2);not null;default:0" json:"tax"`
	Tip             float64  `gorm:"type:decimal(10,2);not null;default:0" json:"tip"`
	Total           float64  `gorm:"type:decimal(10,2);not null;default:0" json:"total"`
	PaymentIntentID string   `gorm:"type:varchar(255);index" json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt      *time.Time `json:"refunded_at,omitempty"`
	Rating          *int       `json:"rating,omitempty"`
	Review          string     `gorm:"type:text" json:"review,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

// Reference returns the human-readable booking reference shown to customers
// and used as the Stripe payment description.
func (j *Job) Reference() string {
	return fmt.Sprintf("WASH-%d", j.ID)
}
