package models

import "time"

// JobFinancials is the per-job money split, written once when the job is
// created so later fee-setting changes cannot alter a booked price.
type JobFinancials struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	JobID       uint      `gorm:"uniqueIndex;not null" json:"job_id"`
	Job         Job       `gorm:"foreignKey:JobID" json:"job"`
	Gross       float64   `gorm:"type:decimal(10,2);not null" json:"gross"`
	PlatformFee float64   `gorm:"type:decimal(10,2);not null" json:"platform_fee"`
	VAT         float64   `gorm:"type:decimal(10,2);not null" json:"vat"`
	CompanyNet  float64   `gorm:"type:decimal(10,2);not null" json:"company_net"`
	FeePackage  string    `gorm:"type:varchar(20);not null" json:"fee_package"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
