package models

import "time"

// Withdrawal statuses.
const (
	WithdrawalRequested = "requested"
	WithdrawalApproved  = "approved"
	WithdrawalRejected  = "rejected"
	WithdrawalPaid      = "paid"
)

type CompanyWithdrawal struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CompanyID   uint       `gorm:"index;not null" json:"company_id"`
	Company     Company    `gorm:"foreignKey:CompanyID" json:"company"`
	Amount      float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status      string     `gorm:"type:varchar(20);not null;default:'requested'" json:"status"`
	Note        string     `gorm:"type:varchar(255)" json:"note,omitempty"`
	ProcessedBy *uint      `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}
