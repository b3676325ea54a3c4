package models

import "time"

// Transaction types.
const (
	TxJobPayment    = "job_payment"
	TxCompanyCredit = "company_credit"
	TxRefund        = "refund"
	TxWithdrawal    = "withdrawal"
	TxTip           = "tip"
)

type Transaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	User         User      `gorm:"foreignKey:UserID" json:"user"`
	JobID        *uint     `gorm:"index" json:"job_id,omitempty"`
	Type         string    `gorm:"type:varchar(30);not null" json:"type"`
	Amount       float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	BalanceAfter float64   `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	Description  string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}
