package models

import "time"

// Invitation statuses.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationExpired  = "expired"
)

type CleanerInvitation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"index;not null" json:"company_id"`
	Company   Company   `gorm:"foreignKey:CompanyID" json:"company"`
	Email     string    `gorm:"type:varchar(255);not null" json:"email"`
	Token     string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"token"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
