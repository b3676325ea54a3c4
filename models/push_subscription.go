package models

import "time"

type PushSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	Endpoint  string    `gorm:"type:varchar(500);uniqueIndex;not null" json:"endpoint"`
	P256dhKey string    `gorm:"type:varchar(255);not null" json:"p256dh_key"`
	AuthKey   string    `gorm:"type:varchar(255);not null" json:"auth_key"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
