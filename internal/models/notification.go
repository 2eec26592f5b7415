package models

import (
	"time"

	"lexpost/internal/domain"
)

// Notification is an in-app notice for one user. It points at the letter or
// subscription it concerns so the dashboard can link straight to it.
type Notification struct {
	ID             uint                    `gorm:"primaryKey" json:"id"`
	UserID         uint                    `gorm:"not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	Kind           domain.NotificationKind `gorm:"size:40;not null" json:"kind"`
	Title          string                  `gorm:"size:255;not null" json:"title"`
	Body           string                  `gorm:"type:text" json:"body"`
	LetterID       *uint                   `gorm:"index" json:"letter_id,omitempty"`
	SubscriptionID *uint                   `gorm:"index" json:"subscription_id,omitempty"`
	AmountCents    int64                   `json:"amount_cents,omitempty"`
	ReadAt         *time.Time              `gorm:"index:idx_notifications_user_read,priority:2" json:"read_at"`
	CreatedAt      time.Time               `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
