package models

import (
	"time"
)

// SystemSetting stores admin-tunable key/value overrides of config defaults.
type SystemSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100;not null" json:"key"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SystemSetting) TableName() string { return "system_settings" }

// All returns every model in migration order.
func All() []any {
	return []any{
		&Profile{},
		&Letter{},
		&StatusHistoryEntry{},
		&LetterAttachment{},
		&Subscription{},
		&ProcessedWebhookEvent{},
		&ReferralCoupon{},
		&CommissionPayment{},
		&Notification{},
		&SystemSetting{},
	}
}
