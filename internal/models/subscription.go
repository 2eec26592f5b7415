package models

import (
	"time"

	"lexpost/internal/domain"
)

// Subscription is a historical record; rows are never deleted.
// ExternalID is the processor subscription id (or the checkout idempotency key) and keys redemption idempotency.
type Subscription struct {
	ID                 uint                      `gorm:"primaryKey" json:"id"`
	UserID             uint                      `gorm:"not null;index" json:"user_id"`
	ExternalID         string                    `gorm:"uniqueIndex;size:255;not null" json:"external_id"`
	PlanType           domain.PlanType           `gorm:"size:20;not null" json:"plan_type"`
	BaseAmountCents    int64                     `gorm:"not null" json:"base_amount_cents"`
	DiscountCents      int64                     `gorm:"not null;default:0" json:"discount_cents"`
	AmountCents        int64                     `gorm:"not null" json:"amount_cents"` // post-discount
	Status             domain.SubscriptionStatus `gorm:"size:20;not null;index" json:"status"`
	CouponCode         *string                   `gorm:"size:20" json:"coupon_code,omitempty"`
	EmployeeID         *uint                     `gorm:"index" json:"employee_id,omitempty"`
	LettersAllowed     int                       `gorm:"not null" json:"letters_allowed"`
	LettersUsed        int                       `gorm:"not null;default:0" json:"letters_used"`
	CurrentPeriodStart *time.Time                `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time                `json:"current_period_end,omitempty"`
	CancelledAt        *time.Time                `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) LettersRemaining() int {
	if s.Status != domain.SubscriptionActive || s.LettersUsed >= s.LettersAllowed {
		return 0
	}
	return s.LettersAllowed - s.LettersUsed
}

// ProcessedWebhookEvent records processor event ids already handled.
type ProcessedWebhookEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"uniqueIndex;size:255;not null" json:"event_id"`
	Type        string    `gorm:"size:100;not null" json:"type"`
	ProcessedAt time.Time `gorm:"autoCreateTime" json:"processed_at"`
}

func (ProcessedWebhookEvent) TableName() string { return "processed_webhook_events" }
