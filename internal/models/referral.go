package models

import (
	"time"
)

// ReferralCoupon belongs to exactly one employee. The code never changes once issued.
type ReferralCoupon struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	EmployeeID         uint       `gorm:"uniqueIndex;not null" json:"employee_id"`
	Code               string     `gorm:"uniqueIndex;size:20;not null" json:"code"`
	DiscountPercentage int        `gorm:"not null" json:"discount_percentage"`
	Active             bool       `gorm:"not null" json:"active"`
	UsageCount         int64      `gorm:"not null;default:0" json:"usage_count"`
	MaxUses            int64      `gorm:"not null;default:0" json:"max_uses"` // 0 = unlimited
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (ReferralCoupon) TableName() string { return "referral_coupons" }

// Redeemable returns an empty reason when the coupon can be applied at now.
func (c *ReferralCoupon) Redeemable(now time.Time) (bool, string) {
	switch {
	case !c.Active:
		return false, "code is inactive"
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return false, "code has expired"
	case c.MaxUses > 0 && c.UsageCount >= c.MaxUses:
		return false, "code has reached its usage limit"
	}
	return true, ""
}

// CommissionPayment is append-only; one per redeemed subscription.
type CommissionPayment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	EmployeeID      uint      `gorm:"not null;index" json:"employee_id"`
	ReferredUserID  uint      `gorm:"not null;index" json:"referred_user_id"`
	SubscriptionID  uint      `gorm:"uniqueIndex;not null" json:"subscription_id"`
	CouponCode      string    `gorm:"size:20;not null" json:"coupon_code"`
	CommissionCents int64     `gorm:"not null" json:"commission_cents"`
	PointsAwarded   int       `gorm:"not null" json:"points_awarded"`
	EventType       string    `gorm:"size:50;not null" json:"event_type"`
	CreatedAt       time.Time `json:"created_at"`
}

func (CommissionPayment) TableName() string { return "commission_payments" }
