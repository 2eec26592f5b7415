package models

import (
	"time"

	"lexpost/internal/domain"
)

// Profile is one row per account. Profiles are never hard-deleted.
type Profile struct {
	ID                 uint                      `gorm:"primaryKey" json:"id"`
	Email              string                    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FullName           string                    `gorm:"size:255" json:"full_name"`
	Role               domain.Role               `gorm:"size:20;not null;index" json:"role"`
	ReferralCode       *string                   `gorm:"uniqueIndex;size:20" json:"referral_code,omitempty"` // employees only
	Points             int64                     `gorm:"not null;default:0" json:"points"`
	CommissionCents    int64                     `gorm:"not null;default:0" json:"commission_cents"`
	ReferredByID       *uint                     `gorm:"index" json:"referred_by_id,omitempty"`
	SubscriptionStatus domain.SubscriptionStatus `gorm:"size:20;not null;default:'inactive'" json:"subscription_status"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

func (p *Profile) IsEmployee() bool { return p.Role == domain.RoleEmployee }
