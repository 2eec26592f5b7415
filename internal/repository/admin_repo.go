package repository

import (
	"context"

	"lexpost/internal/domain"
	"lexpost/internal/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalUsers          int64                         `json:"total_users"`
	TotalEmployees      int64                         `json:"total_employees"`
	ActiveSubscriptions int64                         `json:"active_subscriptions"`
	TotalRevenueCents   int64                         `json:"total_revenue_cents"`
	TotalSubscriptions  int64                         `json:"total_subscriptions"`
	TotalLetters        int64                         `json:"total_letters"`
	LettersByStatus     map[domain.LetterStatus]int64 `json:"letters_by_status"`
	TotalCommissions    int64                         `json:"total_commissions"`
	CommissionCents     int64                         `json:"commission_cents"`
}

type AdminRepository struct {
	db       *gorm.DB
	letters  *LetterRepository
	subs     *SubscriptionRepository
	referral *ReferralRepository
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{
		db:       db,
		letters:  NewLetterRepository(db),
		subs:     NewSubscriptionRepository(db),
		referral: NewReferralRepository(db),
	}
}

func (r *AdminRepository) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var s DashboardStats
	db := conn(ctx, r.db)
	if err := db.Model(&models.Profile{}).Count(&s.TotalUsers).Error; err != nil {
		return nil, err
	}
	db.Model(&models.Profile{}).Where("role = ?", domain.RoleEmployee).Count(&s.TotalEmployees)
	db.Model(&models.Subscription{}).Where("status = ?", domain.SubscriptionActive).Count(&s.ActiveSubscriptions)

	var err error
	if s.TotalRevenueCents, s.TotalSubscriptions, err = r.subs.Revenue(ctx); err != nil {
		return nil, err
	}
	if s.LettersByStatus, err = r.letters.CountByStatus(ctx); err != nil {
		return nil, err
	}
	for _, n := range s.LettersByStatus {
		s.TotalLetters += n
	}
	if s.TotalCommissions, s.CommissionCents, err = r.referral.CommissionTotals(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}
