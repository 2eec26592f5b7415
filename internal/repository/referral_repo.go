package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexpost/internal/apperr"
	"lexpost/internal/domain"
	"lexpost/internal/models"

	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// GetOrCreateCoupon returns the employee's coupon, issuing a new unique code if none exists.
func (r *ReferralRepository) GetOrCreateCoupon(ctx context.Context, employeeID uint, prefix string, discountPct int) (*models.ReferralCoupon, error) {
	var c models.ReferralCoupon
	err := conn(ctx, r.db).Where("employee_id = ?", employeeID).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	for i := 0; i < 10; i++ {
		code, err := domain.GenerateReferralCode(prefix)
		if err != nil {
			return nil, err
		}
		c = models.ReferralCoupon{EmployeeID: employeeID, Code: code, DiscountPercentage: discountPct, Active: true}
		err = conn(ctx, r.db).Create(&c).Error
		if err == nil {
			return &c, nil
		}
		if !apperr.IsDuplicate(err) {
			return nil, err
		}
		// Collision: retry with new code
	}
	return nil, fmt.Errorf("failed to generate a unique referral code after retries")
}

// FindByCode returns nil, nil for unknown codes.
func (r *ReferralRepository) FindByCode(ctx context.Context, code string) (*models.ReferralCoupon, error) {
	var c models.ReferralCoupon
	err := conn(ctx, r.db).Where("code = ?", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ReferralRepository) GetCoupon(ctx context.Context, id uint) (*models.ReferralCoupon, error) {
	var c models.ReferralCoupon
	if err := conn(ctx, r.db).First(&c, id).Error; err != nil {
		return nil, notFound(err, "coupon", id)
	}
	return &c, nil
}

func (r *ReferralRepository) FindByEmployeeID(ctx context.Context, employeeID uint) (*models.ReferralCoupon, error) {
	var c models.ReferralCoupon
	err := conn(ctx, r.db).Where("employee_id = ?", employeeID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementUsage bumps usage_count only while the coupon is still redeemable.
// It returns false if a concurrent redemption used the last slot or the coupon was deactivated.
func (r *ReferralRepository) IncrementUsage(ctx context.Context, couponID uint, now time.Time) (bool, error) {
	res := conn(ctx, r.db).Model(&models.ReferralCoupon{}).
		Where("id = ? AND active = ? AND (max_uses = 0 OR usage_count < max_uses) AND (expires_at IS NULL OR expires_at > ?)",
			couponID, true, now).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	return res.RowsAffected == 1, res.Error
}

func (r *ReferralRepository) UpdateCoupon(ctx context.Context, id uint, fields map[string]any) error {
	return conn(ctx, r.db).Model(&models.ReferralCoupon{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ReferralRepository) SetActiveByEmployee(ctx context.Context, employeeID uint, active bool) error {
	return conn(ctx, r.db).Model(&models.ReferralCoupon{}).
		Where("employee_id = ?", employeeID).
		Update("active", active).Error
}

func (r *ReferralRepository) CreateCommission(ctx context.Context, p *models.CommissionPayment) error {
	return conn(ctx, r.db).Create(p).Error
}

func (r *ReferralRepository) CountCommissionsForSubscription(ctx context.Context, subscriptionID uint) (int64, error) {
	var n int64
	err := conn(ctx, r.db).Model(&models.CommissionPayment{}).Where("subscription_id = ?", subscriptionID).Count(&n).Error
	return n, err
}

// ListCommissions lists payments, newest first; employeeID 0 means all employees.
func (r *ReferralRepository) ListCommissions(ctx context.Context, employeeID uint, limit, offset int) ([]models.CommissionPayment, int64, error) {
	q := conn(ctx, r.db).Model(&models.CommissionPayment{})
	if employeeID != 0 {
		q = q.Where("employee_id = ?", employeeID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.CommissionPayment
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func (r *ReferralRepository) CommissionTotals(ctx context.Context) (count int64, cents int64, err error) {
	var agg struct {
		N     int64
		Total int64
	}
	err = conn(ctx, r.db).Model(&models.CommissionPayment{}).
		Select("COUNT(*) as n, COALESCE(SUM(commission_cents), 0) as total").
		Scan(&agg).Error
	return agg.N, agg.Total, err
}
