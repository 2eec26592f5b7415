package repository

import (
	"context"
	"strings"

	"lexpost/internal/domain"
	"lexpost/internal/models"

	"gorm.io/gorm"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.SubscriptionStatus == "" {
		p.SubscriptionStatus = domain.SubscriptionInactive
	}
	return conn(ctx, r.db).Create(p).Error
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	var p models.Profile
	if err := conn(ctx, r.db).First(&p, id).Error; err != nil {
		return nil, notFound(err, "profile", id)
	}
	return &p, nil
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	err := conn(ctx, r.db).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&p).Error
	if err != nil {
		return nil, notFound(err, "profile", email)
	}
	return &p, nil
}

// List returns profiles with optional search and role filter.
func (r *ProfileRepository) List(ctx context.Context, search string, role domain.Role, limit, offset int) ([]models.Profile, int64, error) {
	q := conn(ctx, r.db).Model(&models.Profile{})
	if search != "" {
		q = q.Where("email LIKE ? OR full_name LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Profile
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func (r *ProfileRepository) UpdateRole(ctx context.Context, id uint, role domain.Role) error {
	return conn(ctx, r.db).Model(&models.Profile{}).Where("id = ?", id).Update("role", role).Error
}

func (r *ProfileRepository) UpdateFullName(ctx context.Context, id uint, fullName string) error {
	res := conn(ctx, r.db).Model(&models.Profile{}).Where("id = ?", id).Update("full_name", strings.TrimSpace(fullName))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "profile", id)
	}
	return nil
}

func (r *ProfileRepository) SetReferralCode(ctx context.Context, id uint, code *string) error {
	return conn(ctx, r.db).Model(&models.Profile{}).Where("id = ?", id).Update("referral_code", code).Error
}

func (r *ProfileRepository) SetSubscriptionStatus(ctx context.Context, id uint, status domain.SubscriptionStatus) error {
	return conn(ctx, r.db).Model(&models.Profile{}).Where("id = ?", id).Update("subscription_status", status).Error
}

// SetReferredByIfEmpty records the referring employee only once.
func (r *ProfileRepository) SetReferredByIfEmpty(ctx context.Context, id, employeeID uint) error {
	return conn(ctx, r.db).Model(&models.Profile{}).
		Where("id = ? AND referred_by_id IS NULL", id).
		UpdateColumn("referred_by_id", employeeID).Error
}

// CreditReferral atomically adds points and commission to an employee balance.
func (r *ProfileRepository) CreditReferral(ctx context.Context, employeeID uint, points int, commissionCents int64) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Profile{}).
		Where("id = ?", employeeID).
		UpdateColumns(map[string]any{
			"points":           gorm.Expr("points + ?", points),
			"commission_cents": gorm.Expr("commission_cents + ?", commissionCents),
		})
	return res.RowsAffected == 1, res.Error
}
