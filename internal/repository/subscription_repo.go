package repository

import (
	"context"
	"errors"

	"lexpost/internal/domain"
	"lexpost/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, s *models.Subscription) error {
	return conn(ctx, r.db).Create(s).Error
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	var s models.Subscription
	if err := conn(ctx, r.db).First(&s, id).Error; err != nil {
		return nil, notFound(err, "subscription", id)
	}
	return &s, nil
}

// FindByExternalID returns nil, nil when no row matches.
func (r *SubscriptionRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	var s models.Subscription
	err := conn(ctx, r.db).Where("external_id = ?", externalID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LockByExternalID reads the row FOR UPDATE where the dialect supports it.
func (r *SubscriptionRepository) LockByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	var s models.Subscription
	q := conn(ctx, r.db)
	if q.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("external_id = ?", externalID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActiveByUser returns the newest active subscription, or nil.
func (r *SubscriptionRepository) GetActiveByUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	var s models.Subscription
	err := conn(ctx, r.db).
		Where("user_id = ? AND status = ?", userID, domain.SubscriptionActive).
		Order("id DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Subscription, error) {
	var list []models.Subscription
	err := conn(ctx, r.db).Where("user_id = ?", userID).Order("id DESC").Find(&list).Error
	return list, err
}

func (r *SubscriptionRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	return conn(ctx, r.db).Model(&models.Subscription{}).Where("id = ?", id).Updates(fields).Error
}

// ConsumeLetter takes one letter from the quota; false when nothing is left.
func (r *SubscriptionRepository) ConsumeLetter(ctx context.Context, id uint) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND letters_used < letters_allowed", id, domain.SubscriptionActive).
		UpdateColumn("letters_used", gorm.Expr("letters_used + 1"))
	return res.RowsAffected == 1, res.Error
}

func (r *SubscriptionRepository) Revenue(ctx context.Context) (int64, int64, error) {
	var agg struct {
		Total int64
		N     int64
	}
	err := conn(ctx, r.db).Model(&models.Subscription{}).
		Select("COALESCE(SUM(amount_cents), 0) as total, COUNT(*) as n").
		Scan(&agg).Error
	return agg.Total, agg.N, err
}

// MarkEventProcessed inserts the event id; false means it was already recorded.
func (r *SubscriptionRepository) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	res := conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedWebhookEvent{EventID: eventID, Type: eventType})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
