package repository

import (
	"context"

	"lexpost/internal/domain"
	"lexpost/internal/models"

	"gorm.io/gorm"
)

type LetterRepository struct {
	db *gorm.DB
}

func NewLetterRepository(db *gorm.DB) *LetterRepository {
	return &LetterRepository{db: db}
}

type LetterFilter struct {
	UserID uint // 0 = all owners
	Status domain.LetterStatus
	Limit  int
	Offset int
}

func (r *LetterRepository) Create(ctx context.Context, l *models.Letter) error {
	if l.Version == 0 {
		l.Version = 1
	}
	return conn(ctx, r.db).Create(l).Error
}

func (r *LetterRepository) GetByID(ctx context.Context, id uint) (*models.Letter, error) {
	var l models.Letter
	if err := conn(ctx, r.db).First(&l, id).Error; err != nil {
		return nil, notFound(err, "letter", id)
	}
	return &l, nil
}

func (r *LetterRepository) List(ctx context.Context, f LetterFilter) ([]models.Letter, int64, error) {
	q := conn(ctx, r.db).Model(&models.Letter{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	var list []models.Letter
	err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, total, err
}

// UpdateVersioned applies fields only if the row still has l.Version, then bumps the version.
// On success l.Version is advanced to match the row.
func (r *LetterRepository) UpdateVersioned(ctx context.Context, l *models.Letter, fields map[string]any) error {
	fields["version"] = gorm.Expr("version + 1")
	res := conn(ctx, r.db).Model(&models.Letter{}).
		Where("id = ? AND version = ?", l.ID, l.Version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	l.Version++
	return nil
}

func (r *LetterRepository) AppendHistory(ctx context.Context, e *models.StatusHistoryEntry) error {
	return conn(ctx, r.db).Create(e).Error
}

func (r *LetterRepository) ListHistory(ctx context.Context, letterID uint) ([]models.StatusHistoryEntry, error) {
	var list []models.StatusHistoryEntry
	err := conn(ctx, r.db).Where("letter_id = ?", letterID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *LetterRepository) CountByStatus(ctx context.Context) (map[domain.LetterStatus]int64, error) {
	var rows []struct {
		Status domain.LetterStatus
		N      int64
	}
	err := conn(ctx, r.db).Model(&models.Letter{}).Select("status, COUNT(*) as n").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.LetterStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

// Delete removes the letter with its history and attachments. Callers wrap it in a transaction.
func (r *LetterRepository) Delete(ctx context.Context, id uint) error {
	db := conn(ctx, r.db)
	if err := db.Where("letter_id = ?", id).Delete(&models.StatusHistoryEntry{}).Error; err != nil {
		return err
	}
	if err := db.Where("letter_id = ?", id).Delete(&models.LetterAttachment{}).Error; err != nil {
		return err
	}
	res := db.Delete(&models.Letter{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "letter", id)
	}
	return nil
}

func (r *LetterRepository) AddAttachment(ctx context.Context, a *models.LetterAttachment) error {
	return conn(ctx, r.db).Create(a).Error
}

func (r *LetterRepository) ListAttachments(ctx context.Context, letterID uint) ([]models.LetterAttachment, error) {
	var list []models.LetterAttachment
	err := conn(ctx, r.db).Where("letter_id = ?", letterID).Order("id ASC").Find(&list).Error
	return list, err
}
