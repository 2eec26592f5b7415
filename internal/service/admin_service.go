package service

import (
	"context"
	"log/slog"

	"lexpost/internal/apperr"
	"lexpost/internal/models"
	"lexpost/internal/repository"
)

type AdminService struct {
	admin    *repository.AdminRepository
	settings *repository.SettingRepository
	referral *ReferralService
	log      *slog.Logger
}

func NewAdminService(admin *repository.AdminRepository, settings *repository.SettingRepository, referral *ReferralService, log *slog.Logger) *AdminService {
	return &AdminService{admin: admin, settings: settings, referral: referral, log: log}
}

func (s *AdminService) Dashboard(ctx context.Context) (*repository.DashboardStats, error) {
	return s.admin.GetDashboardStats(ctx)
}

func (s *AdminService) Settings(ctx context.Context) ([]models.SystemSetting, error) {
	return s.settings.GetAll(ctx)
}

// knownSettings validates values before they are stored.
var knownSettings = map[string]func(s *AdminService, ctx context.Context, value string) error{
	SettingCommissionRate: func(s *AdminService, ctx context.Context, value string) error {
		return s.referral.SetCommissionRate(ctx, value)
	},
}

func (s *AdminService) UpdateSetting(ctx context.Context, a Actor, key, value string) error {
	set, ok := knownSettings[key]
	if !ok {
		return apperr.Validation("unknown setting %q", key)
	}
	if err := set(s, ctx, value); err != nil {
		return err
	}
	s.log.Info("setting updated", "key", key, "value", value, "by", a.ID)
	return nil
}
