package service

import (
	"context"
	"log/slog"

	"lexpost/internal/apperr"
	"lexpost/internal/auth"
	"lexpost/internal/domain"
	"lexpost/internal/models"
	"lexpost/internal/repository"
)

// ProfileService provisions profiles for verified identities and manages roles.
type ProfileService struct {
	tx       *repository.TxManager
	profiles *repository.ProfileRepository
	subs     *repository.SubscriptionRepository
	referral *ReferralService
	events   EventPublisher
	log      *slog.Logger
}

func NewProfileService(
	tx *repository.TxManager,
	profiles *repository.ProfileRepository,
	subs *repository.SubscriptionRepository,
	referral *ReferralService,
	events EventPublisher,
	log *slog.Logger,
) *ProfileService {
	return &ProfileService{tx: tx, profiles: profiles, subs: subs, referral: referral, events: events, log: log}
}

// EnsureProfile returns the profile for uc, creating it on first sight. The role claimed by the
// identity provider is only used at creation; afterwards the stored role is authoritative.
func (s *ProfileService) EnsureProfile(ctx context.Context, uc *auth.UserContext) (*models.Profile, error) {
	p, err := s.profiles.GetByID(ctx, uc.ID)
	if err == nil {
		return p, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}
	p = &models.Profile{ID: uc.ID, Email: uc.Email, Role: uc.Role}
	if err := s.profiles.Create(ctx, p); err != nil {
		if apperr.IsDuplicate(err) {
			return s.profiles.GetByID(ctx, uc.ID)
		}
		return nil, err
	}
	s.log.Info("profile created", "user_id", p.ID, "role", p.Role)
	if p.Role == domain.RoleEmployee {
		if _, err := s.referral.IssueCoupon(ctx, p.ID); err != nil {
			s.log.Error("failed to issue referral coupon", "employee_id", p.ID, "error", err)
		}
		return s.profiles.GetByID(ctx, p.ID)
	}
	return p, nil
}

// Me is the dashboard header: profile, current subscription and letters left.
type Me struct {
	Profile          *models.Profile      `json:"profile"`
	Subscription     *models.Subscription `json:"subscription,omitempty"`
	LettersRemaining int                  `json:"letters_remaining"`
}

func (s *ProfileService) Me(ctx context.Context, userID uint) (*Me, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	me := &Me{Profile: p, Subscription: sub}
	if sub != nil {
		me.LettersRemaining = sub.LettersRemaining()
	}
	return me, nil
}

func (s *ProfileService) UpdateName(ctx context.Context, userID uint, fullName string) (*models.Profile, error) {
	if err := s.profiles.UpdateFullName(ctx, userID, fullName); err != nil {
		return nil, err
	}
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, newEvent(domain.EventProfileUpdated, p.ID, p.UpdatedAt.UnixMilli(), p.ID, false, p))
	return p, nil
}

func (s *ProfileService) List(ctx context.Context, search string, role domain.Role, limit, offset int) ([]models.Profile, int64, error) {
	if role != "" && !role.Valid() {
		return nil, 0, apperr.Validation("unknown role %q", role)
	}
	return s.profiles.List(ctx, search, role, limit, offset)
}

// ChangeRole sets a profile's role. Becoming an employee issues (or reactivates) the referral
// coupon; leaving the employee role deactivates it and clears the profile code.
func (s *ProfileService) ChangeRole(ctx context.Context, a Actor, id uint, role domain.Role) (*models.Profile, error) {
	if !role.Valid() {
		return nil, apperr.Validation("unknown role %q", role)
	}
	if a.ID == id && role != domain.RoleAdmin {
		return nil, apperr.InvalidState("admins cannot demote themselves")
	}
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.profiles.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Role == role {
			return nil
		}
		if err := s.profiles.UpdateRole(ctx, id, role); err != nil {
			return err
		}
		switch {
		case role == domain.RoleEmployee:
			_, err = s.referral.IssueCoupon(ctx, id)
		case p.Role == domain.RoleEmployee:
			err = s.referral.RevokeCoupon(ctx, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("role changed", "user_id", id, "role", role, "by", a.ID)
	publish(ctx, s.events, newEvent(domain.EventProfileUpdated, p.ID, p.UpdatedAt.UnixMilli(), p.ID, false, p))
	return p, nil
}
