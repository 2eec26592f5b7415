package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"lexpost/config"
	"lexpost/internal/apperr"
	"lexpost/internal/domain"
	"lexpost/internal/models"
	"lexpost/internal/repository"
)

// SettingCommissionRate overrides referral.commission_rate at runtime.
const SettingCommissionRate = "referral.commission_rate"

// ReferralService is the coupon engine: code validation, redemption and commission crediting.
type ReferralService struct {
	tx       *repository.TxManager
	coupons  *repository.ReferralRepository
	profiles *repository.ProfileRepository
	subs     *repository.SubscriptionRepository
	settings *repository.SettingRepository
	notifier *NotificationService
	cfg      config.ReferralConfig
	log      *slog.Logger
	now      func() time.Time
}

func NewReferralService(
	tx *repository.TxManager,
	coupons *repository.ReferralRepository,
	profiles *repository.ProfileRepository,
	subs *repository.SubscriptionRepository,
	settings *repository.SettingRepository,
	notifier *NotificationService,
	cfg config.ReferralConfig,
	log *slog.Logger,
) *ReferralService {
	return &ReferralService{
		tx:       tx,
		coupons:  coupons,
		profiles: profiles,
		subs:     subs,
		settings: settings,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// CodeValidation is the outcome of checking a code. Unknown codes are not errors.
type CodeValidation struct {
	Valid              bool   `json:"valid"`
	Code               string `json:"code,omitempty"`
	DiscountPercentage int    `json:"discount_percentage"`
	EmployeeID         uint   `json:"employee_id,omitempty"`
	Reason             string `json:"reason,omitempty"`

	couponID uint
}

// ValidateCode reports whether code can be redeemed by userID (0 when the caller is anonymous).
// Only store failures are returned as errors.
func (s *ReferralService) ValidateCode(ctx context.Context, code string, userID uint) (*CodeValidation, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return &CodeValidation{Reason: "no code provided"}, nil
	}
	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup code: %w", err)
	}
	if c == nil {
		return &CodeValidation{Code: code, Reason: "code not found"}, nil
	}
	if ok, reason := c.Redeemable(s.now()); !ok {
		return &CodeValidation{Code: code, Reason: reason}, nil
	}
	if userID != 0 && c.EmployeeID == userID {
		return &CodeValidation{Code: code, Reason: "you cannot redeem your own code"}, nil
	}
	return &CodeValidation{
		Valid:              true,
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage,
		EmployeeID:         c.EmployeeID,
		couponID:           c.ID,
	}, nil
}

// ApplyInput describes one subscription being created, optionally with a code.
type ApplyInput struct {
	Code        string
	UserID      uint
	PlanType    domain.PlanType
	AmountCents int64 // base price before discount
	ExternalID  string
	EventType   string
	Status      domain.SubscriptionStatus
	PeriodStart *time.Time
	PeriodEnd   *time.Time
}

type ApplyResult struct {
	Subscription   *models.Subscription      `json:"subscription"`
	Quote          domain.Quote              `json:"quote"`
	AlreadyApplied bool                      `json:"already_applied"`
	Warning        string                    `json:"warning,omitempty"`
	Commission     *models.CommissionPayment `json:"commission,omitempty"`
}

var errCouponExhausted = errors.New("coupon exhausted by a concurrent redemption")

// ApplyCode creates the subscription for in.ExternalID and, when the code is valid,
// records the redemption and credits the referring employee in the same transaction.
// Calling it again with the same ExternalID returns the stored subscription unchanged.
func (s *ReferralService) ApplyCode(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	res, err := s.redeem(ctx, in)
	if err != nil {
		s.logBookkeepingFailure(in, err)
		return nil, err
	}
	s.afterRedeem(ctx, res)
	return res, nil
}

func (s *ReferralService) validateInput(in ApplyInput) error {
	switch {
	case in.ExternalID == "":
		return apperr.Validation("subscription identifier is required")
	case in.UserID == 0:
		return apperr.Validation("user is required")
	case !in.PlanType.Valid():
		return apperr.Validation("unknown plan type %q", in.PlanType)
	case in.AmountCents <= 0:
		return apperr.Validation("amount must be positive")
	}
	return nil
}

// redeem runs the redemption without post-commit side effects so callers can nest it
// in their own transaction.
func (s *ReferralService) redeem(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	res, err := s.redeemOnce(ctx, in, true)
	if errors.Is(err, errCouponExhausted) {
		res, err = s.redeemOnce(ctx, in, false)
		if res != nil && !res.AlreadyApplied {
			res.Warning = fmt.Sprintf("discount code %s was not applied: code has reached its usage limit", domain.NormalizeCode(in.Code))
		}
	}
	if err != nil && apperr.IsDuplicate(err) {
		// A concurrent delivery for the same subscription committed first.
		existing, ferr := s.subs.FindByExternalID(ctx, in.ExternalID)
		if ferr == nil && existing != nil {
			return &ApplyResult{Subscription: existing, Quote: quoteOf(existing), AlreadyApplied: true}, nil
		}
	}
	return res, err
}

func (s *ReferralService) redeemOnce(ctx context.Context, in ApplyInput, useCode bool) (*ApplyResult, error) {
	var res *ApplyResult
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.subs.LockByExternalID(ctx, in.ExternalID)
		if err != nil {
			return err
		}
		if existing != nil {
			res = &ApplyResult{Subscription: existing, Quote: quoteOf(existing), AlreadyApplied: true}
			return nil
		}

		var v *CodeValidation
		warning := ""
		if useCode && domain.NormalizeCode(in.Code) != "" {
			if v, err = s.ValidateCode(ctx, in.Code, in.UserID); err != nil {
				return err
			}
			if !v.Valid {
				warning = fmt.Sprintf("discount code %s was not applied: %s", v.Code, v.Reason)
			}
		}

		quote := domain.FullPrice(in.AmountCents)
		if v != nil && v.Valid {
			quote = domain.PriceWithCode(in.AmountCents, v.DiscountPercentage, s.CommissionRate(ctx))
		}

		status := in.Status
		if status == "" {
			status = domain.SubscriptionActive
		}
		sub := &models.Subscription{
			UserID:             in.UserID,
			ExternalID:         in.ExternalID,
			PlanType:           in.PlanType,
			BaseAmountCents:    quote.BaseCents,
			DiscountCents:      quote.DiscountCents,
			AmountCents:        quote.FinalCents,
			Status:             status,
			LettersAllowed:     in.PlanType.LetterQuota(),
			CurrentPeriodStart: in.PeriodStart,
			CurrentPeriodEnd:   in.PeriodEnd,
		}
		if v != nil && v.Valid {
			code, employeeID := v.Code, v.EmployeeID
			sub.CouponCode = &code
			sub.EmployeeID = &employeeID
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return err
		}
		res = &ApplyResult{Subscription: sub, Quote: quote, Warning: warning}
		if v == nil || !v.Valid {
			return nil
		}

		ok, err := s.coupons.IncrementUsage(ctx, v.couponID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return errCouponExhausted
		}

		eventType := in.EventType
		if eventType == "" {
			eventType = domain.CommissionEventSubscriptionCreated
		}
		payment := &models.CommissionPayment{
			EmployeeID:      v.EmployeeID,
			ReferredUserID:  in.UserID,
			SubscriptionID:  sub.ID,
			CouponCode:      v.Code,
			CommissionCents: quote.CommissionCents,
			PointsAwarded:   1,
			EventType:       eventType,
		}
		if err := s.coupons.CreateCommission(ctx, payment); err != nil {
			if apperr.IsDuplicate(err) {
				return apperr.InvariantViolation("commission already recorded for subscription %d", sub.ID).Wrap(err)
			}
			return err
		}
		ok, err = s.profiles.CreditReferral(ctx, v.EmployeeID, payment.PointsAwarded, payment.CommissionCents)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvariantViolation("referring employee %d has no profile", v.EmployeeID)
		}
		if err := s.profiles.SetReferredByIfEmpty(ctx, in.UserID, v.EmployeeID); err != nil {
			return err
		}
		res.Commission = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// afterRedeem runs once the redemption has committed.
func (s *ReferralService) afterRedeem(ctx context.Context, res *ApplyResult) {
	switch {
	case res.AlreadyApplied:
		couponRedemptionsTotal.WithLabelValues("already_applied").Inc()
		return
	case res.Commission != nil:
		couponRedemptionsTotal.WithLabelValues("applied").Inc()
	case res.Warning != "":
		couponRedemptionsTotal.WithLabelValues("invalid").Inc()
	default:
		couponRedemptionsTotal.WithLabelValues("none").Inc()
	}
	if res.Warning != "" {
		s.log.Warn("subscription created at full price",
			"subscription_id", res.Subscription.ID,
			"user_id", res.Subscription.UserID,
			"warning", res.Warning,
		)
	}
	if c := res.Commission; c != nil {
		commissionCentsTotal.Add(float64(c.CommissionCents))
		s.log.Info("commission credited",
			"employee_id", c.EmployeeID,
			"subscription_id", c.SubscriptionID,
			"user_id", c.ReferredUserID,
			"code", c.CouponCode,
			"commission_cents", c.CommissionCents,
		)
		s.notifier.NotifyCommissionEarned(ctx, c.EmployeeID, c.CommissionCents, c.SubscriptionID)
	}
}

func (s *ReferralService) logBookkeepingFailure(in ApplyInput, err error) {
	if apperr.IsValidation(err) {
		return
	}
	s.log.Error("redemption failed, nothing was recorded",
		"user_id", in.UserID,
		"subscription_external_id", in.ExternalID,
		"code", in.Code,
		"amount_cents", in.AmountCents,
		"error", err,
	)
}

func quoteOf(sub *models.Subscription) domain.Quote {
	return domain.Quote{
		BaseCents:     sub.BaseAmountCents,
		DiscountCents: sub.DiscountCents,
		FinalCents:    sub.AmountCents,
	}
}

// CommissionRate returns the runtime override when set and valid, else the configured rate.
func (s *ReferralService) CommissionRate(ctx context.Context) decimal.Decimal {
	rate := decimal.NewFromFloat(s.cfg.CommissionRate)
	if s.settings == nil {
		return rate
	}
	raw, err := s.settings.Get(ctx, SettingCommissionRate)
	if err != nil || raw == "" {
		return rate
	}
	override, err := parseRate(raw)
	if err != nil {
		s.log.Warn("ignoring invalid commission rate setting", "value", raw, "error", err)
		return rate
	}
	return override
}

func (s *ReferralService) SetCommissionRate(ctx context.Context, raw string) error {
	r, err := parseRate(raw)
	if err != nil {
		return err
	}
	return s.settings.Set(ctx, SettingCommissionRate, r.String())
}

func parseRate(raw string) (decimal.Decimal, error) {
	r, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperr.Validation("commission rate must be a number")
	}
	if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, apperr.Validation("commission rate must be between 0 and 1")
	}
	return r, nil
}

// IssueCoupon gives an employee their code, reactivating an existing one.
// Codes are never regenerated once issued.
func (s *ReferralService) IssueCoupon(ctx context.Context, employeeID uint) (*models.ReferralCoupon, error) {
	var coupon *models.ReferralCoupon
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.coupons.GetOrCreateCoupon(ctx, employeeID, s.cfg.CodePrefix, s.cfg.DefaultDiscountPercentage)
		if err != nil {
			return err
		}
		if !c.Active {
			if err := s.coupons.SetActiveByEmployee(ctx, employeeID, true); err != nil {
				return err
			}
			c.Active = true
		}
		code := c.Code
		if err := s.profiles.SetReferralCode(ctx, employeeID, &code); err != nil {
			return err
		}
		coupon = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("referral coupon issued", "employee_id", employeeID, "code", coupon.Code)
	return coupon, nil
}

// RevokeCoupon deactivates the employee's coupon and clears the profile code.
func (s *ReferralService) RevokeCoupon(ctx context.Context, employeeID uint) error {
	return s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.coupons.SetActiveByEmployee(ctx, employeeID, false); err != nil {
			return err
		}
		return s.profiles.SetReferralCode(ctx, employeeID, nil)
	})
}

// CouponUpdate carries admin edits; nil fields are left unchanged.
type CouponUpdate struct {
	Active             *bool      `json:"active"`
	MaxUses            *int64     `json:"max_uses"`
	DiscountPercentage *int       `json:"discount_percentage"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

func (s *ReferralService) UpdateCoupon(ctx context.Context, id uint, u CouponUpdate) (*models.ReferralCoupon, error) {
	fields := map[string]any{}
	if u.Active != nil {
		fields["active"] = *u.Active
	}
	if u.MaxUses != nil {
		if *u.MaxUses < 0 {
			return nil, apperr.Validation("max_uses must not be negative")
		}
		fields["max_uses"] = *u.MaxUses
	}
	if u.DiscountPercentage != nil {
		if *u.DiscountPercentage < 0 || *u.DiscountPercentage > 100 {
			return nil, apperr.Validation("discount_percentage must be between 0 and 100")
		}
		fields["discount_percentage"] = *u.DiscountPercentage
	}
	if u.ExpiresAt != nil {
		fields["expires_at"] = *u.ExpiresAt
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("nothing to update")
	}
	if _, err := s.coupons.GetCoupon(ctx, id); err != nil {
		return nil, err
	}
	if err := s.coupons.UpdateCoupon(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.coupons.GetCoupon(ctx, id)
}

// ReferralSummary is an employee's own referral dashboard.
type ReferralSummary struct {
	Coupon          *models.ReferralCoupon     `json:"coupon"`
	Points          int64                      `json:"points"`
	CommissionCents int64                      `json:"commission_cents"`
	Payments        []models.CommissionPayment `json:"payments"`
	TotalPayments   int64                      `json:"total_payments"`
}

func (s *ReferralService) MyReferrals(ctx context.Context, employeeID uint, limit, offset int) (*ReferralSummary, error) {
	p, err := s.profiles.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !p.IsEmployee() {
		return nil, apperr.Authorization("only employees have referral codes")
	}
	c, err := s.coupons.FindByEmployeeID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	payments, total, err := s.coupons.ListCommissions(ctx, employeeID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ReferralSummary{
		Coupon:          c,
		Points:          p.Points,
		CommissionCents: p.CommissionCents,
		Payments:        payments,
		TotalPayments:   total,
	}, nil
}

func (s *ReferralService) ListCommissions(ctx context.Context, employeeID uint, limit, offset int) ([]models.CommissionPayment, int64, error) {
	return s.coupons.ListCommissions(ctx, employeeID, limit, offset)
}
