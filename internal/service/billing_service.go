package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lexpost/config"
	"lexpost/internal/apperr"
	"lexpost/internal/authz"
	"lexpost/internal/domain"
	"lexpost/internal/models"
	"lexpost/internal/repository"
	"lexpost/pkg/payment"
)

// BillingService reconciles processor events into subscriptions and profile status.
type BillingService struct {
	tx       *repository.TxManager
	subs     *repository.SubscriptionRepository
	profiles *repository.ProfileRepository
	referral *ReferralService
	provider payment.Provider
	authz    *authz.Authorizer
	notifier *NotificationService
	events   EventPublisher
	plans    config.PlansConfig
	payCfg   config.PaymentConfig
	log      *slog.Logger
	now      func() time.Time
}

func NewBillingService(
	tx *repository.TxManager,
	subs *repository.SubscriptionRepository,
	profiles *repository.ProfileRepository,
	referral *ReferralService,
	provider payment.Provider,
	az *authz.Authorizer,
	notifier *NotificationService,
	events EventPublisher,
	plans config.PlansConfig,
	payCfg config.PaymentConfig,
	log *slog.Logger,
) *BillingService {
	return &BillingService{
		tx:       tx,
		subs:     subs,
		profiles: profiles,
		referral: referral,
		provider: provider,
		authz:    az,
		notifier: notifier,
		events:   events,
		plans:    plans,
		payCfg:   payCfg,
		log:      log,
		now:      time.Now,
	}
}

// PlanPrice is the configured base price of plan in cents.
func (s *BillingService) PlanPrice(plan domain.PlanType) (int64, bool) {
	switch plan {
	case domain.PlanOneLetter:
		return s.plans.OneLetterCents, true
	case domain.PlanFourMonthly:
		return s.plans.FourMonthlyCents, true
	case domain.PlanEightYearly:
		return s.plans.EightYearlyCents, true
	}
	return 0, false
}

// PlanForAmount maps an exact base price back to its plan. There is no fallback plan.
func (s *BillingService) PlanForAmount(cents int64) (domain.PlanType, bool) {
	for _, p := range domain.AllPlans {
		if price, _ := s.PlanPrice(p); price > 0 && price == cents {
			return p, true
		}
	}
	return "", false
}

func (s *BillingService) resolvePlan(d payment.SubscriptionData) (domain.PlanType, int64, error) {
	if p := domain.PlanType(d.PlanType); p.Valid() {
		price, _ := s.PlanPrice(p)
		return p, price, nil
	}
	if p, ok := s.PlanForAmount(d.AmountCents); ok {
		return p, d.AmountCents, nil
	}
	return "", 0, apperr.Validation("unrecognized subscription amount %d cents", d.AmountCents).
		WithCode(http.StatusUnprocessableEntity)
}

func periodEnd(plan domain.PlanType, start time.Time) *time.Time {
	var end time.Time
	switch plan {
	case domain.PlanFourMonthly:
		end = start.AddDate(0, 1, 0)
	case domain.PlanEightYearly:
		end = start.AddDate(1, 0, 0)
	default:
		return nil
	}
	return &end
}

type QuoteResult struct {
	PlanType   domain.PlanType `json:"plan_type"`
	Quote      domain.Quote    `json:"quote"`
	Validation *CodeValidation `json:"code,omitempty"`
}

// Quote previews the price userID would pay for plan with code. Commission is not disclosed.
func (s *BillingService) Quote(ctx context.Context, userID uint, plan domain.PlanType, code string) (*QuoteResult, error) {
	price, ok := s.PlanPrice(plan)
	if !ok {
		return nil, apperr.Validation("unknown plan type %q", plan)
	}
	res := &QuoteResult{PlanType: plan, Quote: domain.FullPrice(price)}
	if domain.NormalizeCode(code) == "" {
		return res, nil
	}
	v, err := s.referral.ValidateCode(ctx, code, userID)
	if err != nil {
		return nil, err
	}
	res.Validation = v
	if v.Valid {
		res.Quote = domain.PriceWithCode(price, v.DiscountPercentage, decimal.Zero)
	}
	return res, nil
}

type CheckoutResult struct {
	Reference    string               `json:"reference"`
	Status       string               `json:"status"`
	CheckoutURL  string               `json:"checkout_url,omitempty"`
	Quote        domain.Quote         `json:"quote"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
	Warning      string               `json:"warning,omitempty"`
}

// Checkout starts a purchase. Providers that capture immediately are reconciled in-line
// through the same path as a subscription.created webhook.
func (s *BillingService) Checkout(ctx context.Context, a Actor, email string, plan domain.PlanType, code string) (*CheckoutResult, error) {
	q, err := s.Quote(ctx, a.ID, plan, code)
	if err != nil {
		return nil, err
	}
	discountCode := ""
	warning := ""
	if q.Validation != nil {
		if q.Validation.Valid {
			discountCode = q.Validation.Code
		} else {
			warning = "discount code " + q.Validation.Code + " was not applied: " + q.Validation.Reason
		}
	}

	resp, err := s.provider.InitiateCheckout(ctx, payment.CheckoutRequest{
		UserID:          a.ID,
		Email:           email,
		PlanType:        string(plan),
		BaseAmountCents: q.Quote.BaseCents,
		AmountCents:     q.Quote.FinalCents,
		DiscountCode:    discountCode,
		IdempotencyKey:  uuid.NewString(),
		Description:     "LexPost " + string(plan),
	})
	if err != nil {
		s.log.Error("checkout failed", "user_id", a.ID, "plan_type", plan, "provider", s.provider.Name(), "error", err)
		return nil, apperr.ExternalService("payment provider unavailable").Wrap(err)
	}
	res := &CheckoutResult{
		Reference:   resp.Reference,
		Status:      resp.Status,
		CheckoutURL: resp.CheckoutURL,
		Quote:       q.Quote,
		Warning:     warning,
	}
	if !resp.Captured {
		return res, nil
	}

	start := s.now()
	applied, err := s.OnSubscriptionCreated(ctx, &payment.Event{
		Type: payment.EventSubscriptionCreated,
		Subscription: payment.SubscriptionData{
			ExternalID:   resp.Reference,
			UserID:       a.ID,
			PlanType:     string(plan),
			DiscountCode: discountCode,
			AmountCents:  q.Quote.BaseCents,
			Status:       string(domain.SubscriptionActive),
			PeriodStart:  &start,
			PeriodEnd:    periodEnd(plan, start),
		},
	})
	if err != nil {
		return nil, err
	}
	if applied != nil {
		res.Subscription = applied.Subscription
		res.Quote = applied.Quote
		res.Quote.CommissionCents = 0
		if applied.Warning != "" {
			res.Warning = applied.Warning
		}
	}
	return res, nil
}

// ErrInvalidWebhook is returned for unauthenticated or undecodable deliveries.
var ErrInvalidWebhook = errors.New("invalid request")

// HandleWebhook verifies the signature over the raw body before anything else, then dispatches.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := payment.VerifyAndParse(payload, signature, s.payCfg.WebhookSecret, s.payCfg.WebhookTolerance)
	if err != nil {
		webhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		s.log.Warn("webhook rejected", "error", err)
		return apperr.Validation("invalid request").Wrap(ErrInvalidWebhook)
	}
	return s.Dispatch(ctx, ev)
}

// Dispatch routes a verified event. Unknown event types are acknowledged and ignored.
func (s *BillingService) Dispatch(ctx context.Context, ev *payment.Event) error {
	var err error
	switch ev.Type {
	case payment.EventSubscriptionCreated, payment.EventCheckoutCompleted:
		_, err = s.OnSubscriptionCreated(ctx, ev)
	case payment.EventSubscriptionUpdated:
		_, err = s.OnSubscriptionUpdated(ctx, ev)
	case payment.EventSubscriptionDeleted:
		_, err = s.OnSubscriptionCancelled(ctx, ev)
	default:
		webhookEventsTotal.WithLabelValues(ev.Type, "ignored").Inc()
		s.log.Debug("ignoring webhook event", "event_id", ev.ID, "type", ev.Type)
		return nil
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	webhookEventsTotal.WithLabelValues(ev.Type, result).Inc()
	return err
}

// firstDelivery records ev.ID inside the current transaction; false means it was seen before.
// Events without an id (in-process checkouts) are always processed.
func (s *BillingService) firstDelivery(ctx context.Context, ev *payment.Event) (bool, error) {
	if ev.ID == "" {
		return true, nil
	}
	first, err := s.subs.MarkEventProcessed(ctx, ev.ID, ev.Type)
	if err != nil {
		return false, err
	}
	if !first {
		s.log.Info("duplicate webhook delivery ignored", "event_id", ev.ID, "type", ev.Type)
	}
	return first, nil
}

// OnSubscriptionCreated creates the subscription through the coupon engine and marks the
// owner active. Returns nil without error when the event is a duplicate or has no known user.
func (s *BillingService) OnSubscriptionCreated(ctx context.Context, ev *payment.Event) (*ApplyResult, error) {
	d := ev.Subscription
	if d.UserID == 0 {
		s.log.Warn("subscription event without user id", "event_id", ev.ID, "external_id", d.ExternalID)
		return nil, nil
	}
	if _, err := s.profiles.GetByID(ctx, d.UserID); err != nil {
		if apperr.IsNotFound(err) {
			s.log.Warn("subscription event for unknown user", "event_id", ev.ID, "user_id", d.UserID)
			return nil, nil
		}
		return nil, err
	}
	plan, base, err := s.resolvePlan(d)
	if err != nil {
		s.log.Error("cannot map subscription to a plan",
			"event_id", ev.ID,
			"external_id", d.ExternalID,
			"user_id", d.UserID,
			"amount_cents", d.AmountCents,
		)
		return nil, err
	}

	status := domain.ParseSubscriptionStatus(d.Status)
	if d.Status == "" {
		status = domain.SubscriptionActive
	}
	eventType := domain.CommissionEventSubscriptionCreated
	if ev.Type == payment.EventCheckoutCompleted {
		eventType = domain.CommissionEventCheckout
	}
	in := ApplyInput{
		Code:        d.DiscountCode,
		UserID:      d.UserID,
		PlanType:    plan,
		AmountCents: base,
		ExternalID:  d.ExternalID,
		EventType:   eventType,
		Status:      status,
		PeriodStart: d.PeriodStart,
		PeriodEnd:   d.PeriodEnd,
	}

	var res *ApplyResult
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		first, err := s.firstDelivery(ctx, ev)
		if err != nil || !first {
			return err
		}
		if res, err = s.referral.redeem(ctx, in); err != nil {
			return err
		}
		return s.mirrorProfile(ctx, d.UserID, status.ProfileMirror())
	})
	if err != nil {
		s.referral.logBookkeepingFailure(in, err)
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	s.referral.afterRedeem(ctx, res)
	if !res.AlreadyApplied {
		s.log.Info("subscription created",
			"subscription_id", res.Subscription.ID,
			"user_id", d.UserID,
			"plan_type", plan,
			"amount_cents", res.Subscription.AmountCents,
		)
		s.afterChange(ctx, res.Subscription)
	}
	return res, nil
}

// OnSubscriptionUpdated mirrors processor status and billing period. A new period resets the quota.
func (s *BillingService) OnSubscriptionUpdated(ctx context.Context, ev *payment.Event) (*models.Subscription, error) {
	d := ev.Subscription
	var sub *models.Subscription
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		first, err := s.firstDelivery(ctx, ev)
		if err != nil || !first {
			return err
		}
		existing, err := s.subs.LockByExternalID(ctx, d.ExternalID)
		if err != nil {
			return err
		}
		if existing == nil {
			s.log.Warn("update for unknown subscription", "event_id", ev.ID, "external_id", d.ExternalID)
			return nil
		}

		status := domain.ParseSubscriptionStatus(d.Status)
		fields := map[string]any{"status": status}
		if d.PeriodStart != nil {
			fields["current_period_start"] = *d.PeriodStart
			if existing.CurrentPeriodStart != nil && d.PeriodStart.After(*existing.CurrentPeriodStart) {
				fields["letters_used"] = 0
			}
		}
		if d.PeriodEnd != nil {
			fields["current_period_end"] = *d.PeriodEnd
		}
		if status == domain.SubscriptionCancelled && existing.CancelledAt == nil {
			fields["cancelled_at"] = s.cancelTime(d)
		}
		if err := s.subs.Update(ctx, existing.ID, fields); err != nil {
			return err
		}
		if err := s.mirrorProfile(ctx, existing.UserID, status.ProfileMirror()); err != nil {
			return err
		}
		sub, err = s.subs.GetByID(ctx, existing.ID)
		return err
	})
	if err != nil || sub == nil {
		return sub, err
	}
	s.log.Info("subscription updated", "subscription_id", sub.ID, "user_id", sub.UserID, "status", sub.Status)
	s.afterChange(ctx, sub)
	return sub, nil
}

// OnSubscriptionCancelled marks the subscription cancelled. Already-cancelled rows are left alone.
func (s *BillingService) OnSubscriptionCancelled(ctx context.Context, ev *payment.Event) (*models.Subscription, error) {
	d := ev.Subscription
	var sub *models.Subscription
	changed := false
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		first, err := s.firstDelivery(ctx, ev)
		if err != nil || !first {
			return err
		}
		existing, err := s.subs.LockByExternalID(ctx, d.ExternalID)
		if err != nil {
			return err
		}
		if existing == nil {
			s.log.Warn("cancellation for unknown subscription", "event_id", ev.ID, "external_id", d.ExternalID)
			return nil
		}
		sub = existing
		if existing.Status == domain.SubscriptionCancelled {
			return nil
		}
		if err := s.subs.Update(ctx, existing.ID, map[string]any{
			"status":       domain.SubscriptionCancelled,
			"cancelled_at": s.cancelTime(d),
		}); err != nil {
			return err
		}
		if err := s.mirrorProfile(ctx, existing.UserID, domain.SubscriptionCancelled); err != nil {
			return err
		}
		changed = true
		sub, err = s.subs.GetByID(ctx, existing.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.Info("subscription cancelled", "subscription_id", sub.ID, "user_id", sub.UserID)
		s.afterChange(ctx, sub)
	}
	return sub, nil
}

func (s *BillingService) cancelTime(d payment.SubscriptionData) time.Time {
	if d.CanceledAt != nil {
		return *d.CanceledAt
	}
	return s.now()
}

// mirrorProfile keeps the profile active while any subscription is active.
func (s *BillingService) mirrorProfile(ctx context.Context, userID uint, status domain.SubscriptionStatus) error {
	if status != domain.SubscriptionActive {
		active, err := s.subs.GetActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			status = domain.SubscriptionActive
		}
	}
	return s.profiles.SetSubscriptionStatus(ctx, userID, status)
}

func (s *BillingService) afterChange(ctx context.Context, sub *models.Subscription) {
	publish(ctx, s.events, newEvent(domain.EventSubscriptionUpdated, sub.ID, sub.UpdatedAt.UnixMilli(), sub.UserID, false, sub))
	if p, err := s.profiles.GetByID(ctx, sub.UserID); err == nil {
		publish(ctx, s.events, newEvent(domain.EventProfileUpdated, p.ID, p.UpdatedAt.UnixMilli(), p.ID, false, p))
	}
	s.notifier.NotifySubscription(ctx, sub)
}

// Cancel is the user-initiated cancel: the processor first, then the same path as a deleted webhook.
func (s *BillingService) Cancel(ctx context.Context, a Actor, id uint) (*models.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != a.ID && !s.authz.Can(a.Role, authz.SubscriptionCancelAny) {
		return nil, apperr.Authorization("not allowed to cancel subscription %d", id)
	}
	if sub.Status == domain.SubscriptionCancelled {
		return nil, apperr.InvalidState("subscription %d is already cancelled", id)
	}
	if err := s.provider.CancelSubscription(ctx, sub.ExternalID); err != nil {
		return nil, apperr.ExternalService("payment provider could not cancel the subscription").Wrap(err)
	}
	now := s.now()
	return s.OnSubscriptionCancelled(ctx, &payment.Event{
		Type: payment.EventSubscriptionDeleted,
		Subscription: payment.SubscriptionData{
			ExternalID: sub.ExternalID,
			Status:     "canceled",
			CanceledAt: &now,
		},
	})
}

func (s *BillingService) ListForUser(ctx context.Context, userID uint) ([]models.Subscription, error) {
	return s.subs.ListByUser(ctx, userID)
}
