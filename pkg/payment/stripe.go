package payment

import (
	"context"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/subscription"
)

type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	// PriceIDs maps plan type to a Stripe price, used when no discount applies.
	PriceIDs map[string]string
}

// StripeProvider creates hosted Checkout Sessions. Results arrive later through the webhook.
type StripeProvider struct {
	cfg StripeConfig
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	stripe.Key = cfg.SecretKey
	return &StripeProvider{cfg: cfg}
}

func (p *StripeProvider) Name() string { return "stripe" }

func recurringInterval(plan string) string {
	switch plan {
	case "four_monthly":
		return string(stripe.PriceRecurringIntervalMonth)
	case "eight_yearly":
		return string(stripe.PriceRecurringIntervalYear)
	}
	return ""
}

func (p *StripeProvider) InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	meta := map[string]string{
		MetaUserID:     strconv.FormatUint(uint64(req.UserID), 10),
		MetaPlanType:   req.PlanType,
		MetaBaseAmount: strconv.FormatInt(req.BaseAmountCents, 10),
	}
	if req.DiscountCode != "" {
		meta[MetaDiscountCode] = req.DiscountCode
	}

	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	interval := recurringInterval(req.PlanType)
	if priceID := p.cfg.PriceIDs[req.PlanType]; priceID != "" && req.AmountCents == req.BaseAmountCents {
		item.Price = stripe.String(priceID)
	} else {
		item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripe.String(string(stripe.CurrencyUSD)),
			UnitAmount:  stripe.Int64(req.AmountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(req.Description)},
		}
		if interval != "" {
			item.PriceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{Interval: stripe.String(interval)}
		}
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(p.cfg.SuccessURL),
		CancelURL:         stripe.String(p.cfg.CancelURL),
		ClientReferenceID: stripe.String(meta[MetaUserID]),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{item},
		Metadata:          meta,
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	if interval != "" {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta}
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutResponse{Reference: s.ID, Status: string(s.Status), CheckoutURL: s.URL}, nil
}

// CancelSubscription cancels a recurring subscription. One-off purchases are keyed by their
// checkout session id (cs_...) and have nothing to cancel at the processor.
func (p *StripeProvider) CancelSubscription(ctx context.Context, externalID string) error {
	if strings.HasPrefix(externalID, "cs_") {
		return nil
	}
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := subscription.Cancel(externalID, params)
	return err
}
