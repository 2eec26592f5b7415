package payment

import (
	"context"
	"time"
)

// Metadata keys carried on checkout sessions and processor subscriptions.
const (
	MetaUserID       = "user_id"
	MetaPlanType     = "plan_type"
	MetaDiscountCode = "discount_code"
	MetaBaseAmount   = "base_amount_cents"
)

type CheckoutRequest struct {
	UserID          uint
	Email           string
	PlanType        string
	BaseAmountCents int64
	AmountCents     int64 // after discount
	DiscountCode    string
	IdempotencyKey  string
	Description     string
}

type CheckoutResponse struct {
	Reference   string
	Status      string
	CheckoutURL string
	// Captured means payment already succeeded and the caller should reconcile now.
	Captured  bool
	ExpiresAt time.Time
}

// Provider starts checkouts with the payment processor. Capture itself happens at the processor.
type Provider interface {
	Name() string
	InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
	CancelSubscription(ctx context.Context, externalID string) error
}
