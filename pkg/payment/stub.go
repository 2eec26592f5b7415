package payment

import (
	"context"
	"fmt"
	"time"
)

// SimulatedProvider treats every checkout as immediately paid. For development and demos.
type SimulatedProvider struct{}

func (s *SimulatedProvider) Name() string { return "simulated" }

func (s *SimulatedProvider) InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	ref := req.IdempotencyKey
	if ref == "" {
		ref = fmt.Sprintf("%d_%d", time.Now().UnixNano(), req.UserID)
	}
	return &CheckoutResponse{
		Reference: "sim_" + ref,
		Status:    "COMPLETED",
		Captured:  true,
		ExpiresAt: time.Now(),
	}, nil
}

func (s *SimulatedProvider) CancelSubscription(ctx context.Context, externalID string) error {
	return nil
}
