package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

func sign(t *testing.T, body string, secret string, ts time.Time) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    secret,
		Timestamp: ts,
	})
	return signed.Header
}

const subscriptionCreated = `{
  "id": "evt_1",
  "object": "event",
  "type": "customer.subscription.created",
  "data": {"object": {
    "id": "sub_123",
    "object": "subscription",
    "status": "active",
    "current_period_start": 1700000000,
    "current_period_end": 1702592000,
    "metadata": {"user_id": "12", "discount_code": "EMP-AB12345"},
    "items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_1", "unit_amount": 4999}}]}
  }}
}`

func TestVerifyAndParse_SubscriptionCreated(t *testing.T) {
	header := sign(t, subscriptionCreated, testSecret, time.Now())

	ev, err := VerifyAndParse([]byte(subscriptionCreated), header, testSecret, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventSubscriptionCreated, ev.Type)
	assert.Equal(t, "sub_123", ev.Subscription.ExternalID)
	assert.Equal(t, uint(12), ev.Subscription.UserID)
	assert.Equal(t, "EMP-AB12345", ev.Subscription.DiscountCode)
	assert.Equal(t, int64(4999), ev.Subscription.AmountCents)
	assert.Equal(t, "active", ev.Subscription.Status)
	require.NotNil(t, ev.Subscription.PeriodEnd)
	assert.Equal(t, int64(1702592000), ev.Subscription.PeriodEnd.Unix())
	assert.Nil(t, ev.Subscription.CanceledAt)
}

func TestVerifyAndParse_RejectsBadSignatures(t *testing.T) {
	body := []byte(subscriptionCreated)
	tests := []struct {
		name   string
		header string
		secret string
	}{
		{"missing header", "", testSecret},
		{"garbage header", "nonsense", testSecret},
		{"wrong secret", sign(t, subscriptionCreated, "whsec_other", time.Now()), testSecret},
		{"stale timestamp", sign(t, subscriptionCreated, testSecret, time.Now().Add(-time.Hour)), testSecret},
		{"tampered body", sign(t, subscriptionCreated+" ", testSecret, time.Now()), testSecret},
		{"no secret configured", sign(t, subscriptionCreated, testSecret, time.Now()), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyAndParse(body, tt.header, tt.secret, 5*time.Minute)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestVerifyAndParse_CheckoutSession(t *testing.T) {
	body := `{
  "id": "evt_2",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "amount_subtotal": 3999,
    "client_reference_id": "5",
    "metadata": {"plan_type": "one_letter", "base_amount_cents": "4999", "discount_code": "EMP-AB12345"}
  }}
}`
	ev, err := VerifyAndParse([]byte(body), sign(t, body, testSecret, time.Now()), testSecret, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", ev.Subscription.ExternalID)
	assert.Equal(t, uint(5), ev.Subscription.UserID)
	assert.Equal(t, "one_letter", ev.Subscription.PlanType)
	assert.Equal(t, int64(4999), ev.Subscription.AmountCents)
	assert.Equal(t, "active", ev.Subscription.Status)
}

func TestVerifyAndParse_MalformedBodyWithValidSignature(t *testing.T) {
	body := `{"id": "evt_3", "type": "customer.subscription.updated", "data": {"object": "not-an-object"}`
	_, err := VerifyAndParse([]byte(body), sign(t, body, testSecret, time.Now()), testSecret, 5*time.Minute)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestSimulatedProvider(t *testing.T) {
	p := &SimulatedProvider{}
	resp, err := p.InitiateCheckout(context.Background(), CheckoutRequest{UserID: 3, IdempotencyKey: "abc"})
	require.NoError(t, err)
	assert.True(t, resp.Captured)
	assert.Equal(t, "sim_abc", resp.Reference)
	assert.NoError(t, p.CancelSubscription(context.Background(), "sim_abc"))
}
