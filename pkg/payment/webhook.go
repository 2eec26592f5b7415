package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventCheckoutCompleted   = "checkout.session.completed"
)

var (
	// ErrInvalidSignature covers a missing, malformed, stale or mismatched signature header.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// SubscriptionData is the processor-neutral view of a subscription-like event object.
type SubscriptionData struct {
	ExternalID   string
	UserID       uint
	PlanType     string
	DiscountCode string
	AmountCents  int64 // base price; discounts are applied on our side
	Status       string
	PeriodStart  *time.Time
	PeriodEnd    *time.Time
	CanceledAt   *time.Time
}

type Event struct {
	ID           string
	Type         string
	Subscription SubscriptionData
}

// VerifyAndParse authenticates a Stripe-Signature header (HMAC-SHA256 over "{t}.{body}",
// constant-time compare, tolerance window) and only then decodes the payload.
func VerifyAndParse(payload []byte, sigHeader, secret string, tolerance time.Duration) (*Event, error) {
	if secret == "" {
		return nil, ErrInvalidSignature
	}
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureErr(err) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return fromStripeEvent(ev)
}

func isSignatureErr(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func fromStripeEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return nil, fmt.Errorf("%w: event has no data", ErrMalformedEvent)
	}
	switch out.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.Subscription = fromStripeSubscription(&sub)
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.Subscription = fromCheckoutSession(&sess)
	}
	return out, nil
}

func fromStripeSubscription(sub *stripe.Subscription) SubscriptionData {
	d := SubscriptionData{
		ExternalID:  sub.ID,
		Status:      string(sub.Status),
		PeriodStart: unixPtr(sub.CurrentPeriodStart),
		PeriodEnd:   unixPtr(sub.CurrentPeriodEnd),
		CanceledAt:  unixPtr(sub.CanceledAt),
	}
	applyMetadata(&d, sub.Metadata)
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil && d.AmountCents == 0 {
		d.AmountCents = sub.Items.Data[0].Price.UnitAmount
	}
	return d
}

func fromCheckoutSession(sess *stripe.CheckoutSession) SubscriptionData {
	d := SubscriptionData{ExternalID: sess.ID, Status: "active"}
	if sess.Subscription != nil && sess.Subscription.ID != "" {
		d.ExternalID = sess.Subscription.ID
	}
	applyMetadata(&d, sess.Metadata)
	if d.AmountCents == 0 {
		d.AmountCents = sess.AmountSubtotal
	}
	if d.UserID == 0 && sess.ClientReferenceID != "" {
		if id, err := strconv.ParseUint(sess.ClientReferenceID, 10, 64); err == nil {
			d.UserID = uint(id)
		}
	}
	return d
}

func applyMetadata(d *SubscriptionData, meta map[string]string) {
	if meta == nil {
		return
	}
	if id, err := strconv.ParseUint(meta[MetaUserID], 10, 64); err == nil {
		d.UserID = uint(id)
	}
	d.PlanType = meta[MetaPlanType]
	d.DiscountCode = meta[MetaDiscountCode]
	if base, err := strconv.ParseInt(meta[MetaBaseAmount], 10, 64); err == nil {
		d.AmountCents = base
	}
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
