package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lettersSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexpost_letters_submitted_total",
			Help: "Total number of letters submitted",
		},
	)

	letterTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexpost_letter_transitions_total",
			Help: "Letter status changes by target status",
		},
		[]string{"to"},
	)

	letterGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexpost_letter_generations_total",
			Help: "AI generation attempts by result",
		},
		[]string{"result"},
	)

	couponRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexpost_coupon_redemptions_total",
			Help: "Subscription redemptions by outcome (applied, invalid, none, already_applied)",
		},
		[]string{"outcome"},
	)

	commissionCentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexpost_commission_cents_total",
			Help: "Commission credited to employees, in cents",
		},
	)

	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexpost_webhook_events_total",
			Help: "Payment webhook events by type and result",
		},
		[]string{"type", "result"},
	)
)
