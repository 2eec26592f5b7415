package domain

// Role is the closed set of account roles.
type Role string

const (
	RoleUser     Role = "user"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionUnpaid    SubscriptionStatus = "unpaid"
)

// ParseSubscriptionStatus maps processor statuses onto ours. Unknown values become inactive.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch s {
	case "active", "trialing":
		return SubscriptionActive
	case "past_due":
		return SubscriptionPastDue
	case "canceled", "cancelled":
		return SubscriptionCancelled
	case "unpaid":
		return SubscriptionUnpaid
	default:
		return SubscriptionInactive
	}
}

// ProfileMirror collapses a subscription status onto the profile's view of it.
func (s SubscriptionStatus) ProfileMirror() SubscriptionStatus {
	if s == SubscriptionActive {
		return SubscriptionActive
	}
	return SubscriptionInactive
}

type PlanType string

const (
	PlanOneLetter   PlanType = "one_letter"
	PlanFourMonthly PlanType = "four_monthly"
	PlanEightYearly PlanType = "eight_yearly"
)

var AllPlans = []PlanType{PlanOneLetter, PlanFourMonthly, PlanEightYearly}

func (p PlanType) Valid() bool {
	switch p {
	case PlanOneLetter, PlanFourMonthly, PlanEightYearly:
		return true
	}
	return false
}

// LetterQuota is the number of letters a plan grants per billing period.
func (p PlanType) LetterQuota() int {
	switch p {
	case PlanOneLetter:
		return 1
	case PlanFourMonthly:
		return 4
	case PlanEightYearly:
		return 8
	}
	return 0
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Letter template categories.
const (
	LetterTypeDemand          = "demand_letter"
	LetterTypeCeaseAndDesist  = "cease_and_desist"
	LetterTypeContractBreach  = "contract_breach"
	LetterTypeEviction        = "eviction_notice"
	LetterTypeDebtCollection  = "debt_collection"
	LetterTypeEmploymentIssue = "employment_dispute"
	LetterTypeGeneral         = "general_legal"
)

var LetterTypes = []string{
	LetterTypeDemand,
	LetterTypeCeaseAndDesist,
	LetterTypeContractBreach,
	LetterTypeEviction,
	LetterTypeDebtCollection,
	LetterTypeEmploymentIssue,
	LetterTypeGeneral,
}

// Change event types pushed to dashboards.
const (
	EventLetterCreated       = "letter.created"
	EventLetterUpdated       = "letter.updated"
	EventLetterDeleted       = "letter.deleted"
	EventSubscriptionUpdated = "subscription.updated"
	EventProfileUpdated      = "profile.updated"
	EventNotification        = "notification.created"
)

// NotificationKind says what an in-app notice is about.
type NotificationKind string

const (
	NotifLetterCompleted  NotificationKind = "letter_completed"
	NotifLetterCancelled  NotificationKind = "letter_cancelled"
	NotifCommissionEarned NotificationKind = "commission_earned"
	NotifSubscription     NotificationKind = "subscription_updated"
)

// Commission event sources.
const (
	CommissionEventSubscriptionCreated = "subscription_created"
	CommissionEventCheckout            = "checkout_completed"
)
