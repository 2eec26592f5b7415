package domain

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to LetterStatus
		want     bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusSubmitted, StatusInReview, true},
		{StatusInReview, StatusApproved, true},
		{StatusApproved, StatusCompleted, true},
		{StatusDraft, StatusCancelled, true},
		{StatusInReview, StatusCancelled, true},
		{StatusApproved, StatusCancelled, true},
		{StatusSubmitted, StatusCompleted, false},
		{StatusInReview, StatusSubmitted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusSubmitted, false},
		{StatusSubmitted, LetterStatus("archived"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestPathTo(t *testing.T) {
	path, ok := PathTo(StatusInReview, StatusCompleted)
	require.True(t, ok)
	assert.Equal(t, []LetterStatus{StatusApproved, StatusCompleted}, path)

	path, ok = PathTo(StatusCompleted, StatusCompleted)
	assert.True(t, ok)
	assert.Empty(t, path)

	_, ok = PathTo(StatusApproved, StatusSubmitted)
	assert.False(t, ok)

	for _, from := range []LetterStatus{StatusDraft, StatusSubmitted, StatusInReview} {
		path, ok := PathTo(from, StatusCompleted)
		require.True(t, ok)
		prev := from
		for _, hop := range path {
			assert.True(t, CanTransition(prev, hop), "%s -> %s", prev, hop)
			prev = hop
		}
	}
}

func TestTimelineOnlyMovesForward(t *testing.T) {
	assert.True(t, CanAdvanceTimeline(TimelineReceived, TimelineUnderReview))
	assert.True(t, CanAdvanceTimeline(TimelineUnderReview, TimelineGenerating))
	assert.True(t, CanAdvanceTimeline(TimelineGenerating, TimelinePosted))
	assert.False(t, CanAdvanceTimeline(TimelineReceived, TimelineGenerating))
	assert.False(t, CanAdvanceTimeline(TimelinePosted, TimelineReceived))
	assert.False(t, CanAdvanceTimeline(TimelineUnderReview, TimelineReceived))

	_, ok := TimelinePosted.Next()
	assert.False(t, ok)
}

func TestPriceWithCode(t *testing.T) {
	rate := decimal.RequireFromString("0.10")

	q := PriceWithCode(4999, 20, rate)
	assert.Equal(t, int64(1000), q.DiscountCents)
	assert.Equal(t, int64(3999), q.FinalCents)
	assert.Equal(t, int64(500), q.CommissionCents)
	assert.Equal(t, "39.99", FormatCents(q.FinalCents))

	// final = amount - round(amount*pct/100) holds for every plan and discount
	for _, amount := range []int64{4999, 19999, 59999, 1, 333} {
		for pct := 0; pct <= 100; pct += 5 {
			q := PriceWithCode(amount, pct, rate)
			want := decimal.NewFromInt(amount).Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(0).IntPart()
			assert.Equal(t, amount-want, q.FinalCents, "amount=%d pct=%d", amount, pct)
			assert.GreaterOrEqual(t, q.FinalCents, int64(0))
		}
	}
}

func TestDiscountEdgeCases(t *testing.T) {
	assert.Equal(t, int64(0), DiscountCents(4999, 0))
	assert.Equal(t, int64(0), DiscountCents(0, 20))
	assert.Equal(t, int64(4999), DiscountCents(4999, 150))
	assert.Equal(t, int64(0), CommissionCents(4999, decimal.Zero))
}

func TestGenerateReferralCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateReferralCode("EMP-")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "EMP-"))
		assert.Len(t, code, 11)
		assert.True(t, LooksLikeReferralCode(code), code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
	assert.Equal(t, "EMP-AB12345", NormalizeCode("  emp-ab12345 "))
	assert.False(t, LooksLikeReferralCode("nope"))
}

func TestSubscriptionStatusMirror(t *testing.T) {
	assert.Equal(t, SubscriptionActive, ParseSubscriptionStatus("trialing").ProfileMirror())
	assert.Equal(t, SubscriptionInactive, ParseSubscriptionStatus("past_due").ProfileMirror())
	assert.Equal(t, SubscriptionCancelled, ParseSubscriptionStatus("canceled"))
	assert.Equal(t, SubscriptionInactive, ParseSubscriptionStatus("incomplete"))
	assert.Equal(t, 8, PlanEightYearly.LetterQuota())
	assert.False(t, PlanType("gold").Valid())
}
