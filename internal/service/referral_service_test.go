package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpost/internal/apperr"
	"lexpost/internal/domain"
	"lexpost/internal/models"
)

func TestReferralService_ValidateCode(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	emp, c := e.employee(t, "emp@example.com")
	user := e.profile(t, "user@example.com", domain.RoleUser)

	t.Run("valid", func(t *testing.T) {
		v, err := e.referral.ValidateCode(ctx, " "+c.Code+" ", user.ID)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.Equal(t, c.Code, v.Code)
		assert.Equal(t, 20, v.DiscountPercentage)
		assert.Equal(t, emp.ID, v.EmployeeID)
	})

	t.Run("lowercase input", func(t *testing.T) {
		v, err := e.referral.ValidateCode(ctx, strings.ToLower(c.Code), 0)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.Equal(t, c.Code, v.Code)
	})

	t.Run("unknown code is not an error", func(t *testing.T) {
		v, err := e.referral.ValidateCode(ctx, "EMP-NOPE000", user.ID)
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, "code not found", v.Reason)
	})

	t.Run("empty", func(t *testing.T) {
		v, err := e.referral.ValidateCode(ctx, "  ", user.ID)
		require.NoError(t, err)
		assert.False(t, v.Valid)
	})

	t.Run("own code", func(t *testing.T) {
		v, err := e.referral.ValidateCode(ctx, c.Code, emp.ID)
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Contains(t, v.Reason, "own code")
	})

	t.Run("inactive", func(t *testing.T) {
		_, c2 := e.employee(t, "emp2@example.com")
		active := false
		_, err := e.referral.UpdateCoupon(ctx, c2.ID, CouponUpdate{Active: &active})
		require.NoError(t, err)
		v, err := e.referral.ValidateCode(ctx, c2.Code, user.ID)
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, "code is inactive", v.Reason)
	})

	t.Run("expired", func(t *testing.T) {
		_, c3 := e.employee(t, "emp3@example.com")
		past := time.Now().Add(-time.Hour)
		_, err := e.referral.UpdateCoupon(ctx, c3.ID, CouponUpdate{ExpiresAt: &past})
		require.NoError(t, err)
		v, err := e.referral.ValidateCode(ctx, c3.Code, user.ID)
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, "code has expired", v.Reason)
	})
}

func TestReferralService_ApplyCode_CreditsEmployee(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	emp, c := e.employee(t, "emp@example.com")
	user := e.profile(t, "user@example.com", domain.RoleUser)

	res, err := e.referral.ApplyCode(ctx, ApplyInput{
		Code:        c.Code,
		UserID:      user.ID,
		PlanType:    domain.PlanOneLetter,
		AmountCents: 4999,
		ExternalID:  "sub_1",
	})
	require.NoError(t, err)
	assert.False(t, res.AlreadyApplied)
	assert.Empty(t, res.Warning)

	sub := res.Subscription
	assert.Equal(t, int64(4999), sub.BaseAmountCents)
	assert.Equal(t, int64(1000), sub.DiscountCents)
	assert.Equal(t, int64(3999), sub.AmountCents)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, 1, sub.LettersAllowed)
	require.NotNil(t, sub.CouponCode)
	assert.Equal(t, c.Code, *sub.CouponCode)
	require.NotNil(t, sub.EmployeeID)
	assert.Equal(t, emp.ID, *sub.EmployeeID)

	require.NotNil(t, res.Commission)
	assert.Equal(t, int64(500), res.Commission.CommissionCents)
	assert.Equal(t, 1, res.Commission.PointsAwarded)

	emp = e.reload(t, emp.ID)
	assert.Equal(t, int64(1), emp.Points)
	assert.Equal(t, int64(500), emp.CommissionCents)
	assert.Equal(t, int64(1), e.coupon(t, c.ID).UsageCount)

	user = e.reload(t, user.ID)
	require.NotNil(t, user.ReferredByID)
	assert.Equal(t, emp.ID, *user.ReferredByID)

	notes, _, err := e.notifier.List(ctx, emp.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifCommissionEarned, notes[0].Kind)
	assert.Equal(t, int64(500), notes[0].AmountCents)
	assert.NotNil(t, notes[0].SubscriptionID)
}

func TestReferralService_ApplyCode_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	emp, c := e.employee(t, "emp@example.com")
	user := e.profile(t, "user@example.com", domain.RoleUser)

	in := ApplyInput{Code: c.Code, UserID: user.ID, PlanType: domain.PlanFourMonthly, AmountCents: 19999, ExternalID: "sub_dup"}
	first, err := e.referral.ApplyCode(ctx, in)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := e.referral.ApplyCode(ctx, in)
		require.NoError(t, err)
		assert.True(t, again.AlreadyApplied)
		assert.Equal(t, first.Subscription.ID, again.Subscription.ID)
		assert.Nil(t, again.Commission)
	}

	assert.Equal(t, int64(1), e.coupon(t, c.ID).UsageCount)
	emp = e.reload(t, emp.ID)
	assert.Equal(t, int64(1), emp.Points)
	assert.Equal(t, int64(2000), emp.CommissionCents)
	n, err := e.couponRepo.CountCommissionsForSubscription(ctx, first.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestReferralService_ApplyCode_InvalidCodeChargesFullPrice(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.profile(t, "user@example.com", domain.RoleUser)

	res, err := e.referral.ApplyCode(ctx, ApplyInput{
		Code:        "EMP-ZZZZZZZ",
		UserID:      user.ID,
		PlanType:    domain.PlanOneLetter,
		AmountCents: 4999,
		ExternalID:  "sub_bad_code",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4999), res.Subscription.AmountCents)
	assert.Zero(t, res.Subscription.DiscountCents)
	assert.Nil(t, res.Subscription.CouponCode)
	assert.Nil(t, res.Commission)
	assert.Contains(t, res.Warning, "code not found")
}

func TestReferralService_ApplyCode_NoCode(t *testing.T) {
	e := newTestEnv(t)
	user := e.profile(t, "user@example.com", domain.RoleUser)

	res, err := e.referral.ApplyCode(context.Background(), ApplyInput{
		UserID:      user.ID,
		PlanType:    domain.PlanEightYearly,
		AmountCents: 59999,
		ExternalID:  "sub_plain",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(59999), res.Subscription.AmountCents)
	assert.Equal(t, 8, res.Subscription.LettersAllowed)
	assert.Empty(t, res.Warning)
}

func TestReferralService_ApplyCode_RejectsBadInput(t *testing.T) {
	e := newTestEnv(t)
	user := e.profile(t, "user@example.com", domain.RoleUser)
	ctx := context.Background()

	cases := map[string]ApplyInput{
		"no external id": {UserID: user.ID, PlanType: domain.PlanOneLetter, AmountCents: 4999},
		"no user":        {PlanType: domain.PlanOneLetter, AmountCents: 4999, ExternalID: "x"},
		"bad plan":       {UserID: user.ID, PlanType: "weekly", AmountCents: 4999, ExternalID: "x"},
		"zero amount":    {UserID: user.ID, PlanType: domain.PlanOneLetter, ExternalID: "x"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.referral.ApplyCode(ctx, in)
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

// testStores runs a test against the single-connection memory store and against
// a pooled sqlite file where concurrent transactions really overlap.
var testStores = map[string]func(*testing.T) *testEnv{
	"memory": newTestEnv,
	"file":   newFileTestEnv,
}

func TestReferralService_ApplyCode_ConcurrentRedemptions(t *testing.T) {
	for name, newEnv := range testStores {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			emp, c := e.employee(t, "emp@example.com")

			const n = 20
			users := make([]*models.Profile, n)
			for i := range users {
				users[i] = e.profile(t, fmt.Sprintf("u%d@example.com", i), domain.RoleUser)
			}

			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = e.referral.ApplyCode(ctx, ApplyInput{
						Code:        c.Code,
						UserID:      users[i].ID,
						PlanType:    domain.PlanOneLetter,
						AmountCents: 4999,
						ExternalID:  fmt.Sprintf("sub_%d", i),
					})
				}(i)
			}
			wg.Wait()
			for i, err := range errs {
				require.NoError(t, err, "redemption %d", i)
			}

			assert.Equal(t, int64(n), e.coupon(t, c.ID).UsageCount)
			emp = e.reload(t, emp.ID)
			assert.Equal(t, int64(n), emp.Points)
			assert.Equal(t, int64(n*500), emp.CommissionCents)
			_, total, err := e.referral.ListCommissions(ctx, emp.ID, 100, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(n), total)
		})
	}
}

func TestReferralService_ApplyCode_UsageCap(t *testing.T) {
	for name, newEnv := range testStores {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			emp, c := e.employee(t, "emp@example.com")
			maxUses := int64(3)
			_, err := e.referral.UpdateCoupon(ctx, c.ID, CouponUpdate{MaxUses: &maxUses})
			require.NoError(t, err)

			const n = 8
			users := make([]*models.Profile, n)
			for i := range users {
				users[i] = e.profile(t, fmt.Sprintf("cap%d@example.com", i), domain.RoleUser)
			}

			var wg sync.WaitGroup
			results := make([]*ApplyResult, n)
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = e.referral.ApplyCode(ctx, ApplyInput{
						Code:        c.Code,
						UserID:      users[i].ID,
						PlanType:    domain.PlanOneLetter,
						AmountCents: 4999,
						ExternalID:  fmt.Sprintf("cap_%d", i),
					})
				}(i)
			}
			wg.Wait()

			discounted, full := 0, 0
			for i, r := range results {
				require.NoError(t, errs[i], "redemption %d", i)
				require.NotNil(t, r)
				if r.Commission != nil {
					discounted++
					assert.Equal(t, int64(3999), r.Subscription.AmountCents)
				} else {
					full++
					assert.Equal(t, int64(4999), r.Subscription.AmountCents)
					assert.Contains(t, r.Warning, "usage limit")
				}
			}
			assert.Equal(t, 3, discounted)
			assert.Equal(t, n-3, full)
			assert.Equal(t, int64(3), e.coupon(t, c.ID).UsageCount)
			assert.Equal(t, int64(3), e.reload(t, emp.ID).Points)
		})
	}
}

func TestReferralService_ApplyCode_RollsBackOnBookkeepingFailure(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.profile(t, "user@example.com", domain.RoleUser)

	// A coupon whose employee has no profile row: crediting must fail.
	orphan, err := e.couponRepo.GetOrCreateCoupon(ctx, 9999, "EMP-", 20)
	require.NoError(t, err)

	_, err = e.referral.ApplyCode(ctx, ApplyInput{
		Code:        orphan.Code,
		UserID:      user.ID,
		PlanType:    domain.PlanOneLetter,
		AmountCents: 4999,
		ExternalID:  "sub_orphan",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TypeInvariantViolation))

	sub, err := e.subRepo.FindByExternalID(ctx, "sub_orphan")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.Zero(t, e.coupon(t, orphan.ID).UsageCount)
	_, total, err := e.referral.ListCommissions(ctx, 0, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Nil(t, e.reload(t, user.ID).ReferredByID)
}

func TestReferralService_CommissionRateOverride(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	emp, c := e.employee(t, "emp@example.com")
	user := e.profile(t, "user@example.com", domain.RoleUser)

	assert.Equal(t, "0.1", e.referral.CommissionRate(ctx).String())

	require.True(t, apperr.IsValidation(e.referral.SetCommissionRate(ctx, "1.5")))
	require.True(t, apperr.IsValidation(e.referral.SetCommissionRate(ctx, "abc")))
	require.NoError(t, e.referral.SetCommissionRate(ctx, "0.25"))

	res, err := e.referral.ApplyCode(ctx, ApplyInput{
		Code:        c.Code,
		UserID:      user.ID,
		PlanType:    domain.PlanOneLetter,
		AmountCents: 4999,
		ExternalID:  "sub_rate",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1250), res.Commission.CommissionCents)
	assert.Equal(t, int64(1250), e.reload(t, emp.ID).CommissionCents)
}

func TestReferralService_IssueAndRevokeCoupon(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	emp, c := e.employee(t, "emp@example.com")

	assert.True(t, domain.LooksLikeReferralCode(c.Code))
	assert.True(t, c.Active)
	require.NotNil(t, e.reload(t, emp.ID).ReferralCode)

	again, err := e.referral.IssueCoupon(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, c.Code, again.Code)

	require.NoError(t, e.referral.RevokeCoupon(ctx, emp.ID))
	assert.False(t, e.coupon(t, c.ID).Active)
	assert.Nil(t, e.reload(t, emp.ID).ReferralCode)

	reissued, err := e.referral.IssueCoupon(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Code, reissued.Code)
	assert.True(t, e.coupon(t, c.ID).Active)
}

func TestReferralService_MyReferrals(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	emp, c := e.employee(t, "emp@example.com")
	user := e.profile(t, "user@example.com", domain.RoleUser)

	_, err := e.referral.ApplyCode(ctx, ApplyInput{Code: c.Code, UserID: user.ID, PlanType: domain.PlanOneLetter, AmountCents: 4999, ExternalID: "s1"})
	require.NoError(t, err)

	sum, err := e.referral.MyReferrals(ctx, emp.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, c.Code, sum.Coupon.Code)
	assert.Equal(t, int64(1), sum.Points)
	assert.Equal(t, int64(500), sum.CommissionCents)
	assert.Len(t, sum.Payments, 1)

	_, err = e.referral.MyReferrals(ctx, user.ID, 10, 0)
	assert.True(t, apperr.Is(err, apperr.TypeAuthorization))
}

func TestReferralService_UpdateCoupon_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, c := e.employee(t, "emp@example.com")

	_, err := e.referral.UpdateCoupon(ctx, c.ID, CouponUpdate{})
	assert.True(t, apperr.IsValidation(err))

	pct := 120
	_, err = e.referral.UpdateCoupon(ctx, c.ID, CouponUpdate{DiscountPercentage: &pct})
	assert.True(t, apperr.IsValidation(err))

	pct = 30
	updated, err := e.referral.UpdateCoupon(ctx, c.ID, CouponUpdate{DiscountPercentage: &pct})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.DiscountPercentage)
	assert.Equal(t, c.Code, updated.Code)

	_, err = e.referral.UpdateCoupon(ctx, 4242, CouponUpdate{DiscountPercentage: &pct})
	assert.True(t, apperr.IsNotFound(err))
}
