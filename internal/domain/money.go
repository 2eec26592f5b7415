package domain

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote is the price breakdown for one redemption, in cents.
type Quote struct {
	BaseCents       int64 `json:"base_amount_cents"`
	DiscountCents   int64 `json:"discount_cents"`
	FinalCents      int64 `json:"final_amount_cents"`
	CommissionCents int64 `json:"commission_cents"`
}

// DiscountCents is amount*pct/100 rounded half away from zero to the cent.
func DiscountCents(amountCents int64, pct int) int64 {
	if pct <= 0 || amountCents <= 0 {
		return 0
	}
	if pct > 100 {
		pct = 100
	}
	d := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(hundred).
		Round(0)
	return d.IntPart()
}

// CommissionCents is amount*rate rounded to the cent. Commission is computed on the base price.
func CommissionCents(amountCents int64, rate decimal.Decimal) int64 {
	if amountCents <= 0 || !rate.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(amountCents).Mul(rate).Round(0).IntPart()
}

// PriceWithCode builds the full breakdown for a valid code.
func PriceWithCode(amountCents int64, pct int, rate decimal.Decimal) Quote {
	discount := DiscountCents(amountCents, pct)
	return Quote{
		BaseCents:       amountCents,
		DiscountCents:   discount,
		FinalCents:      amountCents - discount,
		CommissionCents: CommissionCents(amountCents, rate),
	}
}

// FullPrice is the breakdown when no valid code applies.
func FullPrice(amountCents int64) Quote {
	return Quote{BaseCents: amountCents, FinalCents: amountCents}
}

// FormatCents renders cents as a two-decimal amount, e.g. 3999 -> "39.99".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
