package discount

import (
	"github.com/shopspring/decimal"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// EnforceCaps clamps the accumulated discount to the global percentage and
// absolute ceilings. Both caps are upper bounds applied independently, so the
// most restrictive wins. The result is always within [0, cartTotal].
//
// Capping happens after per-coupon application; the applied coupon list is
// not pruned to reflect it, so callers must treat the returned total as
// authoritative.
func EnforceCaps(total, cartTotal decimal.Decimal, settings *coupon.Settings) decimal.Decimal {
	if settings != nil {
		if settings.MaxPercentageEnabled {
			limit := cartTotal.Mul(settings.MaxPercentage).Div(hundred)
			total = decimal.Min(total, limit)
		}
		if settings.MaxAmountEnabled {
			total = decimal.Min(total, settings.MaxAmount)
		}
	}
	total = decimal.Min(total, cartTotal)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
