package discount

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

// AppliedCoupon records one coupon's contribution to the total discount.
type AppliedCoupon struct {
	Coupon   coupon.Coupon
	Discount decimal.Decimal
}

// accumulate walks the ordered coupon list, applying each coupon against a
// shrinking remaining balance. Coupons whose min-purchase no longer holds
// against the remainder are skipped, and processing stops once the balance
// reaches zero. Coupons that contribute nothing are omitted from the applied
// list without being an error.
func (e *Engine) accumulate(ordered []coupon.Coupon, cartTotal decimal.Decimal) ([]AppliedCoupon, decimal.Decimal) {
	var applied []AppliedCoupon
	total := decimal.Zero
	remaining := cartTotal

	for _, c := range ordered {
		if !remaining.IsPositive() {
			break
		}
		// Re-check against the shrinking balance: a coupon eligible
		// pre-stacking can become ineligible mid-sequence.
		if c.MinPurchase != nil && remaining.LessThan(*c.MinPurchase) {
			continue
		}

		raw := e.couponDiscount(c, cartTotal, remaining)

		// Never discount more than what is left, never negative.
		d := decimal.Min(raw, remaining)
		if d.IsNegative() {
			d = decimal.Zero
		}
		if !d.IsPositive() {
			continue
		}

		total = total.Add(d)
		remaining = remaining.Sub(d)
		applied = append(applied, AppliedCoupon{Coupon: c, Discount: d})
	}
	return applied, total
}

// couponDiscount computes one coupon's raw discount before clamping.
//
// Amount coupons evaluate their tiers against the ORIGINAL cart total, not
// the shrinking remainder, so a tiered coupon's value does not depend on how
// earlier coupons were ordered. Fixed and percentage coupons work off the
// remaining balance. Do not "fix" this asymmetry; it is pinned by a
// regression test.
func (e *Engine) couponDiscount(c coupon.Coupon, cartTotal, remaining decimal.Decimal) decimal.Decimal {
	if c.Type == coupon.TypeAmount {
		p, err := coupon.ParsePayload(coupon.TypeAmount, c.RawRule)
		if err != nil {
			e.lg.Warn("amount coupon has no usable tiers, contributing nothing",
				zap.String("coupon_id", c.ID), zap.Error(err))
			return decimal.Zero
		}
		return coupon.ComputeTierDiscount(p.Amount.Tiers, cartTotal)
	}

	switch c.DiscountType {
	case coupon.DiscountFixed:
		return c.Value
	case coupon.DiscountPercentage:
		d := remaining.Mul(c.Value).Div(hundred)
		if c.MaxDiscount != nil {
			d = decimal.Min(d, *c.MaxDiscount)
		}
		return d
	default:
		e.lg.Warn("unhandled coupon type/discount_type combination",
			zap.String("coupon_id", c.ID),
			zap.String("type", string(c.Type)),
			zap.String("discount_type", string(c.DiscountType)))
		return decimal.Zero
	}
}
