package discount

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

// ExclusionReason is a machine-readable code for why a coupon dropped out of
// a calculation, so the checkout UI can render a per-coupon explanation.
type ExclusionReason string

const (
	ExclusionInactive      ExclusionReason = "inactive"
	ExclusionNotStarted    ExclusionReason = "not_started"
	ExclusionExpired       ExclusionReason = "expired"
	ExclusionMinPurchase   ExclusionReason = "min_purchase_not_met"
	ExclusionNotHeld       ExclusionReason = "not_held"
	ExclusionRuleFailed    ExclusionReason = "rule_not_satisfied"
	ExclusionMalformedRule ExclusionReason = "malformed_rule"
)

// Exclusion pairs an excluded coupon with the reason it was filtered out.
type Exclusion struct {
	CouponID string
	Reason   ExclusionReason
	Detail   string
}

// eligibilityInput bundles the fetched data the filter consumes.
type eligibilityInput struct {
	coupons  []coupon.Coupon
	attached map[string][]coupon.AttachedRule
	held     []coupon.UserCoupon
}

// filterEligible returns the coupons individually eligible for the cart,
// plus a structured exclusion for every coupon that failed. Min-purchase is
// checked against the original subtotal here; the accumulator re-checks it
// against the shrinking balance later.
func (e *Engine) filterEligible(in eligibilityInput, subtotal decimal.Decimal, req Request, now time.Time) ([]coupon.Coupon, []Exclusion) {
	var heldByCoupon map[string]coupon.UserCoupon
	if req.UserID != "" {
		heldByCoupon = make(map[string]coupon.UserCoupon, len(in.held))
		for _, uc := range in.held {
			heldByCoupon[uc.CouponID] = uc
		}
	}

	ec := coupon.EvalContext{Now: now, UserRole: req.UserRole, Items: req.Items}

	var (
		eligible []coupon.Coupon
		excluded []Exclusion
	)
	for _, c := range in.coupons {
		if excl := e.checkCoupon(c, in.attached[c.ID], heldByCoupon, subtotal, ec); excl != nil {
			excluded = append(excluded, *excl)
			continue
		}
		eligible = append(eligible, c)
	}
	return eligible, excluded
}

// checkCoupon runs the base gate and every rule attached to one coupon.
// It returns nil when the coupon is eligible.
func (e *Engine) checkCoupon(
	c coupon.Coupon,
	attached []coupon.AttachedRule,
	heldByCoupon map[string]coupon.UserCoupon,
	subtotal decimal.Decimal,
	ec coupon.EvalContext,
) *Exclusion {
	if excl := baseGate(c, subtotal, ec.Now); excl != nil {
		return excl
	}

	if heldByCoupon != nil {
		uc, ok := heldByCoupon[c.ID]
		if !ok || !uc.Usable(ec.Now, c.EndDate) {
			return &Exclusion{CouponID: c.ID, Reason: ExclusionNotHeld, Detail: "no usable claim for this coupon"}
		}
	}

	// Inline payload rule. Amount coupons have no gating rule beyond
	// min_purchase; their tiers apply at discount time.
	if c.Type != coupon.TypeAmount {
		p, err := coupon.ParsePayload(c.Type, c.RawRule)
		if err != nil {
			e.lg.Warn("coupon rule payload failed to parse, failing closed",
				zap.String("coupon_id", c.ID), zap.Error(err))
			return &Exclusion{CouponID: c.ID, Reason: ExclusionMalformedRule, Detail: err.Error()}
		}
		if res := coupon.Evaluate(p, ec); !res.OK {
			return &Exclusion{CouponID: c.ID, Reason: ExclusionRuleFailed, Detail: res.Reason}
		}
	}

	for _, ar := range attached {
		if !ar.IsActive {
			continue
		}
		p, err := coupon.ParseAttached(ar.Kind, ar.Raw)
		if err != nil {
			e.lg.Warn("attached rule failed to parse, failing closed",
				zap.String("coupon_id", c.ID), zap.String("rule_id", ar.ID), zap.Error(err))
			return &Exclusion{CouponID: c.ID, Reason: ExclusionMalformedRule, Detail: err.Error()}
		}
		if res := coupon.Evaluate(p, ec); !res.OK {
			return &Exclusion{CouponID: c.ID, Reason: ExclusionRuleFailed, Detail: res.Reason}
		}
	}
	return nil
}

// baseGate checks the conditions every coupon must satisfy regardless of
// rules: active, inside its validity window, and min-purchase against the
// given amount.
func baseGate(c coupon.Coupon, amount decimal.Decimal, now time.Time) *Exclusion {
	if !c.IsActive {
		return &Exclusion{CouponID: c.ID, Reason: ExclusionInactive, Detail: "coupon is disabled"}
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return &Exclusion{CouponID: c.ID, Reason: ExclusionNotStarted, Detail: "coupon is not yet valid"}
	}
	if now.After(c.EndDate) {
		return &Exclusion{CouponID: c.ID, Reason: ExclusionExpired, Detail: "coupon has expired"}
	}
	if c.MinPurchase != nil && amount.LessThan(*c.MinPurchase) {
		return &Exclusion{
			CouponID: c.ID,
			Reason:   ExclusionMinPurchase,
			Detail:   "requires a minimum purchase of " + c.MinPurchase.String(),
		}
	}
	return nil
}
