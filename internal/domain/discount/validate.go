package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

// Validation is the outcome of checking a single coupon code against an
// order, for the checkout "apply code" flow. Stacking rules and application
// order never apply here: only one coupon is involved.
type Validation struct {
	Valid          bool
	Message        string
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

func invalid(message string) *Validation {
	return &Validation{Message: message}
}

// ValidateCode checks one coupon code against the order amount and items,
// returning the discount it would grant on its own. UserRole may be empty
// when the caller is anonymous; user-group-restricted coupons then fail
// closed.
func (e *Engine) ValidateCode(ctx context.Context, code string, orderAmount decimal.Decimal, items []coupon.CartItem, userRole string) (*Validation, error) {
	if !orderAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if code == "" {
		return invalid("coupon code is required"), nil
	}

	// The code index answers "definitely unknown" without a database trip.
	if e.codes != nil && !e.codes.MightContain(code) {
		return invalid("coupon not found"), nil
	}

	c, err := e.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, coupon.ErrCouponNotFound) {
			return invalid("coupon not found"), nil
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := e.now()
	if excl := baseGate(*c, orderAmount, now); excl != nil {
		return invalid(excl.Detail), nil
	}

	ec := coupon.EvalContext{Now: now, UserRole: userRole, Items: items}
	if c.Type != coupon.TypeAmount {
		p, err := coupon.ParsePayload(c.Type, c.RawRule)
		if err != nil {
			e.lg.Warn("coupon rule payload failed to parse, failing closed",
				zap.String("coupon_id", c.ID), zap.Error(err))
			return invalid("coupon rules could not be verified"), nil
		}
		if res := coupon.Evaluate(p, ec); !res.OK {
			return invalid(res.Reason), nil
		}
	}

	attached, err := e.coupons.AttachedRules(ctx, []string{c.ID})
	if err != nil {
		return nil, errors.Wrap(err, "fetch coupon rules")
	}
	for _, ar := range attached[c.ID] {
		if !ar.IsActive {
			continue
		}
		p, err := coupon.ParseAttached(ar.Kind, ar.Raw)
		if err != nil {
			e.lg.Warn("attached rule failed to parse, failing closed",
				zap.String("coupon_id", c.ID), zap.String("rule_id", ar.ID), zap.Error(err))
			return invalid("coupon rules could not be verified"), nil
		}
		if res := coupon.Evaluate(p, ec); !res.OK {
			return invalid(res.Reason), nil
		}
	}

	// Single-coupon discount: the remaining balance is the full order amount.
	d := e.couponDiscount(*c, orderAmount, orderAmount)
	d = decimal.Min(d, orderAmount)
	if d.IsNegative() {
		d = decimal.Zero
	}

	return &Validation{
		Valid:          true,
		Message:        "coupon applied",
		DiscountAmount: d,
		FinalAmount:    orderAmount.Sub(d),
	}, nil
}
