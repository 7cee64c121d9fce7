// Package coupon defines the coupon data model and the pure rule and tier
// evaluation helpers used by the discount engine.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon kinds. The type drives which rule
// payload shape applies and how the discount is computed.
type Type string

const (
	// TypeProduct restricts the coupon to carts containing specific products.
	TypeProduct Type = "product"
	// TypeTime restricts the coupon to fixed dates or recurring weekly windows.
	TypeTime Type = "time"
	// TypeAmount grants a tiered amount-off discount ("spend X, save Y",
	// with each tier repeatable against the remaining balance).
	TypeAmount Type = "amount"
)

// DiscountType enumerates the discount strategies for product and time
// coupons. Amount coupons ignore it and always behave as fixed-per-tier.
type DiscountType string

const (
	// DiscountFixed subtracts a flat monetary value.
	DiscountFixed DiscountType = "fixed"
	// DiscountPercentage subtracts a percentage of the remaining balance.
	DiscountPercentage DiscountType = "percentage"
)

// ErrCouponNotFound is returned by repositories when no matching active
// coupon exists.
var ErrCouponNotFound = errors.New("coupon not found")

// Coupon is a discount template authored by an administrator. It is read-only
// to the discount engine and never mutated during a calculation.
type Coupon struct {
	ID           string
	Name         string
	Code         string
	Type         Type
	DiscountType DiscountType
	Value        decimal.Decimal
	MinPurchase  *decimal.Decimal
	MaxDiscount  *decimal.Decimal
	StartDate    *time.Time
	EndDate      time.Time
	IsActive     bool
	// RawRule is the type-specific JSON payload, parsed lazily via
	// ParsePayload. A nil RawRule means the coupon carries no inline rule.
	RawRule []byte
}

// UserCoupon binds a Coupon to a specific user. Only active, unused, and
// unexpired claims make the coupon a candidate for that user.
type UserCoupon struct {
	ID        string
	UserID    string
	CouponID  string
	Status    string
	IsUsed    bool
	ExpiredAt *time.Time
}

// UserCouponActive is the status of a claim that has not been consumed.
const UserCouponActive = "active"

// Usable reports whether the claim can still gate a calculation at the given
// instant. When ExpiredAt is unset the coupon's own end date applies instead.
func (uc UserCoupon) Usable(now, couponEnd time.Time) bool {
	if uc.Status != UserCouponActive || uc.IsUsed {
		return false
	}
	expiry := couponEnd
	if uc.ExpiredAt != nil {
		expiry = *uc.ExpiredAt
	}
	return !now.After(expiry)
}

// AttachedRule is a cross-cutting rule row linked to a coupon in addition to
// its inline payload, e.g. a user_group restriction.
type AttachedRule struct {
	ID       string
	CouponID string
	Kind     RuleKind
	Raw      []byte
	IsActive bool
}

// CartItem is a line item in the cart for eligibility and discount purposes.
type CartItem struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal returns the sum of price * quantity across all items.
func Subtotal(items []CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}
	return sum
}

// StackingRuleType partitions stacking rules into permitted combinations and
// forbidden pairings.
type StackingRuleType string

const (
	// StackingAllow marks one permitted coupon combination. When any ALLOW
	// rules exist, a multi-coupon selection must fit inside one of them.
	StackingAllow StackingRuleType = "ALLOW"
	// StackingDisallow forbids the listed coupons from co-occurring.
	StackingDisallow StackingRuleType = "DISALLOW"
)

// StackingRule is an administrator constraint on which coupon id sets may
// co-occur in a final applied set.
type StackingRule struct {
	ID        string
	Name      string
	RuleType  StackingRuleType
	CouponIDs []string
	IsActive  bool
}

// Settings is the platform-wide discount ceiling, applied after per-coupon
// discounts are summed.
type Settings struct {
	MaxPercentageEnabled bool
	MaxPercentage        decimal.Decimal
	MaxAmountEnabled     bool
	MaxAmount            decimal.Decimal
}

// Repository provides read access to coupon definitions and their attached
// rules. Implementations must honor context cancellation.
type Repository interface {
	// ActiveByIDs returns the active coupons among ids whose end date has not
	// passed. Unknown ids are silently omitted.
	ActiveByIDs(ctx context.Context, ids []string, now time.Time) ([]Coupon, error)
	// FindByCode looks up an active coupon by code (case-insensitive).
	// Returns ErrCouponNotFound when no matching active coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// AttachedRules returns the active cross-cutting rules for the given
	// coupons, keyed by coupon id.
	AttachedRules(ctx context.Context, couponIDs []string) (map[string][]AttachedRule, error)
	// ActiveCodes lists every active coupon code, used to build the in-memory
	// code index at startup.
	ActiveCodes(ctx context.Context) ([]string, error)
}

// UserCouponRepository provides read access to a user's coupon claims.
type UserCouponRepository interface {
	// ActiveForUser returns the user's active, unused claims for the given
	// coupon ids.
	ActiveForUser(ctx context.Context, userID string, couponIDs []string) ([]UserCoupon, error)
}

// PolicyRepository provides the administrator-authored stacking rules, global
// cap settings, and application order consumed by the engine.
type PolicyRepository interface {
	ActiveStackingRules(ctx context.Context) ([]StackingRule, error)
	// Settings returns the single active global cap record, or nil when none
	// is configured.
	Settings(ctx context.Context) (*Settings, error)
	// ApplicationOrder returns the admin-defined coupon priority list, or an
	// empty slice when none is configured.
	ApplicationOrder(ctx context.Context) ([]string, error)
}
