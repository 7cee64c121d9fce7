// Package discount implements the coupon stacking and discount-calculation
// engine: eligibility filtering, stacking resolution, application ordering,
// iterative accumulation, and global caps.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

// Input validation errors, surfaced to the caller before any computation.
var (
	ErrEmptyCart     = errors.New("cart items required")
	ErrNoCoupons     = errors.New("coupon ids required")
	ErrInvalidAmount = errors.New("order amount must be positive")
)

// CancelledDiscount is the reserved total-discount sentinel meaning the
// calculation was cancelled before completing. Callers must check for it
// before treating the total as a usable zero.
var CancelledDiscount = decimal.NewFromInt(-1)

// CodeIndex answers probabilistic membership queries over active coupon
// codes. A negative answer is definitive; a positive one may be wrong.
type CodeIndex interface {
	MightContain(code string) bool
}

// Engine computes coupon discounts over already-fetched data. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	coupons     coupon.Repository
	userCoupons coupon.UserCouponRepository
	policies    coupon.PolicyRepository
	codes       CodeIndex
	lg          *zap.Logger
	now         func() time.Time
	tracer      trace.Tracer
}

// NewEngine creates an Engine with the required data sources.
func NewEngine(
	coupons coupon.Repository,
	userCoupons coupon.UserCouponRepository,
	policies coupon.PolicyRepository,
	lg *zap.Logger,
) *Engine {
	return &Engine{
		coupons:     coupons,
		userCoupons: userCoupons,
		policies:    policies,
		lg:          lg,
		now:         time.Now,
		tracer:      otel.Tracer("storefront/discount"),
	}
}

// SetCodeIndex installs an optional code pre-filter used by ValidateCode to
// short-circuit lookups of codes that certainly do not exist.
func (e *Engine) SetCodeIndex(idx CodeIndex) {
	e.codes = idx
}

// Request is the ephemeral input of one calculation. The order amount is the
// cart subtotal before any coupon discount, derived from Items.
type Request struct {
	UserID    string
	UserRole  string
	Items     []coupon.CartItem
	CouponIDs []string
}

// Result is the outcome of a calculation. When Cancelled is set,
// TotalDiscount holds the reserved CancelledDiscount sentinel and no other
// field is meaningful.
type Result struct {
	Applied       []AppliedCoupon
	TotalDiscount decimal.Decimal
	Excluded      []Exclusion
	Conflict      *StackingConflict
	Cancelled     bool
}

func cancelledResult() *Result {
	return &Result{TotalDiscount: CancelledDiscount, Cancelled: true}
}

func zeroResult(excluded []Exclusion, conflict *StackingConflict) *Result {
	return &Result{TotalDiscount: decimal.Zero, Excluded: excluded, Conflict: conflict}
}

// inputs is the data fetched up front for one calculation.
type inputs struct {
	coupons  []coupon.Coupon
	attached map[string][]coupon.AttachedRule
	held     []coupon.UserCoupon
	disallow []coupon.StackingRule
	allow    []coupon.StackingRule
	settings *coupon.Settings
	orderIDs []string
}

// Calculate runs the full pipeline: load → eligibility → stacking → ordering
// → accumulation → caps. It performs no writes. Cancellation mid-fetch yields
// a Result carrying the CancelledDiscount sentinel, not an error, so callers
// cannot mistake an aborted calculation for a computed zero.
func (e *Engine) Calculate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if len(req.CouponIDs) == 0 {
		return nil, ErrNoCoupons
	}
	subtotal := coupon.Subtotal(req.Items)
	if !subtotal.IsPositive() {
		return nil, ErrInvalidAmount
	}

	ctx, span := e.tracer.Start(ctx, "discount.Calculate")
	defer span.End()

	now := e.now()

	in, err := e.load(ctx, req, now)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return cancelledResult(), nil
		}
		return nil, err
	}

	eligible, excluded := e.filterEligible(eligibilityInput{
		coupons:  in.coupons,
		attached: in.attached,
		held:     in.held,
	}, subtotal, req, now)
	if len(eligible) == 0 {
		return zeroResult(excluded, nil), nil
	}

	ids := make([]string, len(eligible))
	for i, c := range eligible {
		ids[i] = c.ID
	}
	ok, conflict := ResolveStacking(ids, in.disallow, in.allow)
	if !ok {
		// A stacking conflict is a first-class computed outcome, not an
		// error: the caller renders "these coupons can't be combined".
		return zeroResult(excluded, conflict), nil
	}

	ordered := SortByApplicationOrder(eligible, in.orderIDs)
	applied, total := e.accumulate(ordered, subtotal)
	total = EnforceCaps(total, subtotal, in.settings)

	return &Result{
		Applied:       applied,
		TotalDiscount: total,
		Excluded:      excluded,
	}, nil
}

// load fetches everything the pipeline needs, concurrently. Coupon and
// user-coupon fetch failures are fatal; stacking rules, settings, and the
// application order degrade to "no constraints" with a warning.
func (e *Engine) load(ctx context.Context, req Request, now time.Time) (*inputs, error) {
	in := &inputs{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		coupons, err := e.coupons.ActiveByIDs(gctx, req.CouponIDs, now)
		if err != nil {
			return errors.Wrap(err, "fetch coupons")
		}
		in.coupons = coupons

		attached, err := e.coupons.AttachedRules(gctx, req.CouponIDs)
		if err != nil {
			return errors.Wrap(err, "fetch coupon rules")
		}
		in.attached = attached
		return nil
	})

	if req.UserID != "" {
		g.Go(func() error {
			held, err := e.userCoupons.ActiveForUser(gctx, req.UserID, req.CouponIDs)
			if err != nil {
				return errors.Wrap(err, "fetch user coupons")
			}
			in.held = held
			return nil
		})
	}

	g.Go(func() error {
		rules, err := e.policies.ActiveStackingRules(gctx)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			e.lg.Warn("stacking rules unavailable, assuming no constraints", zap.Error(err))
			return nil
		}
		for _, r := range rules {
			switch r.RuleType {
			case coupon.StackingDisallow:
				in.disallow = append(in.disallow, r)
			case coupon.StackingAllow:
				in.allow = append(in.allow, r)
			}
		}
		return nil
	})

	g.Go(func() error {
		settings, err := e.policies.Settings(gctx)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			e.lg.Warn("global cap settings unavailable, assuming no cap", zap.Error(err))
			return nil
		}
		in.settings = settings
		return nil
	})

	g.Go(func() error {
		orderIDs, err := e.policies.ApplicationOrder(gctx)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			e.lg.Warn("application order unavailable, keeping input order", zap.Error(err))
			return nil
		}
		in.orderIDs = orderIDs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// The errgroup context is always done once Wait returns; only the
	// caller's context tells us whether the calculation was cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return in, nil
}
