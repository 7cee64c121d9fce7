package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

const (
	activeCouponsByIDsSQL = `SELECT id, name, code, type, discount_type, value,
		min_purchase, max_discount, start_date, end_date, is_active, rule
		FROM coupons
		WHERE id = ANY($1) AND is_active AND end_date >= $2`

	couponByCodeSQL = `SELECT id, name, code, type, discount_type, value,
		min_purchase, max_discount, start_date, end_date, is_active, rule
		FROM coupons
		WHERE UPPER(code) = UPPER($1) AND is_active`

	attachedRulesSQL = `SELECT id, coupon_id, kind, value, is_active
		FROM coupon_rules
		WHERE coupon_id = ANY($1) AND is_active`

	activeCodesSQL = `SELECT code FROM coupons WHERE is_active AND end_date >= NOW()`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// ActiveByIDs returns the active, unexpired coupons among ids. Unknown ids
// are omitted from the result.
func (r *CouponRepository) ActiveByIDs(ctx context.Context, ids []string, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, activeCouponsByIDsSQL, ids, now)
	if err != nil {
		return nil, fmt.Errorf("querying coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("scanning coupons: %w", err)
	}
	return coupons, nil
}

// FindByCode looks up an active coupon by code (case-insensitive). Returns
// coupon.ErrCouponNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, couponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// AttachedRules returns the active cross-cutting rules for the given coupon
// ids, keyed by coupon id.
func (r *CouponRepository) AttachedRules(ctx context.Context, couponIDs []string) (map[string][]coupon.AttachedRule, error) {
	rows, err := r.pool.Query(ctx, attachedRulesSQL, couponIDs)
	if err != nil {
		return nil, fmt.Errorf("querying coupon rules: %w", err)
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (coupon.AttachedRule, error) {
		var (
			ar   coupon.AttachedRule
			kind string
		)
		err := row.Scan(&ar.ID, &ar.CouponID, &kind, &ar.Raw, &ar.IsActive)
		ar.Kind = coupon.RuleKind(kind)
		return ar, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning coupon rules: %w", err)
	}

	byCoupon := make(map[string][]coupon.AttachedRule, len(rules))
	for _, ar := range rules {
		byCoupon[ar.CouponID] = append(byCoupon[ar.CouponID], ar)
	}
	return byCoupon, nil
}

// ActiveCodes lists every active, unexpired coupon code.
func (r *CouponRepository) ActiveCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, activeCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("querying active codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning active codes: %w", err)
	}
	return codes, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		typ          string
		discountType string
		minPurchase  *decimal.Decimal
		maxDiscount  *decimal.Decimal
		startDate    *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Code, &typ, &discountType, &c.Value,
		&minPurchase, &maxDiscount, &startDate, &c.EndDate, &c.IsActive, &c.RawRule,
	)
	c.Type = coupon.Type(typ)
	c.DiscountType = coupon.DiscountType(discountType)
	c.MinPurchase = minPurchase
	c.MaxDiscount = maxDiscount
	c.StartDate = startDate
	return c, err
}
