package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

const activeUserCouponsSQL = `SELECT id, user_id, coupon_id, status, is_used, expired_at
	FROM user_coupons
	WHERE user_id = $1 AND coupon_id = ANY($2) AND status = 'active' AND NOT is_used`

var _ coupon.UserCouponRepository = (*UserCouponRepository)(nil)

// UserCouponRepository implements coupon.UserCouponRepository backed by
// PostgreSQL.
type UserCouponRepository struct {
	pool *pgxpool.Pool
}

// NewUserCouponRepository returns a UserCouponRepository that uses the given
// pool.
func NewUserCouponRepository(pool *pgxpool.Pool) *UserCouponRepository {
	return &UserCouponRepository{pool: pool}
}

// ActiveForUser returns the user's active, unused claims among couponIDs.
// Expiry is not filtered here; the engine compares expired_at (or the
// coupon's end date) against the calculation instant.
func (r *UserCouponRepository) ActiveForUser(ctx context.Context, userID string, couponIDs []string) ([]coupon.UserCoupon, error) {
	rows, err := r.pool.Query(ctx, activeUserCouponsSQL, userID, couponIDs)
	if err != nil {
		return nil, fmt.Errorf("querying user coupons for %q: %w", userID, err)
	}
	claims, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (coupon.UserCoupon, error) {
		var uc coupon.UserCoupon
		err := row.Scan(&uc.ID, &uc.UserID, &uc.CouponID, &uc.Status, &uc.IsUsed, &uc.ExpiredAt)
		return uc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning user coupons: %w", err)
	}
	return claims, nil
}
