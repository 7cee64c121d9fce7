package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

const (
	stackingRulesSQL = `SELECT id, name, rule_type, coupon_ids, is_active
		FROM coupon_stacking_rules WHERE is_active`

	settingsSQL = `SELECT max_percentage_enabled, max_percentage, max_amount_enabled, max_amount
		FROM coupon_settings WHERE is_active
		ORDER BY updated_at DESC LIMIT 1`

	applicationOrderSQL = `SELECT coupon_ids FROM coupon_application_order WHERE is_active
		ORDER BY updated_at DESC LIMIT 1`
)

var _ coupon.PolicyRepository = (*PolicyRepository)(nil)

// PolicyRepository implements coupon.PolicyRepository backed by PostgreSQL.
// Singletons (settings, application order) are read fresh per call; there is
// no process-wide cache, so admin writes take effect on the next calculation.
type PolicyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository returns a PolicyRepository that uses the given pool.
func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

// ActiveStackingRules returns all active stacking rules.
func (r *PolicyRepository) ActiveStackingRules(ctx context.Context) ([]coupon.StackingRule, error) {
	rows, err := r.pool.Query(ctx, stackingRulesSQL)
	if err != nil {
		return nil, fmt.Errorf("querying stacking rules: %w", err)
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (coupon.StackingRule, error) {
		var (
			sr       coupon.StackingRule
			ruleType string
		)
		err := row.Scan(&sr.ID, &sr.Name, &ruleType, &sr.CouponIDs, &sr.IsActive)
		sr.RuleType = coupon.StackingRuleType(ruleType)
		return sr, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning stacking rules: %w", err)
	}
	return rules, nil
}

// Settings returns the single active global cap record, or nil when none is
// configured.
func (r *PolicyRepository) Settings(ctx context.Context) (*coupon.Settings, error) {
	rows, err := r.pool.Query(ctx, settingsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (coupon.Settings, error) {
		var s coupon.Settings
		err := row.Scan(&s.MaxPercentageEnabled, &s.MaxPercentage, &s.MaxAmountEnabled, &s.MaxAmount)
		return s, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning settings: %w", err)
	}
	return &s, nil
}

// ApplicationOrder returns the admin-defined coupon priority list, or an
// empty slice when none is configured.
func (r *PolicyRepository) ApplicationOrder(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, applicationOrderSQL)
	if err != nil {
		return nil, fmt.Errorf("querying application order: %w", err)
	}
	ids, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[[]string])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning application order: %w", err)
	}
	return ids, nil
}
