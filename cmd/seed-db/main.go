// Command seed-db loads a demo coupon catalog: one coupon of each rule type,
// stacking rules, the global settings row, an application order, and a few
// user grants. Intended for local development and review environments.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumimart/storefront/internal/storage/postgres"
)

type seedCoupon struct {
	id           string
	name         string
	code         string
	typ          string
	discountType string
	value        string
	minPurchase  *string
	maxDiscount  *string
	rule         *string
}

func strp(s string) *string { return &s }

var coupons = []seedCoupon{
	{
		id: "cpn-fixed-20", name: "¥20 Off", code: "SAVE20",
		typ: "product", discountType: "fixed", value: "20",
		rule: strp(`{"product_ids": ["sku-tee-1", "sku-hoodie-1", "sku-sneaker-1", "sku-sneaker-2"]}`),
	},
	{
		id: "cpn-half-capped", name: "Half Off (max ¥10)", code: "HALFOFF",
		typ: "product", discountType: "percentage", value: "50",
		maxDiscount: strp("10"),
		rule:        strp(`{"product_ids": ["sku-tee-1", "sku-hoodie-1"]}`),
	},
	{
		id: "cpn-tier-manjian", name: "Spend & Save", code: "MANJIAN",
		typ: "amount", discountType: "fixed", value: "0",
		rule: strp(`{"tiers": [{"min_amount": "30", "discount": "5"}, {"min_amount": "100", "discount": "20"}]}`),
	},
	{
		id: "cpn-sneakers", name: "Sneaker Deal", code: "KICKS15",
		typ: "product", discountType: "fixed", value: "15",
		minPurchase: strp("50"),
		rule:        strp(`{"product_ids": ["sku-sneaker-1", "sku-sneaker-2"], "min_quantity": 2}`),
	},
	{
		id: "cpn-happy-hour", name: "Happy Hour", code: "HAPPYHR",
		typ: "time", discountType: "percentage", value: "10",
		rule: strp(`{"time_type": "recurring", "recurring": {"days_of_week": [5, 6], "time_ranges": [{"start": "17:00", "end": "20:00"}]}}`),
	},
}

// attachedRules ride in coupon_rules; here a VIP gate on the capped coupon.
var attachedRules = []struct {
	couponID string
	kind     string
	value    string
}{
	{couponID: "cpn-half-capped", kind: "user_group", value: `{"groups": ["vip", "staff"]}`},
}

var userGrants = []struct {
	userID   string
	couponID string
}{
	{userID: "user-demo-1", couponID: "cpn-fixed-20"},
	{userID: "user-demo-1", couponID: "cpn-tier-manjian"},
	{userID: "user-demo-2", couponID: "cpn-half-capped"},
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedPolicies(ctx, pool); err != nil {
		return errors.Wrap(err, "seed policies")
	}
	if err := seedGrants(ctx, pool); err != nil {
		return errors.Wrap(err, "seed grants")
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	now := time.Now()
	start := now.Add(-24 * time.Hour)
	end := now.Add(90 * 24 * time.Hour)

	for _, c := range coupons {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (id, name, code, type, discount_type, value, min_purchase, max_discount, start_date, end_date, is_active, rule)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, value = EXCLUDED.value, rule = EXCLUDED.rule,
				end_date = EXCLUDED.end_date, updated_at = NOW()
		`, c.id, c.name, c.code, c.typ, c.discountType, c.value, c.minPurchase, c.maxDiscount, start, end, c.rule)
		if err != nil {
			return errors.Wrapf(err, "insert coupon %s", c.code)
		}
	}

	for _, r := range attachedRules {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupon_rules (id, coupon_id, kind, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, "rule-"+r.couponID+"-"+r.kind, r.couponID, r.kind, r.value)
		if err != nil {
			return errors.Wrapf(err, "insert rule for %s", r.couponID)
		}
	}

	slog.Info("coupons seeded", slog.Int("count", len(coupons)))
	return nil
}

func seedPolicies(ctx context.Context, pool *pgxpool.Pool) error {
	// The two cash-value coupons may not be combined.
	_, err := pool.Exec(ctx, `
		INSERT INTO coupon_stacking_rules (id, name, rule_type, coupon_ids)
		VALUES ('stack-no-double-cash', 'No double cash discounts', 'DISALLOW', ARRAY['cpn-fixed-20', 'cpn-half-capped'])
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return errors.Wrap(err, "insert stacking rule")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO coupon_settings (id, max_percentage_enabled, max_percentage, max_amount_enabled, max_amount)
		VALUES ('settings-default', TRUE, 50, FALSE, 0)
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
	`)
	if err != nil {
		return errors.Wrap(err, "insert settings")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO coupon_application_order (id, coupon_ids)
		VALUES ('order-default', ARRAY['cpn-tier-manjian', 'cpn-fixed-20', 'cpn-half-capped'])
		ON CONFLICT (id) DO UPDATE SET coupon_ids = EXCLUDED.coupon_ids, updated_at = NOW()
	`)
	if err != nil {
		return errors.Wrap(err, "insert application order")
	}

	slog.Info("policies seeded")
	return nil
}

func seedGrants(ctx context.Context, pool *pgxpool.Pool) error {
	for _, g := range userGrants {
		_, err := pool.Exec(ctx, `
			INSERT INTO user_coupons (id, user_id, coupon_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, coupon_id) DO NOTHING
		`, uuid.NewString(), g.userID, g.couponID)
		if err != nil {
			return errors.Wrapf(err, "grant %s to %s", g.couponID, g.userID)
		}
	}

	slog.Info("user grants seeded", slog.Int("count", len(userGrants)))
	return nil
}
