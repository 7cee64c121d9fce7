package discount

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

func testEngine() *Engine {
	return NewEngine(nil, nil, nil, zap.NewNop())
}

func fixedCoupon(id, value string) coupon.Coupon {
	return coupon.Coupon{
		ID: id, Type: coupon.TypeProduct, DiscountType: coupon.DiscountFixed,
		Value: d(value), IsActive: true, EndDate: time.Now().Add(time.Hour),
	}
}

func percentageCoupon(id, value string, maxDiscount *decimal.Decimal) coupon.Coupon {
	return coupon.Coupon{
		ID: id, Type: coupon.TypeProduct, DiscountType: coupon.DiscountPercentage,
		Value: d(value), MaxDiscount: maxDiscount, IsActive: true, EndDate: time.Now().Add(time.Hour),
	}
}

func amountCoupon(id, rule string) coupon.Coupon {
	return coupon.Coupon{
		ID: id, Type: coupon.TypeAmount, DiscountType: coupon.DiscountFixed,
		IsActive: true, EndDate: time.Now().Add(time.Hour), RawRule: []byte(rule),
	}
}

func TestAccumulateFixed(t *testing.T) {
	applied, total := testEngine().accumulate([]coupon.Coupon{fixedCoupon("a", "20")}, d("100"))
	require.Len(t, applied, 1)
	assert.True(t, total.Equal(d("20")))
	assert.True(t, applied[0].Discount.Equal(d("20")))
}

func TestAccumulatePercentageWithMaxDiscount(t *testing.T) {
	maxD := d("10")
	applied, total := testEngine().accumulate(
		[]coupon.Coupon{percentageCoupon("a", "50", &maxD)}, d("100"))
	require.Len(t, applied, 1)
	assert.True(t, total.Equal(d("10")))
}

func TestAccumulatePercentageUsesRemainingBalance(t *testing.T) {
	_, total := testEngine().accumulate([]coupon.Coupon{
		fixedCoupon("a", "50"),
		percentageCoupon("b", "50", nil),
	}, d("100"))
	// 50 off, then 50% of the remaining 50.
	assert.True(t, total.Equal(d("75")), "got %s", total)
}

// Amount-tier coupons compute against the original cart total even when
// earlier coupons have shrunk the balance. Pinned so a refactor does not
// silently change the math to the remaining balance.
func TestAccumulateTierUsesOriginalCartTotal(t *testing.T) {
	_, total := testEngine().accumulate([]coupon.Coupon{
		fixedCoupon("a", "60"),
		amountCoupon("b", `{"tiers": [{"min_amount": 30, "discount": 5}]}`),
	}, d("90"))
	// Tier math on 90 gives 15 (applies three times); on the remaining 30 it
	// would give only 5. Total is 60 + 15.
	assert.True(t, total.Equal(d("75")), "got %s", total)
}

func TestAccumulateMinPurchaseRecheckedAgainstRemaining(t *testing.T) {
	minP := d("80")
	b := fixedCoupon("b", "10")
	b.MinPurchase = &minP

	applied, total := testEngine().accumulate([]coupon.Coupon{
		fixedCoupon("a", "30"),
		b,
	}, d("100"))
	// After a, only 70 remains, below b's 80 minimum.
	require.Len(t, applied, 1)
	assert.Equal(t, "a", applied[0].Coupon.ID)
	assert.True(t, total.Equal(d("30")))
}

func TestAccumulateClampsToRemaining(t *testing.T) {
	applied, total := testEngine().accumulate([]coupon.Coupon{
		fixedCoupon("a", "200"),
		fixedCoupon("b", "10"),
	}, d("100"))
	// a is clamped to the full balance; b finds nothing left.
	require.Len(t, applied, 1)
	assert.True(t, total.Equal(d("100")))
	assert.True(t, applied[0].Discount.Equal(d("100")))
}

func TestAccumulateSkipsZeroContribution(t *testing.T) {
	applied, total := testEngine().accumulate([]coupon.Coupon{
		amountCoupon("a", `{"tiers": [{"min_amount": 200, "discount": 20}]}`),
		fixedCoupon("b", "5"),
	}, d("100"))
	require.Len(t, applied, 1)
	assert.Equal(t, "b", applied[0].Coupon.ID)
	assert.True(t, total.Equal(d("5")))
}

func TestAccumulateMalformedTiersContributeNothing(t *testing.T) {
	applied, total := testEngine().accumulate([]coupon.Coupon{
		amountCoupon("a", `not json`),
	}, d("100"))
	assert.Empty(t, applied)
	assert.True(t, total.IsZero())
}

func TestAccumulateOrderMatters(t *testing.T) {
	maxD := d("999")
	coupons := func() []coupon.Coupon {
		return []coupon.Coupon{
			fixedCoupon("fixed", "50"),
			percentageCoupon("pct", "10", &maxD),
		}
	}

	_, fixedFirst := testEngine().accumulate(coupons(), d("100"))
	reversed := coupons()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	_, pctFirst := testEngine().accumulate(reversed, d("100"))

	// 50 + 10% of 50 = 55, vs 10 + 50 = 60.
	assert.True(t, fixedFirst.Equal(d("55")), "got %s", fixedFirst)
	assert.True(t, pctFirst.Equal(d("60")), "got %s", pctFirst)
}
