package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTierDiscount(t *testing.T) {
	tests := []struct {
		name      string
		tiers     []Tier
		cartTotal decimal.Decimal
		want      decimal.Decimal
	}{
		{
			name:      "single tier applies once",
			tiers:     []Tier{{MinAmount: d("30"), Discount: d("5")}},
			cartTotal: d("50"),
			want:      d("5"),
		},
		{
			name:      "single tier stacks against remaining balance",
			tiers:     []Tier{{MinAmount: d("30"), Discount: d("5")}},
			cartTotal: d("90"),
			want:      d("15"),
		},
		{
			name: "larger tier consumes before smaller tier sees leftover",
			tiers: []Tier{
				{MinAmount: d("30"), Discount: d("5")},
				{MinAmount: d("100"), Discount: d("20")},
			},
			cartTotal: d("130"),
			// 100 tier once (30 left), then 30 tier once.
			want: d("25"),
		},
		{
			name: "tier order in the slice does not matter",
			tiers: []Tier{
				{MinAmount: d("100"), Discount: d("20")},
				{MinAmount: d("30"), Discount: d("5")},
			},
			cartTotal: d("130"),
			want:      d("25"),
		},
		{
			name:      "below every tier yields zero",
			tiers:     []Tier{{MinAmount: d("30"), Discount: d("5")}},
			cartTotal: d("29.99"),
			want:      decimal.Zero,
		},
		{
			name:      "exact threshold applies",
			tiers:     []Tier{{MinAmount: d("30"), Discount: d("5")}},
			cartTotal: d("30"),
			want:      d("5"),
		},
		{
			name: "zero min_amount tier is skipped",
			tiers: []Tier{
				{MinAmount: d("0"), Discount: d("999")},
				{MinAmount: d("30"), Discount: d("5")},
			},
			cartTotal: d("50"),
			want:      d("5"),
		},
		{
			name:      "negative min_amount tier is skipped",
			tiers:     []Tier{{MinAmount: d("-10"), Discount: d("5")}},
			cartTotal: d("50"),
			want:      decimal.Zero,
		},
		{
			name:      "no tiers yields zero",
			tiers:     nil,
			cartTotal: d("50"),
			want:      decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTierDiscount(tt.tiers, tt.cartTotal)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestComputeTierDiscountDoesNotMutateInput(t *testing.T) {
	tiers := []Tier{
		{MinAmount: d("30"), Discount: d("5")},
		{MinAmount: d("100"), Discount: d("20")},
	}
	ComputeTierDiscount(tiers, d("130"))
	assert.True(t, tiers[0].MinAmount.Equal(d("30")))
	assert.True(t, tiers[1].MinAmount.Equal(d("100")))
}
