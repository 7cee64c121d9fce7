package coupon

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ComputeTierDiscount computes the discount an amount coupon contributes for
// the given cart total. Tiers are consumed greedily from the largest
// min_amount down: each tier applies floor(remaining/min_amount) times,
// consuming that much of the balance, before smaller tiers see the leftover.
// A single coupon can therefore stack its own tiers, e.g. tiers [{30, 5}] on
// a 90 cart apply three times for a discount of 15.
//
// Tiers with a non-positive min_amount are skipped.
func ComputeTierDiscount(tiers []Tier, cartTotal decimal.Decimal) decimal.Decimal {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinAmount.GreaterThan(sorted[j].MinAmount)
	})

	total := decimal.Zero
	remaining := cartTotal
	for _, t := range sorted {
		if !t.MinAmount.IsPositive() {
			continue
		}
		if remaining.LessThan(t.MinAmount) {
			continue
		}
		applications := remaining.Div(t.MinAmount).Floor()
		total = total.Add(applications.Mul(t.Discount))
		remaining = remaining.Sub(applications.Mul(t.MinAmount))
	}
	return total
}
