package discount

import (
	"sort"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

// SortByApplicationOrder orders coupons by the admin-defined priority list.
// Coupons present in orderIDs sort by their index; absent coupons sort after
// all present ones and keep their relative order. With no priority list, or
// fewer than two coupons, the input is returned unchanged.
func SortByApplicationOrder(coupons []coupon.Coupon, orderIDs []string) []coupon.Coupon {
	if len(orderIDs) == 0 || len(coupons) < 2 {
		return coupons
	}

	index := make(map[string]int, len(orderIDs))
	for i, id := range orderIDs {
		index[id] = i
	}
	rank := func(c coupon.Coupon) int {
		if i, ok := index[c.ID]; ok {
			return i
		}
		return len(orderIDs)
	}

	sorted := make([]coupon.Coupon, len(coupons))
	copy(sorted, coupons)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i]) < rank(sorted[j])
	})
	return sorted
}
