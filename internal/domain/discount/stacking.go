package discount

import (
	"github.com/lumimart/storefront/internal/domain/coupon"
)

// StackingConflict describes why a coupon combination was rejected. For a
// DISALLOW hit, CouponIDs holds the offending intersection and RuleID/RuleName
// identify the rule. For an ALLOW miss, no single permitted combination
// covered the selection; RuleID is empty and CouponIDs holds the selection.
type StackingConflict struct {
	RuleID    string
	RuleName  string
	RuleType  coupon.StackingRuleType
	CouponIDs []string
}

// ResolveStacking applies the administrator ALLOW/DISALLOW rule sets to the
// selected coupon ids. A conflict rejects the whole selection rather than
// pruning to a valid subset; callers surface it as a zero-discount outcome.
// A single coupon is never blocked: stacking only constrains combinations.
func ResolveStacking(selected []string, disallow, allow []coupon.StackingRule) (bool, *StackingConflict) {
	if len(selected) <= 1 {
		return true, nil
	}

	selectedSet := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		selectedSet[id] = struct{}{}
	}

	for _, rule := range disallow {
		if !rule.IsActive {
			continue
		}
		var hit []string
		for _, id := range rule.CouponIDs {
			if _, ok := selectedSet[id]; ok {
				hit = append(hit, id)
			}
		}
		if len(hit) >= 2 {
			return false, &StackingConflict{
				RuleID:    rule.ID,
				RuleName:  rule.Name,
				RuleType:  coupon.StackingDisallow,
				CouponIDs: hit,
			}
		}
	}

	hasAllow := false
	for _, rule := range allow {
		if !rule.IsActive {
			continue
		}
		hasAllow = true
		if coversAll(rule.CouponIDs, selected) {
			return true, nil
		}
	}
	if hasAllow {
		return false, &StackingConflict{
			RuleType:  coupon.StackingAllow,
			CouponIDs: selected,
		}
	}
	return true, nil
}

// coversAll reports whether ruleIDs is a superset of selected.
func coversAll(ruleIDs, selected []string) bool {
	set := make(map[string]struct{}, len(ruleIDs))
	for _, id := range ruleIDs {
		set[id] = struct{}{}
	}
	for _, id := range selected {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
