package discount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

func disallowRule(id string, ids ...string) coupon.StackingRule {
	return coupon.StackingRule{ID: id, Name: id, RuleType: coupon.StackingDisallow, CouponIDs: ids, IsActive: true}
}

func allowRule(id string, ids ...string) coupon.StackingRule {
	return coupon.StackingRule{ID: id, Name: id, RuleType: coupon.StackingAllow, CouponIDs: ids, IsActive: true}
}

func TestResolveStacking(t *testing.T) {
	tests := []struct {
		name     string
		selected []string
		disallow []coupon.StackingRule
		allow    []coupon.StackingRule
		wantOK   bool
	}{
		{
			name:     "no rules allows everything",
			selected: []string{"a", "b", "c"},
			wantOK:   true,
		},
		{
			name:     "disallow pair fully selected rejects",
			selected: []string{"a", "b"},
			disallow: []coupon.StackingRule{disallowRule("r1", "a", "b")},
			wantOK:   false,
		},
		{
			name:     "disallow needs two selected members",
			selected: []string{"a", "c"},
			disallow: []coupon.StackingRule{disallowRule("r1", "a", "b")},
			wantOK:   true,
		},
		{
			name:     "two of three disallowed still rejects",
			selected: []string{"a", "c"},
			disallow: []coupon.StackingRule{disallowRule("r1", "a", "b", "c")},
			wantOK:   false,
		},
		{
			name:     "single coupon never blocked",
			selected: []string{"a"},
			disallow: []coupon.StackingRule{disallowRule("r1", "a", "b")},
			allow:    []coupon.StackingRule{allowRule("r2", "x", "y")},
			wantOK:   true,
		},
		{
			name:     "allow superset permits",
			selected: []string{"a", "b"},
			allow:    []coupon.StackingRule{allowRule("r1", "a", "b", "c")},
			wantOK:   true,
		},
		{
			name:     "no allow rule covers the selection",
			selected: []string{"a", "d"},
			allow:    []coupon.StackingRule{allowRule("r1", "a", "b"), allowRule("r2", "c", "d")},
			wantOK:   false,
		},
		{
			name:     "inactive disallow is ignored",
			selected: []string{"a", "b"},
			disallow: []coupon.StackingRule{{ID: "r1", RuleType: coupon.StackingDisallow, CouponIDs: []string{"a", "b"}}},
			wantOK:   true,
		},
		{
			name:     "inactive allow does not constrain",
			selected: []string{"a", "b"},
			allow:    []coupon.StackingRule{{ID: "r1", RuleType: coupon.StackingAllow, CouponIDs: []string{"x"}}},
			wantOK:   true,
		},
		{
			name:     "disallow wins over a covering allow",
			selected: []string{"a", "b"},
			disallow: []coupon.StackingRule{disallowRule("r1", "a", "b")},
			allow:    []coupon.StackingRule{allowRule("r2", "a", "b")},
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, conflict := ResolveStacking(tt.selected, tt.disallow, tt.allow)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Nil(t, conflict)
			} else {
				assert.NotNil(t, conflict)
			}
		})
	}
}

func TestResolveStackingConflictDetail(t *testing.T) {
	ok, conflict := ResolveStacking(
		[]string{"a", "b", "c"},
		[]coupon.StackingRule{disallowRule("no-cash-stack", "a", "b")},
		nil,
	)
	require.False(t, ok)
	require.NotNil(t, conflict)
	assert.Equal(t, "no-cash-stack", conflict.RuleID)
	assert.Equal(t, coupon.StackingDisallow, conflict.RuleType)
	assert.ElementsMatch(t, []string{"a", "b"}, conflict.CouponIDs)
}

// Removing a coupon from an accepted selection must never create a conflict.
func TestResolveStackingMonotonicity(t *testing.T) {
	disallow := []coupon.StackingRule{disallowRule("r1", "a", "b")}
	selected := []string{"a", "c", "d"}

	ok, _ := ResolveStacking(selected, disallow, nil)
	require.True(t, ok)

	for i := range selected {
		subset := make([]string, 0, len(selected)-1)
		subset = append(subset, selected[:i]...)
		subset = append(subset, selected[i+1:]...)
		ok, _ := ResolveStacking(subset, disallow, nil)
		assert.True(t, ok, "subset %v", subset)
	}
}
