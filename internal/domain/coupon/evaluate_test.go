package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// Saturday 2025-06-14, 18:30 local.
var evalNow = time.Date(2025, 6, 14, 18, 30, 0, 0, time.UTC)

func cartOf(items ...CartItem) []CartItem { return items }

func item(id string, qty int, price string) CartItem {
	return CartItem{ProductID: id, Quantity: qty, Price: decimal.RequireFromString(price)}
}

func TestEvaluateProduct(t *testing.T) {
	tests := []struct {
		name   string
		rule   *ProductRule
		items  []CartItem
		wantOK bool
	}{
		{
			name:   "required product present",
			rule:   &ProductRule{ProductIDs: []string{"p1"}, MinQuantity: 1},
			items:  cartOf(item("p1", 1, "10")),
			wantOK: true,
		},
		{
			name:   "required product absent",
			rule:   &ProductRule{ProductIDs: []string{"p1"}, MinQuantity: 1},
			items:  cartOf(item("p2", 5, "10")),
			wantOK: false,
		},
		{
			name:   "quantity summed across listed products",
			rule:   &ProductRule{ProductIDs: []string{"p1", "p2"}, MinQuantity: 3},
			items:  cartOf(item("p1", 1, "10"), item("p2", 2, "10"), item("p3", 9, "10")),
			wantOK: true,
		},
		{
			name:   "quantity below threshold",
			rule:   &ProductRule{ProductIDs: []string{"p1"}, MinQuantity: 2},
			items:  cartOf(item("p1", 1, "10")),
			wantOK: false,
		},
		{
			name:   "nil rule fails closed",
			rule:   nil,
			items:  cartOf(item("p1", 1, "10")),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(Payload{Kind: RuleProduct, Product: tt.rule}, EvalContext{Now: evalNow, Items: tt.items})
			assert.Equal(t, tt.wantOK, res.OK)
			if !tt.wantOK {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestEvaluateTime(t *testing.T) {
	tests := []struct {
		name   string
		rule   *TimeRule
		now    time.Time
		wantOK bool
	}{
		{
			name:   "fixed date matches",
			rule:   &TimeRule{TimeType: TimeFixed, FixedDates: []string{"2025-06-14"}},
			now:    evalNow,
			wantOK: true,
		},
		{
			name:   "fixed date does not match",
			rule:   &TimeRule{TimeType: TimeFixed, FixedDates: []string{"2025-06-15"}},
			now:    evalNow,
			wantOK: false,
		},
		{
			name: "fixed date with time range inside",
			rule: &TimeRule{
				TimeType:   TimeFixed,
				FixedDates: []string{"2025-06-14"},
				TimeRanges: []string{"17:00-20:00"},
			},
			now:    evalNow,
			wantOK: true,
		},
		{
			name: "fixed date with time range outside",
			rule: &TimeRule{
				TimeType:   TimeFixed,
				FixedDates: []string{"2025-06-14"},
				TimeRanges: []string{"09:00-12:00"},
			},
			now:    evalNow,
			wantOK: false,
		},
		{
			name: "range end is exclusive",
			rule: &TimeRule{
				TimeType:   TimeFixed,
				FixedDates: []string{"2025-06-14"},
				TimeRanges: []string{"17:00-18:30"},
			},
			now:    evalNow,
			wantOK: false,
		},
		{
			name: "recurring weekday matches",
			rule: &TimeRule{
				TimeType:  TimeRecurring,
				Recurring: &RecurringWindow{DaysOfWeek: []int{6}},
			},
			now:    evalNow, // Saturday
			wantOK: true,
		},
		{
			name: "recurring weekday does not match",
			rule: &TimeRule{
				TimeType:  TimeRecurring,
				Recurring: &RecurringWindow{DaysOfWeek: []int{1, 2, 3}},
			},
			now:    evalNow,
			wantOK: false,
		},
		{
			name: "recurring weekday with time range",
			rule: &TimeRule{
				TimeType:  TimeRecurring,
				Recurring: &RecurringWindow{DaysOfWeek: []int{6}, TimeRanges: []string{"17:00-20:00"}},
			},
			now:    evalNow,
			wantOK: true,
		},
		{
			name: "malformed range entry is skipped, not a pass",
			rule: &TimeRule{
				TimeType:   TimeFixed,
				FixedDates: []string{"2025-06-14"},
				TimeRanges: []string{"banana", "25:99-xx:yy"},
			},
			now:    evalNow,
			wantOK: false,
		},
		{
			name:   "recurring without window fails closed",
			rule:   &TimeRule{TimeType: TimeRecurring},
			now:    evalNow,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(Payload{Kind: RuleTime, Time: tt.rule}, EvalContext{Now: tt.now})
			assert.Equal(t, tt.wantOK, res.OK)
		})
	}
}

func TestEvaluateUserGroup(t *testing.T) {
	tests := []struct {
		name   string
		rule   *UserGroupRule
		role   string
		wantOK bool
	}{
		{name: "role listed", rule: &UserGroupRule{Groups: []string{"vip", "staff"}}, role: "vip", wantOK: true},
		{name: "role not listed", rule: &UserGroupRule{Groups: []string{"vip"}}, role: "guest", wantOK: false},
		{name: "empty groups pass anyone", rule: &UserGroupRule{}, role: "guest", wantOK: true},
		{name: "missing role fails closed when groups set", rule: &UserGroupRule{Groups: []string{"vip"}}, role: "", wantOK: false},
		{name: "missing role passes when unrestricted", rule: &UserGroupRule{}, role: "", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(Payload{Kind: RuleUserGroup, UserGroup: tt.rule}, EvalContext{Now: evalNow, UserRole: tt.role})
			assert.Equal(t, tt.wantOK, res.OK)
		})
	}
}

func TestEvaluateUnknownKindFailsClosed(t *testing.T) {
	res := Evaluate(Payload{Kind: RuleKind("mystery")}, EvalContext{Now: evalNow})
	assert.False(t, res.OK)
}

func TestEvaluateAmountPassesAtEligibility(t *testing.T) {
	res := Evaluate(Payload{Kind: RuleAmount, Amount: &AmountRule{}}, EvalContext{Now: evalNow})
	assert.True(t, res.OK)
}
