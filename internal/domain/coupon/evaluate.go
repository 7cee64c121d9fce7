package coupon

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EvalContext carries the inputs a rule is tested against. Now is the
// wall-clock instant of the calculation, in server-local time.
type EvalContext struct {
	Now      time.Time
	UserRole string
	Items    []CartItem
}

// EvalResult is the outcome of testing one rule: pass/fail plus a
// human-readable reason on failure, so the checkout UI can explain why a
// coupon cannot be added.
type EvalResult struct {
	OK     bool
	Reason string
}

func pass() EvalResult { return EvalResult{OK: true} }

func fail(format string, args ...any) EvalResult {
	return EvalResult{Reason: fmt.Sprintf(format, args...)}
}

// Evaluate tests a parsed rule payload against the context. It is pure and
// never panics on odd inputs; unknown variants fail closed.
func Evaluate(p Payload, ec EvalContext) EvalResult {
	switch p.Kind {
	case RuleProduct:
		return evaluateProduct(p.Product, ec.Items)
	case RuleTime:
		return evaluateTime(p.Time, ec.Now)
	case RuleUserGroup:
		return evaluateUserGroup(p.UserGroup, ec.UserRole)
	case RuleAmount:
		// Tiers gate nothing at eligibility time; they apply at discount time.
		return pass()
	default:
		return fail("unknown rule kind %q", p.Kind)
	}
}

func evaluateProduct(r *ProductRule, items []CartItem) EvalResult {
	if r == nil {
		return fail("product rule missing")
	}
	wanted := make(map[string]struct{}, len(r.ProductIDs))
	for _, id := range r.ProductIDs {
		wanted[id] = struct{}{}
	}

	matched := false
	applicableQty := 0
	for _, item := range items {
		if _, ok := wanted[item.ProductID]; ok {
			matched = true
			applicableQty += item.Quantity
		}
	}
	// The explicit presence check gives a clearer reason than the quantity
	// threshold alone when min_quantity is 1.
	if !matched {
		return fail("cart contains none of the required products")
	}
	if applicableQty < r.MinQuantity {
		return fail("requires %d units of applicable products, cart has %d", r.MinQuantity, applicableQty)
	}
	return pass()
}

func evaluateTime(r *TimeRule, now time.Time) EvalResult {
	if r == nil {
		return fail("time rule missing")
	}
	switch r.TimeType {
	case TimeFixed:
		today := now.Format("2006-01-02")
		found := false
		for _, d := range r.FixedDates {
			if d == today {
				found = true
				break
			}
		}
		if !found {
			return fail("not valid on %s", today)
		}
		if !withinRanges(r.TimeRanges, now) {
			return fail("outside the valid time of day")
		}
		return pass()
	case TimeRecurring:
		if r.Recurring == nil {
			return fail("recurring window missing")
		}
		dow := int(now.Weekday())
		found := false
		for _, d := range r.Recurring.DaysOfWeek {
			if d == dow {
				found = true
				break
			}
		}
		if !found {
			return fail("not valid on %s", now.Weekday())
		}
		if !withinRanges(r.Recurring.TimeRanges, now) {
			return fail("outside the valid time of day")
		}
		return pass()
	default:
		return fail("unknown time_type %q", r.TimeType)
	}
}

func evaluateUserGroup(r *UserGroupRule, role string) EvalResult {
	if r == nil {
		return fail("user group rule missing")
	}
	if len(r.Groups) == 0 {
		return pass()
	}
	// Unresolvable role fails closed.
	if role == "" {
		return fail("user role is required for this coupon")
	}
	for _, g := range r.Groups {
		if g == role {
			return pass()
		}
	}
	return fail("limited to user groups: %s", strings.Join(r.Groups, ", "))
}

// withinRanges reports whether now's time of day falls inside at least one
// "HH:MM-HH:MM" range, start inclusive and end exclusive at the minute
// boundary. An empty list means valid all day. Malformed ranges are skipped.
func withinRanges(ranges []string, now time.Time) bool {
	if len(ranges) == 0 {
		return true
	}
	minute := now.Hour()*60 + now.Minute()
	for _, r := range ranges {
		start, end, ok := parseRange(r)
		if !ok {
			continue
		}
		if start <= minute && minute < end {
			return true
		}
	}
	return false
}

// parseRange parses "HH:MM-HH:MM" into minutes of day.
func parseRange(s string) (start, end int, ok bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, ok = parseMinute(parts[0])
	if !ok {
		return 0, 0, false
	}
	end, ok = parseMinute(parts[1])
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

func parseMinute(s string) (int, bool) {
	hm := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(hm) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
