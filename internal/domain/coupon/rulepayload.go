package coupon

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// RuleKind tags the parsed payload variant.
type RuleKind string

const (
	RuleProduct   RuleKind = "product"
	RuleTime      RuleKind = "time"
	RuleAmount    RuleKind = "amount"
	RuleUserGroup RuleKind = "user_group"
)

// ProductRule requires the cart to contain at least MinQuantity total units
// across the listed product ids.
type ProductRule struct {
	ProductIDs  []string
	MinQuantity int
}

// RecurringWindow describes a weekly recurrence: days of week (0=Sunday) plus
// optional intra-day time ranges.
type RecurringWindow struct {
	DaysOfWeek []int
	TimeRanges []string
}

// TimeRule restricts a coupon to fixed calendar dates or a weekly recurrence.
// TimeRanges entries use the "HH:MM-HH:MM" form, start inclusive and end
// exclusive at the minute boundary.
type TimeRule struct {
	TimeType   string
	FixedDates []string
	Recurring  *RecurringWindow
	TimeRanges []string
}

const (
	TimeFixed     = "fixed"
	TimeRecurring = "recurring"
)

// Tier is a (min_amount, discount) pair of an amount coupon. Tiers are
// independently and repeatedly applicable.
type Tier struct {
	MinAmount decimal.Decimal
	Discount  decimal.Decimal
}

// AmountRule holds the tier ladder of an amount coupon.
type AmountRule struct {
	Tiers []Tier
}

// UserGroupRule restricts usage to users whose role is listed. An empty list
// means unrestricted.
type UserGroupRule struct {
	Groups []string
}

// Payload is the parsed, discriminated form of a coupon rule. Exactly one of
// the variant pointers is set, matching Kind.
type Payload struct {
	Kind      RuleKind
	Product   *ProductRule
	Time      *TimeRule
	Amount    *AmountRule
	UserGroup *UserGroupRule
}

// ParsePayload decodes the inline rule payload of a coupon, keyed by the
// coupon type. Callers treat a parse error as rule-not-satisfied.
func ParsePayload(t Type, raw []byte) (Payload, error) {
	switch t {
	case TypeProduct:
		return parseKind(RuleProduct, raw)
	case TypeTime:
		return parseKind(RuleTime, raw)
	case TypeAmount:
		return parseKind(RuleAmount, raw)
	default:
		return Payload{}, errors.Errorf("unknown coupon type: %q", t)
	}
}

// ParseAttached decodes a cross-cutting rule row by its kind.
func ParseAttached(kind RuleKind, raw []byte) (Payload, error) {
	return parseKind(kind, raw)
}

func parseKind(kind RuleKind, raw []byte) (Payload, error) {
	if len(raw) == 0 {
		return Payload{}, errors.Errorf("empty %s rule payload", kind)
	}
	d := jx.DecodeBytes(raw)
	switch kind {
	case RuleProduct:
		r, err := decodeProductRule(d)
		if err != nil {
			return Payload{}, errors.Wrap(err, "product rule")
		}
		return Payload{Kind: RuleProduct, Product: r}, nil
	case RuleTime:
		r, err := decodeTimeRule(d)
		if err != nil {
			return Payload{}, errors.Wrap(err, "time rule")
		}
		return Payload{Kind: RuleTime, Time: r}, nil
	case RuleAmount:
		r, err := decodeAmountRule(d)
		if err != nil {
			return Payload{}, errors.Wrap(err, "amount rule")
		}
		return Payload{Kind: RuleAmount, Amount: r}, nil
	case RuleUserGroup:
		r, err := decodeUserGroupRule(d)
		if err != nil {
			return Payload{}, errors.Wrap(err, "user_group rule")
		}
		return Payload{Kind: RuleUserGroup, UserGroup: r}, nil
	default:
		return Payload{}, errors.Errorf("unknown rule kind: %q", kind)
	}
}

func decodeProductRule(d *jx.Decoder) (*ProductRule, error) {
	// min_quantity defaults to 1 when absent.
	r := &ProductRule{MinQuantity: 1}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_ids":
			return d.Arr(func(d *jx.Decoder) error {
				id, err := d.Str()
				if err != nil {
					return err
				}
				r.ProductIDs = append(r.ProductIDs, id)
				return nil
			})
		case "min_quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			r.MinQuantity = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	if len(r.ProductIDs) == 0 {
		return nil, errors.New("product_ids is required")
	}
	return r, nil
}

func decodeTimeRule(d *jx.Decoder) (*TimeRule, error) {
	r := &TimeRule{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "time_type":
			v, err := d.Str()
			if err != nil {
				return err
			}
			r.TimeType = v
			return nil
		case "fixed_dates":
			return decodeStrings(d, &r.FixedDates)
		case "time_ranges":
			return decodeStrings(d, &r.TimeRanges)
		case "recurring":
			w := &RecurringWindow{}
			err := d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "days_of_week":
					return d.Arr(func(d *jx.Decoder) error {
						v, err := d.Int()
						if err != nil {
							return err
						}
						w.DaysOfWeek = append(w.DaysOfWeek, v)
						return nil
					})
				case "time_ranges":
					return decodeStrings(d, &w.TimeRanges)
				default:
					return d.Skip()
				}
			})
			if err != nil {
				return err
			}
			r.Recurring = w
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	switch r.TimeType {
	case TimeFixed, TimeRecurring:
	default:
		return nil, errors.Errorf("unknown time_type: %q", r.TimeType)
	}
	if r.TimeType == TimeRecurring && r.Recurring == nil {
		return nil, errors.New("recurring block is required for time_type=recurring")
	}
	return r, nil
}

func decodeAmountRule(d *jx.Decoder) (*AmountRule, error) {
	r := &AmountRule{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "tiers" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var t Tier
			err := d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "min_amount":
					v, err := decodeDecimal(d)
					if err != nil {
						return err
					}
					t.MinAmount = v
					return nil
				case "discount":
					v, err := decodeDecimal(d)
					if err != nil {
						return err
					}
					t.Discount = v
					return nil
				default:
					return d.Skip()
				}
			})
			if err != nil {
				return err
			}
			r.Tiers = append(r.Tiers, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(r.Tiers) == 0 {
		return nil, errors.New("tiers is required")
	}
	return r, nil
}

func decodeUserGroupRule(d *jx.Decoder) (*UserGroupRule, error) {
	r := &UserGroupRule{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "groups" {
			return d.Skip()
		}
		return decodeStrings(d, &r.Groups)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func decodeStrings(d *jx.Decoder, dst *[]string) error {
	return d.Arr(func(d *jx.Decoder) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		*dst = append(*dst, v)
		return nil
	})
}

// decodeDecimal accepts both bare JSON numbers and numeric strings, which
// occur in hand-authored payloads.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	s := strings.Trim(string(n), `"`)
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse number")
	}
	return v, nil
}
