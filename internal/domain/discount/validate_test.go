package discount

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

type stubIndex struct {
	contains bool
}

func (s stubIndex) MightContain(string) bool { return s.contains }

func validCodeCoupon() *coupon.Coupon {
	c := activeProductCoupon("a", "20")
	c.Code = "SAVE20"
	return &c
}

func validateItems() []coupon.CartItem {
	return []coupon.CartItem{{ProductID: "p1", Quantity: 1, Price: d("100")}}
}

func TestValidateCode(t *testing.T) {
	tests := []struct {
		name         string
		repo         *mockCouponRepo
		code         string
		wantValid    bool
		wantDiscount string
		wantFinal    string
	}{
		{
			name:         "valid fixed coupon",
			repo:         &mockCouponRepo{byCode: validCodeCoupon()},
			code:         "SAVE20",
			wantValid:    true,
			wantDiscount: "20",
			wantFinal:    "80",
		},
		{
			name:      "unknown code",
			repo:      &mockCouponRepo{},
			code:      "BOGUS",
			wantValid: false,
		},
		{
			name:      "empty code",
			repo:      &mockCouponRepo{},
			code:      "",
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(tt.repo, &mockUserCouponRepo{}, &mockPolicyRepo{})
			v, err := e.ValidateCode(context.Background(), tt.code, d("100"), validateItems(), "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, v.Valid)
			if tt.wantValid {
				assert.True(t, v.DiscountAmount.Equal(d(tt.wantDiscount)), "discount %s", v.DiscountAmount)
				assert.True(t, v.FinalAmount.Equal(d(tt.wantFinal)), "final %s", v.FinalAmount)
			} else {
				assert.NotEmpty(t, v.Message)
			}
		})
	}
}

func TestValidateCodeRejectsNonPositiveAmount(t *testing.T) {
	e := newTestEngine(&mockCouponRepo{}, &mockUserCouponRepo{}, &mockPolicyRepo{})
	_, err := e.ValidateCode(context.Background(), "SAVE20", d("0"), nil, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestValidateCodeIndexShortCircuits(t *testing.T) {
	repo := &mockCouponRepo{byCode: validCodeCoupon()}
	e := newTestEngine(repo, &mockUserCouponRepo{}, &mockPolicyRepo{})
	e.SetCodeIndex(stubIndex{contains: false})

	v, err := e.ValidateCode(context.Background(), "SAVE20", d("100"), validateItems(), "")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, "coupon not found", v.Message)
}

func TestValidateCodeIndexPositiveStillConfirms(t *testing.T) {
	e := newTestEngine(&mockCouponRepo{}, &mockUserCouponRepo{}, &mockPolicyRepo{})
	e.SetCodeIndex(stubIndex{contains: true})

	v, err := e.ValidateCode(context.Background(), "MAYBE", d("100"), validateItems(), "")
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestValidateCodeExpiredCoupon(t *testing.T) {
	c := validCodeCoupon()
	c.EndDate = testNow.Add(-time.Hour)
	e := newTestEngine(&mockCouponRepo{byCode: c}, &mockUserCouponRepo{}, &mockPolicyRepo{})

	v, err := e.ValidateCode(context.Background(), "SAVE20", d("100"), validateItems(), "")
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestValidateCodeRuleGate(t *testing.T) {
	c := validCodeCoupon()
	e := newTestEngine(&mockCouponRepo{byCode: c}, &mockUserCouponRepo{}, &mockPolicyRepo{})

	// Cart lacks the required product.
	items := []coupon.CartItem{{ProductID: "other", Quantity: 1, Price: d("100")}}
	v, err := e.ValidateCode(context.Background(), "SAVE20", d("100"), items, "")
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestValidateCodeAttachedRuleFailsClosed(t *testing.T) {
	c := validCodeCoupon()
	e := newTestEngine(&mockCouponRepo{
		byCode: c,
		attached: map[string][]coupon.AttachedRule{
			"a": {{ID: "r1", CouponID: "a", Kind: coupon.RuleUserGroup, Raw: []byte(`broken`), IsActive: true}},
		},
	}, &mockUserCouponRepo{}, &mockPolicyRepo{})

	v, err := e.ValidateCode(context.Background(), "SAVE20", d("100"), validateItems(), "vip")
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestValidateCodeTieredCoupon(t *testing.T) {
	c := amountCoupon("a", `{"tiers": [{"min_amount": 30, "discount": 5}]}`)
	c.Code = "MANJIAN"
	c.EndDate = testNow.Add(time.Hour)
	e := newTestEngine(&mockCouponRepo{byCode: &c}, &mockUserCouponRepo{}, &mockPolicyRepo{})

	v, err := e.ValidateCode(context.Background(), "MANJIAN", d("90"), validateItems(), "")
	require.NoError(t, err)
	require.True(t, v.Valid)
	assert.True(t, v.DiscountAmount.Equal(d("15")), "got %s", v.DiscountAmount)
	assert.True(t, v.FinalAmount.Equal(d("75")))
}
