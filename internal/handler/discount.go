package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/lumimart/storefront/internal/domain/coupon"
	"github.com/lumimart/storefront/internal/domain/discount"
)

// calculateRequest mirrors the POST /discount/calculate body.
type calculateRequest struct {
	UserID    string
	UserRole  string
	Items     []coupon.CartItem
	CouponIDs []string
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	req, err := decodeCalculateRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	result, err := h.discounts.Calculate(r.Context(), discount.Request{
		UserID:    req.UserID,
		UserRole:  req.UserRole,
		Items:     req.Items,
		CouponIDs: req.CouponIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, discount.ErrEmptyCart),
			errors.Is(err, discount.ErrNoCoupons),
			errors.Is(err, discount.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			zctx.From(r.Context()).Error("discount calculation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if result.Cancelled {
		// The client went away mid-calculation; there is nobody to answer.
		zctx.From(r.Context()).Debug("discount calculation cancelled")
		return
	}

	writeJSON(w, http.StatusOK, encodeCalculateResult(result))
}

func decodeCalculateRequest(body []byte) (*calculateRequest, error) {
	req := &calculateRequest{}
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "user_id":
			v, err := d.Str()
			req.UserID = v
			return err
		case "user_role":
			v, err := d.Str()
			req.UserRole = v
			return err
		case "coupon_ids":
			return d.Arr(func(d *jx.Decoder) error {
				id, err := d.Str()
				if err != nil {
					return err
				}
				req.CouponIDs = append(req.CouponIDs, id)
				return nil
			})
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func decodeCartItem(d *jx.Decoder) (coupon.CartItem, error) {
	var item coupon.CartItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			item.ProductID = v
			return err
		case "quantity":
			v, err := d.Int()
			item.Quantity = v
			return err
		case "price":
			v, err := decodeDecimal(d)
			item.Price = v
			return err
		default:
			return d.Skip()
		}
	})
	return item, err
}

func encodeCalculateResult(result *discount.Result) *jx.Encoder {
	var e jx.Encoder
	e.ObjStart()

	e.FieldStart("applied_coupons")
	e.ArrStart()
	for _, ac := range result.Applied {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(ac.Coupon.ID)
		e.FieldStart("name")
		e.Str(ac.Coupon.Name)
		e.FieldStart("code")
		e.Str(ac.Coupon.Code)
		e.FieldStart("discount")
		encodeDecimal(&e, ac.Discount)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("total_discount")
	encodeDecimal(&e, result.TotalDiscount)

	if len(result.Excluded) > 0 {
		e.FieldStart("excluded")
		e.ArrStart()
		for _, ex := range result.Excluded {
			e.ObjStart()
			e.FieldStart("coupon_id")
			e.Str(ex.CouponID)
			e.FieldStart("reason")
			e.Str(string(ex.Reason))
			e.FieldStart("detail")
			e.Str(ex.Detail)
			e.ObjEnd()
		}
		e.ArrEnd()
	}

	if c := result.Conflict; c != nil {
		e.FieldStart("conflict")
		e.ObjStart()
		e.FieldStart("rule_type")
		e.Str(string(c.RuleType))
		if c.RuleID != "" {
			e.FieldStart("rule_id")
			e.Str(c.RuleID)
			e.FieldStart("rule_name")
			e.Str(c.RuleName)
		}
		e.FieldStart("coupon_ids")
		e.ArrStart()
		for _, id := range c.CouponIDs {
			e.Str(id)
		}
		e.ArrEnd()
		e.ObjEnd()
	}

	e.ObjEnd()
	return &e
}
