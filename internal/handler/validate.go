package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lumimart/storefront/internal/domain/coupon"
	"github.com/lumimart/storefront/internal/domain/discount"
)

// validateRequest mirrors the POST /coupons/validate body.
type validateRequest struct {
	Code        string
	UserRole    string
	OrderAmount decimal.Decimal
	OrderItems  []coupon.CartItem
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	req, err := decodeValidateRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	v, err := h.discounts.ValidateCode(r.Context(), req.Code, req.OrderAmount, req.OrderItems, req.UserRole)
	if err != nil {
		if errors.Is(err, discount.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zctx.From(r.Context()).Error("coupon validation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(v.Valid)
	e.FieldStart("message")
	e.Str(v.Message)
	if v.Valid {
		e.FieldStart("discount_amount")
		encodeDecimal(&e, v.DiscountAmount)
		e.FieldStart("final_amount")
		encodeDecimal(&e, v.FinalAmount)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func decodeValidateRequest(body []byte) (*validateRequest, error) {
	req := &validateRequest{}
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			req.Code = v
			return err
		case "user_role":
			v, err := d.Str()
			req.UserRole = v
			return err
		case "order_amount":
			v, err := decodeDecimal(d)
			req.OrderAmount = v
			return err
		case "order_items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				if err != nil {
					return err
				}
				req.OrderItems = append(req.OrderItems, item)
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
