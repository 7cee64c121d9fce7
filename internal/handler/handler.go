// Package handler exposes the discount engine over HTTP.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lumimart/storefront/internal/domain/coupon"
	"github.com/lumimart/storefront/internal/domain/discount"
)

// DiscountService is the slice of the engine the HTTP layer needs.
type DiscountService interface {
	Calculate(ctx context.Context, req discount.Request) (*discount.Result, error)
	ValidateCode(ctx context.Context, code string, orderAmount decimal.Decimal, items []coupon.CartItem, userRole string) (*discount.Validation, error)
}

// Handler routes API requests to the discount engine.
type Handler struct {
	discounts DiscountService
}

// NewHandler constructs a Handler around the given discount service.
func NewHandler(discounts DiscountService) *Handler {
	return &Handler{discounts: discounts}
}

// Routes returns the chi router for the public API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/discount", func(r chi.Router) {
		r.Post("/calculate", h.handleCalculate)
	})
	r.Route("/coupons", func(r chi.Router) {
		r.Post("/validate", h.handleValidate)
	})
	return r
}
