package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// TipRequest sets the courier tip.
type TipRequest struct {
	Tip decimal.Decimal `json:"tip"`
}

// PromoCodeRequest applies or clears a promo code.
type PromoCodeRequest struct {
	Code string `json:"code" validate:"max=64"`
}

// LoyaltyPointsRequest sets the points to redeem against the total.
type LoyaltyPointsRequest struct {
	Points *int `json:"points" validate:"required,min=0"`
}

// InsuranceRequest toggles parcel insurance.
type InsuranceRequest struct {
	Insured *bool `json:"insured" validate:"required"`
}

// ScheduleRequest books a future delivery slot; null reverts to immediate.
type ScheduleRequest struct {
	ScheduledFor *time.Time `json:"scheduledFor"`
}

// DestinationRequest sets the delivery destination used for fee calculation.
type DestinationRequest struct {
	City       string  `json:"city" validate:"required"`
	DistanceKm float64 `json:"distanceKm" validate:"min=0"`
}

// SubmitRequest places the order.
type SubmitRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required"`
	Notes         string `json:"notes,omitempty" validate:"max=500"`
}
